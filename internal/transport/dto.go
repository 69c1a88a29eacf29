// Package transport holds the JSON request bodies and response projections
// exchanged over the HTTP API.
package transport

import (
	"strings"

	"github.com/Skotchmaster/elearning/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=64"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type ActivateRequest struct {
	ActivationToken string `json:"activation_token" validate:"required"`
	ActivationCode  string `json:"activation_code"  validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SocialAuthRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Avatar   string `json:"avatar"`
}

type UpdateInfoRequest struct {
	Username string `json:"username" validate:"required,min=2,max=64"`
}

type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

type UpdateAvatarRequest struct {
	Avatar models.Image `json:"avatar"`
}

type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyResetCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required"`
}

// ResetPasswordRequest carries Email only when the caller is not logged in.
type ResetPasswordRequest struct {
	Email           string `json:"email"           validate:"omitempty,email"`
	Password        string `json:"password"        validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
}

type UpdateRoleRequest struct {
	ID   string `json:"id"   validate:"required"`
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type TitleDTO struct {
	Title string `json:"title" validate:"required"`
}

type LinkDTO struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type ContentDTO struct {
	Title        string    `json:"title"        validate:"required"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"videoUrl"`
	VideoSection string    `json:"videoSection"`
	VideoLength  int       `json:"videoLength"  validate:"gte=0"`
	VideoPlayer  string    `json:"videoPlayer"`
	Links        []LinkDTO `json:"links"        validate:"dive"`
	Suggestion   string    `json:"suggestion"`
}

type CourseRequest struct {
	Name           string       `json:"name"           validate:"required"`
	Description    string       `json:"description"    validate:"required"`
	Categories     string       `json:"categories"`
	Price          float64      `json:"price"          validate:"gte=0"`
	EstimatedPrice float64      `json:"estimatedPrice" validate:"gte=0"`
	Thumbnail      models.Image `json:"thumbnail"`
	Tags           string       `json:"tags"           validate:"required"`
	Level          string       `json:"level"          validate:"required"`
	DemoURL        string       `json:"demoUrl"        validate:"required"`
	Benefits       []TitleDTO   `json:"benefits"       validate:"dive"`
	Prerequisites  []TitleDTO   `json:"prerequisites"  validate:"dive"`
	CourseData     []ContentDTO `json:"courseData"     validate:"dive"`
}

func (r CourseRequest) Model() *models.Course {
	c := &models.Course{
		Name:           strings.TrimSpace(r.Name),
		Description:    r.Description,
		Categories:     r.Categories,
		Price:          r.Price,
		EstimatedPrice: r.EstimatedPrice,
		Thumbnail:      r.Thumbnail,
		Tags:           r.Tags,
		Level:          r.Level,
		DemoURL:        r.DemoURL,
		Benefits:       r.BenefitModels(),
		Prerequisites:  r.PrerequisiteModels(),
		Content:        r.ContentModels(),
	}
	return c
}

func (r CourseRequest) BenefitModels() []models.Benefit {
	if r.Benefits == nil {
		return nil
	}
	out := make([]models.Benefit, 0, len(r.Benefits))
	for _, b := range r.Benefits {
		out = append(out, models.Benefit{Title: b.Title})
	}
	return out
}

func (r CourseRequest) PrerequisiteModels() []models.Prerequisite {
	if r.Prerequisites == nil {
		return nil
	}
	out := make([]models.Prerequisite, 0, len(r.Prerequisites))
	for _, p := range r.Prerequisites {
		out = append(out, models.Prerequisite{Title: p.Title})
	}
	return out
}

// ContentModels keeps request order as the section position.
func (r CourseRequest) ContentModels() []models.CourseContent {
	if r.CourseData == nil {
		return nil
	}
	out := make([]models.CourseContent, 0, len(r.CourseData))
	for i, d := range r.CourseData {
		cc := models.CourseContent{
			Position:     i,
			Title:        d.Title,
			Description:  d.Description,
			VideoURL:     d.VideoURL,
			VideoSection: d.VideoSection,
			VideoLength:  d.VideoLength,
			VideoPlayer:  d.VideoPlayer,
			Suggestion:   d.Suggestion,
		}
		for _, l := range d.Links {
			cc.Links = append(cc.Links, models.Link{Title: l.Title, URL: l.URL})
		}
		out = append(out, cc)
	}
	return out
}

type QuestionRequest struct {
	Question  string `json:"question"  validate:"required"`
	CourseID  string `json:"courseId"  validate:"required"`
	ContentID string `json:"contentId" validate:"required"`
}

type AnswerRequest struct {
	Answer     string `json:"answer"     validate:"required"`
	CourseID   string `json:"courseId"   validate:"required"`
	ContentID  string `json:"contentId"  validate:"required"`
	QuestionID string `json:"questionId" validate:"required"`
}

type ReviewRequest struct {
	Review string `json:"review" validate:"required"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
}

type ReviewReplyRequest struct {
	Comment  string `json:"comment"  validate:"required"`
	CourseID string `json:"courseId" validate:"required"`
	ReviewID string `json:"reviewId" validate:"required"`
}

type PaymentInfo struct {
	ID string `json:"id"`
}

type OrderRequest struct {
	CourseID    string       `json:"courseId"     validate:"required"`
	PaymentInfo *PaymentInfo `json:"payment_info"`
}

type NewPaymentRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}
