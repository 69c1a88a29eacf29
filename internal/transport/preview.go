package transport

import (
	"time"

	"github.com/Skotchmaster/elearning/internal/models"
)

// ContentPreview is a course section as shown to buyers-to-be: no video
// url, links, suggestion or questions.
type ContentPreview struct {
	ID           string `json:"id"`
	Position     int    `json:"position"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	VideoSection string `json:"videoSection"`
	VideoLength  int    `json:"videoLength"`
	VideoPlayer  string `json:"videoPlayer"`
}

type CoursePreview struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Description    string                `json:"description"`
	Categories     string                `json:"categories"`
	Price          float64               `json:"price"`
	EstimatedPrice float64               `json:"estimatedPrice"`
	Thumbnail      models.Image          `json:"thumbnail"`
	Tags           string                `json:"tags"`
	Level          string                `json:"level"`
	DemoURL        string                `json:"demoUrl"`
	Benefits       []models.Benefit      `json:"benefits"`
	Prerequisites  []models.Prerequisite `json:"prerequisites"`
	Reviews        []models.Review       `json:"reviews"`
	CourseData     []ContentPreview      `json:"courseData"`
	Ratings        float64               `json:"ratings"`
	Purchased      int                   `json:"purchased"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

func PreviewOf(c *models.Course) CoursePreview {
	p := CoursePreview{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Categories:     c.Categories,
		Price:          c.Price,
		EstimatedPrice: c.EstimatedPrice,
		Thumbnail:      c.Thumbnail,
		Tags:           c.Tags,
		Level:          c.Level,
		DemoURL:        c.DemoURL,
		Benefits:       c.Benefits,
		Prerequisites:  c.Prerequisites,
		Reviews:        c.Reviews,
		CourseData:     make([]ContentPreview, 0, len(c.Content)),
		Ratings:        c.Ratings,
		Purchased:      c.Purchased,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	for _, cc := range c.Content {
		p.CourseData = append(p.CourseData, ContentPreview{
			ID:           cc.ID,
			Position:     cc.Position,
			Title:        cc.Title,
			Description:  cc.Description,
			VideoSection: cc.VideoSection,
			VideoLength:  cc.VideoLength,
			VideoPlayer:  cc.VideoPlayer,
		})
	}
	return p
}

func PreviewsOf(cs []models.Course) []CoursePreview {
	out := make([]CoursePreview, 0, len(cs))
	for i := range cs {
		out = append(out, PreviewOf(&cs[i]))
	}
	return out
}
