package service

import (
	"context"
	"strings"
	"time"

	"github.com/Skotchmaster/elearning/internal/apperr"
	"github.com/Skotchmaster/elearning/internal/logging"
	"github.com/Skotchmaster/elearning/internal/mailer"
	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/repo"
	"github.com/Skotchmaster/elearning/internal/search"
	"github.com/Skotchmaster/elearning/internal/transport"
	"github.com/Skotchmaster/elearning/internal/util"
)

const featuredLimit = 6

type CourseService struct {
	Repo   *repo.GormRepo
	Cache  CourseCache
	Index  CourseIndex // nil disables the search index
	Mail   Dispatcher
	Events EventPublisher

	CacheTTL time.Duration
}

func (s *CourseService) CreateCourse(ctx context.Context, req transport.CourseRequest) (*models.Course, error) {
	c := req.Model()
	if err := s.Repo.CreateCourse(ctx, c); err != nil {
		return nil, internal("create course", err)
	}
	s.reindex(ctx, c)
	publish(ctx, s.Events, TopicCourseEvents, c.ID, map[string]any{"type": "course_created", "courseId": c.ID, "name": c.Name})
	return c, nil
}

// EditCourse overwrites scalar fields, replaces benefits and prerequisites
// when sent, and updates content sections by position.
func (s *CourseService) EditCourse(ctx context.Context, id string, req transport.CourseRequest) (*models.Course, error) {
	upd := repo.CourseUpdate{
		Fields: map[string]any{
			"name":                strings.TrimSpace(req.Name),
			"description":         req.Description,
			"categories":          req.Categories,
			"price":               req.Price,
			"estimated_price":     req.EstimatedPrice,
			"thumbnail_public_id": req.Thumbnail.PublicID,
			"thumbnail_url":       req.Thumbnail.URL,
			"tags":                req.Tags,
			"level":               req.Level,
			"demo_url":            req.DemoURL,
		},
		Benefits:      req.BenefitModels(),
		Prerequisites: req.PrerequisiteModels(),
		Content:       req.ContentModels(),
	}
	if err := s.Repo.UpdateCourse(ctx, id, upd); err != nil {
		return nil, storeErr("update course", err, ErrCourseNotFound)
	}
	s.invalidate(ctx, id)

	c, err := s.Repo.CourseByID(ctx, id)
	if err != nil {
		return nil, storeErr("load course", err, ErrCourseNotFound)
	}
	s.reindex(ctx, c)
	publish(ctx, s.Events, TopicCourseEvents, id, map[string]any{"type": "course_updated", "courseId": id})
	return c, nil
}

// GetCourse serves the public preview, read through the course cache.
func (s *CourseService) GetCourse(ctx context.Context, id string) (*transport.CoursePreview, error) {
	var p transport.CoursePreview
	hit, err := s.Cache.Get(ctx, id, &p)
	if err != nil {
		logging.FromContext(ctx).Warn("course_cache_read_failed", "course_id", id, "error", err)
	}
	if hit {
		return &p, nil
	}

	c, err := s.Repo.CourseByID(ctx, id)
	if err != nil {
		return nil, storeErr("load course", err, ErrCourseNotFound)
	}
	p = transport.PreviewOf(c)
	if err := s.Cache.Set(ctx, id, p, s.CacheTTL); err != nil {
		logging.FromContext(ctx).Warn("course_cache_write_failed", "course_id", id, "error", err)
	}
	return &p, nil
}

func (s *CourseService) GetCourses(ctx context.Context) ([]transport.CoursePreview, error) {
	cs, err := s.Repo.ListCourses(ctx)
	if err != nil {
		return nil, internal("list courses", err)
	}
	return transport.PreviewsOf(cs), nil
}

func (s *CourseService) FeaturedCourses(ctx context.Context) ([]transport.CoursePreview, error) {
	cs, err := s.Repo.FeaturedCourses(ctx, featuredLimit)
	if err != nil {
		return nil, internal("featured courses", err)
	}
	return transport.PreviewsOf(cs), nil
}

// SearchCourses queries the search index, or the store when no index is
// configured.
func (s *CourseService) SearchCourses(ctx context.Context, q string, page, size int) (util.Page[search.Document], error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return util.Page[search.Document]{}, apperr.Validationf("Search query is required")
	}
	page, offset, limit := util.Calculate(page, size)

	var (
		total int64
		docs  []search.Document
	)
	if s.Index != nil {
		var err error
		total, docs, err = s.Index.Search(ctx, q, offset, limit)
		if err != nil {
			return util.Page[search.Document]{}, upstream("Search is unavailable", err)
		}
	} else {
		n, cs, err := s.Repo.SearchCourses(ctx, q, offset, limit)
		if err != nil {
			return util.Page[search.Document]{}, internal("search courses", err)
		}
		total = n
		docs = make([]search.Document, 0, len(cs))
		for i := range cs {
			docs = append(docs, search.DocumentFrom(&cs[i]))
		}
	}
	if docs == nil {
		docs = []search.Document{}
	}
	return util.Page[search.Document]{Success: true, Data: docs, Meta: util.NewMeta(page, limit, total)}, nil
}

// GetCourseContent returns the full sections to owners and admins.
func (s *CourseService) GetCourseContent(ctx context.Context, identity *models.User, id string) ([]models.CourseContent, error) {
	if identity.Role != models.RoleAdmin && !identity.Owns(id) {
		return nil, ErrNotEligible
	}
	c, err := s.Repo.CourseByID(ctx, id)
	if err != nil {
		return nil, storeErr("load course", err, ErrCourseNotFound)
	}
	return c.Content, nil
}

func (s *CourseService) AddQuestion(ctx context.Context, identity *models.User, req transport.QuestionRequest) (*models.Question, error) {
	content, err := s.Repo.ContentByID(ctx, req.CourseID, req.ContentID)
	if err != nil {
		return nil, storeErr("load content", err, ErrInvalidContentID)
	}
	q := &models.Question{
		ContentID: content.ID,
		UserID:    identity.ID,
		Username:  identity.Username,
		Text:      req.Question,
	}
	if err := s.Repo.CreateQuestion(ctx, q); err != nil {
		return nil, internal("create question", err)
	}
	notify(ctx, s.Repo, identity.ID, "New Question Received", "You have a new question in course "+content.Title)
	return q, nil
}

// AddAnswer replies to a question. The author is notified in-app when
// answering their own question and by mail otherwise.
func (s *CourseService) AddAnswer(ctx context.Context, identity *models.User, req transport.AnswerRequest) (*models.Reply, error) {
	content, err := s.Repo.ContentByID(ctx, req.CourseID, req.ContentID)
	if err != nil {
		return nil, storeErr("load content", err, ErrInvalidContentID)
	}
	q, err := s.Repo.QuestionByID(ctx, content.ID, req.QuestionID)
	if err != nil {
		return nil, storeErr("load question", err, ErrInvalidQuestionID)
	}

	reply := &models.Reply{
		UserID:   identity.ID,
		Username: identity.Username,
		Role:     identity.Role,
		Text:     req.Answer,
	}
	if err := s.Repo.AddQuestionReply(ctx, q, reply); err != nil {
		return nil, internal("create answer", err)
	}

	if identity.ID == q.UserID {
		notify(ctx, s.Repo, identity.ID, "New Question Reply Received", "You have a new reply in question "+q.Text)
		return reply, nil
	}

	author, err := s.Repo.UserByID(ctx, q.UserID)
	if err != nil {
		logging.FromContext(ctx).Warn("question_author_missing", "question_id", q.ID, "error", err)
		return reply, nil
	}
	err = s.Mail.Dispatch(ctx, mailer.Message{
		To:       author.Email,
		Subject:  "Question Reply",
		Template: mailer.TemplateQuestionReply,
		Data:     map[string]any{"name": author.Username, "title": content.Title},
	})
	if err != nil {
		return nil, upstream("Could not send reply mail", err)
	}
	return reply, nil
}

func (s *CourseService) AddReview(ctx context.Context, identity *models.User, courseID string, req transport.ReviewRequest) (*models.Course, error) {
	if !identity.Owns(courseID) {
		return nil, ErrNotEligible
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperr.Validationf("Rating must be between 1 and 5")
	}
	c, err := s.Repo.CourseByID(ctx, courseID)
	if err != nil {
		return nil, storeErr("load course", err, ErrCourseNotFound)
	}

	review := &models.Review{
		CourseID: courseID,
		UserID:   identity.ID,
		Username: identity.Username,
		Rating:   req.Rating,
		Comment:  req.Review,
	}
	if _, err := s.Repo.AddReview(ctx, review); err != nil {
		return nil, internal("add review", err)
	}
	s.invalidate(ctx, courseID)

	c, err = s.Repo.CourseByID(ctx, courseID)
	if err != nil {
		return nil, storeErr("load course", err, ErrCourseNotFound)
	}
	s.reindex(ctx, c)
	notify(ctx, s.Repo, identity.ID, "New Review Received", identity.Username+" has given a review in "+c.Name)
	return c, nil
}

func (s *CourseService) AddReplyToReview(ctx context.Context, identity *models.User, req transport.ReviewReplyRequest) (*models.Reply, error) {
	rv, err := s.Repo.ReviewByID(ctx, req.CourseID, req.ReviewID)
	if err != nil {
		return nil, storeErr("load review", err, ErrReviewNotFound)
	}
	reply := &models.Reply{
		UserID:   identity.ID,
		Username: identity.Username,
		Role:     identity.Role,
		Text:     req.Comment,
	}
	if err := s.Repo.AddReviewReply(ctx, rv, reply); err != nil {
		return nil, internal("add review reply", err)
	}
	s.invalidate(ctx, req.CourseID)
	return reply, nil
}

func (s *CourseService) ListQuestions(ctx context.Context, courseID, contentID string, page, size int) (util.Page[models.Question], error) {
	if _, err := s.Repo.ContentByID(ctx, courseID, contentID); err != nil {
		return util.Page[models.Question]{}, storeErr("load content", err, ErrInvalidContentID)
	}
	page, offset, limit := util.Calculate(page, size)
	total, qs, err := s.Repo.ListQuestions(ctx, contentID, offset, limit)
	if err != nil {
		return util.Page[models.Question]{}, internal("list questions", err)
	}
	return util.Page[models.Question]{Success: true, Data: qs, Meta: util.NewMeta(page, limit, total)}, nil
}

func (s *CourseService) ListReviews(ctx context.Context, courseID string, page, size int) (util.Page[models.Review], error) {
	page, offset, limit := util.Calculate(page, size)
	total, rs, err := s.Repo.ListReviews(ctx, courseID, offset, limit)
	if err != nil {
		return util.Page[models.Review]{}, internal("list reviews", err)
	}
	return util.Page[models.Review]{Success: true, Data: rs, Meta: util.NewMeta(page, limit, total)}, nil
}

func (s *CourseService) AdminCourses(ctx context.Context, page, size int) (util.Page[models.Course], error) {
	page, offset, limit := util.Calculate(page, size)
	total, cs, err := s.Repo.AdminCourses(ctx, offset, limit)
	if err != nil {
		return util.Page[models.Course]{}, internal("list admin courses", err)
	}
	return util.Page[models.Course]{Success: true, Data: cs, Meta: util.NewMeta(page, limit, total)}, nil
}

func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	if err := s.Repo.DeleteCourse(ctx, id); err != nil {
		return storeErr("delete course", err, ErrCourseNotFound)
	}
	s.invalidate(ctx, id)
	if s.Index != nil {
		if err := s.Index.DeleteCourse(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_delete_failed", "course_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, TopicCourseEvents, id, map[string]any{"type": "course_deleted", "courseId": id})
	return nil
}

func (s *CourseService) invalidate(ctx context.Context, id string) {
	if err := s.Cache.Delete(ctx, id); err != nil {
		logging.FromContext(ctx).Warn("course_cache_invalidate_failed", "course_id", id, "error", err)
	}
}

// reindex keeps the search document in step with the store. The store is
// the source of truth, so index failures only get logged.
func (s *CourseService) reindex(ctx context.Context, c *models.Course) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexCourse(ctx, c); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "course_id", c.ID, "error", err)
	}
}
