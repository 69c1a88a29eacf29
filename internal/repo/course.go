package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/elearning/internal/models"
)

// CourseUpdate describes an edit. Nil slices leave the relation untouched;
// Content sections are matched by position.
type CourseUpdate struct {
	Fields        map[string]any
	Benefits      []models.Benefit
	Prerequisites []models.Prerequisite
	Content       []models.CourseContent
}

func byPosition(db *gorm.DB) *gorm.DB { return db.Order("position asc") }
func oldestFirst(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }

func previewPreloads(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Benefits").
		Preload("Prerequisites").
		Preload("Reviews", oldestFirst).
		Preload("Reviews.Replies", oldestFirst).
		Preload("Content", byPosition)
}

func fullPreloads(db *gorm.DB) *gorm.DB {
	return previewPreloads(db).
		Preload("Content.Links").
		Preload("Content.Questions", oldestFirst).
		Preload("Content.Questions.Replies", oldestFirst)
}

func (r *GormRepo) CreateCourse(ctx context.Context, c *models.Course) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *GormRepo) CourseByID(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	if err := fullPreloads(r.DB.WithContext(ctx)).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) ListCourses(ctx context.Context) ([]models.Course, error) {
	var cs []models.Course
	if err := previewPreloads(r.DB.WithContext(ctx)).Order("created_at desc").Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *GormRepo) FeaturedCourses(ctx context.Context, limit int) ([]models.Course, error) {
	var cs []models.Course
	err := previewPreloads(r.DB.WithContext(ctx)).
		Order("ratings desc").Order("purchased desc").
		Limit(limit).Find(&cs).Error
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *GormRepo) AdminCourses(ctx context.Context, offset, limit int) (int64, []models.Course, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Course{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}
	var cs []models.Course
	err := r.DB.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit).Find(&cs).Error
	if err != nil {
		return 0, nil, err
	}
	return total, cs, nil
}

// SearchCourses is the store fallback when no search index is configured.
func (r *GormRepo) SearchCourses(ctx context.Context, q string, offset, limit int) (int64, []models.Course, error) {
	pattern := "%" + strings.ToLower(q) + "%"
	base := r.DB.WithContext(ctx).Model(&models.Course{}).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?", pattern, pattern, pattern)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}
	var cs []models.Course
	if err := base.Session(&gorm.Session{}).Order("ratings desc").Offset(offset).Limit(limit).Find(&cs).Error; err != nil {
		return 0, nil, err
	}
	return total, cs, nil
}

func (r *GormRepo) UpdateCourse(ctx context.Context, id string, upd CourseUpdate) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Course
		if err := tx.Select("id").Where("id = ?", id).First(&c).Error; err != nil {
			return err
		}

		if len(upd.Fields) > 0 {
			if err := tx.Model(&models.Course{}).Where("id = ?", id).Updates(upd.Fields).Error; err != nil {
				return err
			}
		}

		if upd.Benefits != nil {
			if err := tx.Where("course_id = ?", id).Delete(&models.Benefit{}).Error; err != nil {
				return err
			}
			for i := range upd.Benefits {
				upd.Benefits[i].ID = 0
				upd.Benefits[i].CourseID = id
			}
			if len(upd.Benefits) > 0 {
				if err := tx.Create(&upd.Benefits).Error; err != nil {
					return err
				}
			}
		}

		if upd.Prerequisites != nil {
			if err := tx.Where("course_id = ?", id).Delete(&models.Prerequisite{}).Error; err != nil {
				return err
			}
			for i := range upd.Prerequisites {
				upd.Prerequisites[i].ID = 0
				upd.Prerequisites[i].CourseID = id
			}
			if len(upd.Prerequisites) > 0 {
				if err := tx.Create(&upd.Prerequisites).Error; err != nil {
					return err
				}
			}
		}

		if upd.Content != nil {
			return replaceContent(tx, id, upd.Content)
		}
		return nil
	})
}

func replaceContent(tx *gorm.DB, courseID string, sections []models.CourseContent) error {
	var existing []models.CourseContent
	if err := tx.Where("course_id = ?", courseID).Order("position asc").Find(&existing).Error; err != nil {
		return err
	}
	byPos := make(map[int]models.CourseContent, len(existing))
	for _, e := range existing {
		byPos[e.Position] = e
	}

	for i, s := range sections {
		cur, ok := byPos[i]
		if !ok {
			s.ID = ""
			s.CourseID = courseID
			s.Position = i
			s.Questions = nil
			for j := range s.Links {
				s.Links[j].ID = 0
			}
			if err := tx.Create(&s).Error; err != nil {
				return err
			}
			continue
		}

		err := tx.Model(&models.CourseContent{}).Where("id = ?", cur.ID).Updates(map[string]any{
			"title":         s.Title,
			"description":   s.Description,
			"video_url":     s.VideoURL,
			"video_section": s.VideoSection,
			"video_length":  s.VideoLength,
			"video_player":  s.VideoPlayer,
			"suggestion":    s.Suggestion,
		}).Error
		if err != nil {
			return err
		}
		if err := tx.Where("content_id = ?", cur.ID).Delete(&models.Link{}).Error; err != nil {
			return err
		}
		for j := range s.Links {
			s.Links[j].ID = 0
			s.Links[j].ContentID = cur.ID
		}
		if len(s.Links) > 0 {
			if err := tx.Create(&s.Links).Error; err != nil {
				return err
			}
		}
	}

	var surplus []string
	for _, e := range existing {
		if e.Position >= len(sections) {
			surplus = append(surplus, e.ID)
		}
	}
	return deleteContents(tx, surplus)
}

func deleteContents(tx *gorm.DB, contentIDs []string) error {
	if len(contentIDs) == 0 {
		return nil
	}
	var questionIDs []string
	if err := tx.Model(&models.Question{}).Where("content_id IN ?", contentIDs).Pluck("id", &questionIDs).Error; err != nil {
		return err
	}
	if len(questionIDs) > 0 {
		if err := tx.Where("owner_type = ? AND owner_id IN ?", "questions", questionIDs).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", questionIDs).Delete(&models.Question{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("content_id IN ?", contentIDs).Delete(&models.Link{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", contentIDs).Delete(&models.CourseContent{}).Error
}

func (r *GormRepo) DeleteCourse(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Course
		if err := tx.Select("id").Where("id = ?", id).First(&c).Error; err != nil {
			return err
		}

		var contentIDs []string
		if err := tx.Model(&models.CourseContent{}).Where("course_id = ?", id).Pluck("id", &contentIDs).Error; err != nil {
			return err
		}
		if err := deleteContents(tx, contentIDs); err != nil {
			return err
		}

		var reviewIDs []string
		if err := tx.Model(&models.Review{}).Where("course_id = ?", id).Pluck("id", &reviewIDs).Error; err != nil {
			return err
		}
		if len(reviewIDs) > 0 {
			if err := tx.Where("owner_type = ? AND owner_id IN ?", "reviews", reviewIDs).Delete(&models.Reply{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", reviewIDs).Delete(&models.Review{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("course_id = ?", id).Delete(&models.Benefit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&models.Prerequisite{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Course{}).Error
	})
}

func (r *GormRepo) ContentByID(ctx context.Context, courseID, contentID string) (*models.CourseContent, error) {
	var cc models.CourseContent
	if err := r.DB.WithContext(ctx).Where("id = ? AND course_id = ?", contentID, courseID).First(&cc).Error; err != nil {
		return nil, err
	}
	return &cc, nil
}

func (r *GormRepo) CreateQuestion(ctx context.Context, q *models.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *GormRepo) QuestionByID(ctx context.Context, contentID, questionID string) (*models.Question, error) {
	var q models.Question
	if err := r.DB.WithContext(ctx).Where("id = ? AND content_id = ?", questionID, contentID).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *GormRepo) AddQuestionReply(ctx context.Context, q *models.Question, reply *models.Reply) error {
	reply.OwnerID = q.ID
	reply.OwnerType = "questions"
	return r.DB.WithContext(ctx).Create(reply).Error
}

func (r *GormRepo) ListQuestions(ctx context.Context, contentID string, offset, limit int) (int64, []models.Question, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Question{}).Where("content_id = ?", contentID).Count(&total).Error; err != nil {
		return 0, nil, err
	}
	var qs []models.Question
	err := r.DB.WithContext(ctx).Preload("Replies", oldestFirst).
		Where("content_id = ?", contentID).
		Order("created_at desc").Offset(offset).Limit(limit).Find(&qs).Error
	if err != nil {
		return 0, nil, err
	}
	return total, qs, nil
}

// AddReview stores the review and recomputes the course average in one
// transaction.
func (r *GormRepo) AddReview(ctx context.Context, review *models.Review) (float64, error) {
	var avg float64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return err
		}
		var row struct{ Avg float64 }
		if err := tx.Model(&models.Review{}).Select("COALESCE(AVG(rating), 0) AS avg").
			Where("course_id = ?", review.CourseID).Scan(&row).Error; err != nil {
			return err
		}
		avg = row.Avg
		return tx.Model(&models.Course{}).Where("id = ?", review.CourseID).Update("ratings", avg).Error
	})
	return avg, err
}

func (r *GormRepo) ReviewByID(ctx context.Context, courseID, reviewID string) (*models.Review, error) {
	var rv models.Review
	if err := r.DB.WithContext(ctx).Where("id = ? AND course_id = ?", reviewID, courseID).First(&rv).Error; err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *GormRepo) AddReviewReply(ctx context.Context, rv *models.Review, reply *models.Reply) error {
	reply.OwnerID = rv.ID
	reply.OwnerType = "reviews"
	return r.DB.WithContext(ctx).Create(reply).Error
}

func (r *GormRepo) ListReviews(ctx context.Context, courseID string, offset, limit int) (int64, []models.Review, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Review{}).Where("course_id = ?", courseID).Count(&total).Error; err != nil {
		return 0, nil, err
	}
	var rs []models.Review
	err := r.DB.WithContext(ctx).Preload("Replies", oldestFirst).
		Where("course_id = ?", courseID).
		Order("created_at desc").Offset(offset).Limit(limit).Find(&rs).Error
	if err != nil {
		return 0, nil, err
	}
	return total, rs, nil
}

func (r *GormRepo) IncrementPurchased(ctx context.Context, courseID string) error {
	return r.DB.WithContext(ctx).Model(&models.Course{}).Where("id = ?", courseID).
		UpdateColumn("purchased", gorm.Expr("purchased + ?", 1)).Error
}
