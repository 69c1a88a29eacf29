package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/elearning/internal/db/dbtest"
	"github.com/Skotchmaster/elearning/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	return New(dbtest.Open(t))
}

func seedCourse(t *testing.T, r *GormRepo) *models.Course {
	t.Helper()
	c := &models.Course{
		Name:          "Go basics",
		Description:   "learn go",
		Price:         10,
		Tags:          "go,backend",
		Level:         "beginner",
		DemoURL:       "demo",
		Benefits:      []models.Benefit{{Title: "fast"}},
		Prerequisites: []models.Prerequisite{{Title: "none"}},
		Content: []models.CourseContent{
			{Position: 0, Title: "intro", VideoURL: "v0", Links: []models.Link{{Title: "docs", URL: "https://go.dev"}}},
			{Position: 1, Title: "types", VideoURL: "v1"},
		},
	}
	require.NoError(t, r.CreateCourse(context.Background(), c))
	return c
}

func TestUser_CreateAndLookup(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := &models.User{Username: "alice", Email: "a@x.com", Password: "hash", Role: models.RoleUser}
	require.NoError(t, r.CreateUser(ctx, u))
	require.NotEmpty(t, u.ID)

	got, err := r.UserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.IsVerified)

	exists, err := r.EmailExists(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)

	taken, err := r.UsernameTaken(ctx, "alice", u.ID)
	require.NoError(t, err)
	assert.False(t, taken)
	taken, err = r.UsernameTaken(ctx, "alice", "")
	require.NoError(t, err)
	assert.True(t, taken)

	_, err = r.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUser_CoursesAndDelete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	u := &models.User{Username: "bob", Email: "b@x.com", Role: models.RoleUser}
	require.NoError(t, r.CreateUser(ctx, u))
	require.NoError(t, r.AddUserCourse(ctx, u.ID, "c1"))
	require.NoError(t, r.AddUserCourse(ctx, u.ID, "c1"))

	got, err := r.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got.Courses, 1)
	assert.True(t, got.Owns("c1"))

	require.NoError(t, r.DeleteUser(ctx, u.ID))
	assert.ErrorIs(t, r.DeleteUser(ctx, u.ID), gorm.ErrRecordNotFound)
}

func TestCourse_CreateLoadUpdate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	c := seedCourse(t, r)

	got, err := r.CourseByID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "intro", got.Content[0].Title)
	require.Len(t, got.Content[0].Links, 1)
	assert.Len(t, got.Benefits, 1)

	q := &models.Question{ContentID: got.Content[1].ID, UserID: "u1", Username: "alice", Text: "why?"}
	require.NoError(t, r.CreateQuestion(ctx, q))

	err = r.UpdateCourse(ctx, c.ID, CourseUpdate{
		Fields:   map[string]any{"name": "Go fundamentals", "price": 15.0},
		Benefits: []models.Benefit{{Title: "a"}, {Title: "b"}},
		Content: []models.CourseContent{
			{Title: "intro v2", Links: []models.Link{{Title: "x", URL: "y"}, {Title: "z", URL: "w"}}},
		},
	})
	require.NoError(t, err)

	got, err = r.CourseByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go fundamentals", got.Name)
	assert.EqualValues(t, 15, got.Price)
	assert.Len(t, got.Benefits, 2)
	assert.Len(t, got.Prerequisites, 1)
	require.Len(t, got.Content, 1)
	assert.Equal(t, "intro v2", got.Content[0].Title)
	assert.Len(t, got.Content[0].Links, 2)

	_, err = r.QuestionByID(ctx, q.ContentID, q.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, r.UpdateCourse(ctx, "missing", CourseUpdate{}), gorm.ErrRecordNotFound)
}

func TestCourse_ReviewsAndRatings(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	c := seedCourse(t, r)

	avg, err := r.AddReview(ctx, &models.Review{CourseID: c.ID, UserID: "u1", Rating: 5, Comment: "great"})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, avg, 0.001)

	rv := &models.Review{CourseID: c.ID, UserID: "u2", Rating: 2, Comment: "meh"}
	avg, err = r.AddReview(ctx, rv)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, avg, 0.001)

	require.NoError(t, r.AddReviewReply(ctx, rv, &models.Reply{UserID: "admin", Username: "admin", Text: "thanks"}))

	total, reviews, err := r.ListReviews(ctx, c.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, reviews, 2)

	got, err := r.CourseByID(ctx, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got.Ratings, 0.001)
	var replies int
	for _, rv := range got.Reviews {
		replies += len(rv.Replies)
	}
	assert.Equal(t, 1, replies)
}

func TestCourse_QuestionsReplies(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	c := seedCourse(t, r)
	contentID := c.Content[0].ID

	q := &models.Question{ContentID: contentID, UserID: "u1", Username: "alice", Text: "how?"}
	require.NoError(t, r.CreateQuestion(ctx, q))
	require.NoError(t, r.AddQuestionReply(ctx, q, &models.Reply{UserID: "u2", Username: "bob", Text: "like this"}))

	total, qs, err := r.ListQuestions(ctx, contentID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, qs, 1)
	require.Len(t, qs[0].Replies, 1)
	assert.Equal(t, "like this", qs[0].Replies[0].Text)
}

func TestCourse_SearchFeaturedDelete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	c := seedCourse(t, r)

	total, found, err := r.SearchCourses(ctx, "GO", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)

	featured, err := r.FeaturedCourses(ctx, 6)
	require.NoError(t, err)
	assert.Len(t, featured, 1)

	require.NoError(t, r.IncrementPurchased(ctx, c.ID))
	got, err := r.CourseByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Purchased)

	require.NoError(t, r.DeleteCourse(ctx, c.ID))
	_, err = r.CourseByID(ctx, c.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, r.DeleteCourse(ctx, c.ID), gorm.ErrRecordNotFound)

	var links int64
	require.NoError(t, r.DB.Model(&models.Link{}).Count(&links).Error)
	assert.Zero(t, links)
}

func TestNotifications_Cleanup(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	old := &models.Notification{Title: "old read", Message: "m", Status: models.NotificationRead}
	oldUnread := &models.Notification{Title: "old unread", Message: "m"}
	fresh := &models.Notification{Title: "fresh read", Message: "m", Status: models.NotificationRead}
	for _, n := range []*models.Notification{old, oldUnread, fresh} {
		require.NoError(t, r.CreateNotification(ctx, n))
	}
	past := time.Now().UTC().Add(-40 * 24 * time.Hour)
	require.NoError(t, r.DB.Model(&models.Notification{}).Where("id IN ?", []string{old.ID, oldUnread.ID}).
		UpdateColumn("created_at", past).Error)

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	n, err := r.DeleteReadNotificationsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = r.DeleteReadNotificationsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := r.ListNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, r.MarkNotificationRead(ctx, oldUnread.ID))
	err = r.MarkNotificationRead(ctx, "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestCountCreatedBetween(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.CreateOrder(ctx, &models.Order{CourseID: "c1", UserID: "u1"}))
	require.NoError(t, r.CreateOrder(ctx, &models.Order{CourseID: "c2", UserID: "u1"}))

	now := time.Now().UTC()
	n, err := r.CountCreatedBetween(ctx, &models.Order{}, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = r.CountCreatedBetween(ctx, &models.Order{}, now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
