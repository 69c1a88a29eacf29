package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/elearning/internal/logging"
	authmw "github.com/Skotchmaster/elearning/internal/middleware/auth"
	"github.com/Skotchmaster/elearning/internal/service"
	"github.com/Skotchmaster/elearning/internal/transport"
	"github.com/Skotchmaster/elearning/internal/util"
)

type CourseHTTP struct {
	Svc *service.CourseService
}

func pageParams(c echo.Context) (int, int) {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	return page, size
}

func (h *CourseHTTP) CreateCourse(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_create")

	var req transport.CourseRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("create_course_error", "status", 400, "error", err)
		return err
	}

	course, err := h.Svc.CreateCourse(ctx, req)
	if err != nil {
		l.Error("create_course_failed", "error", err)
		return err
	}
	l.Info("course_created", "course_id", course.ID)
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "course": course})
}

func (h *CourseHTTP) EditCourse(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_edit")

	var req transport.CourseRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("edit_course_error", "status", 400, "error", err)
		return err
	}

	id := c.Param("id")
	course, err := h.Svc.EditCourse(ctx, id, req)
	if err != nil {
		l.Warn("edit_course_failed", "course_id", id, "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "course": course})
}

func (h *CourseHTTP) GetCourse(c echo.Context) error {
	ctx := c.Request().Context()

	course, err := h.Svc.GetCourse(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "course": course})
}

func (h *CourseHTTP) GetCourses(c echo.Context) error {
	courses, err := h.Svc.GetCourses(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "courses": courses})
}

func (h *CourseHTTP) FeaturedCourses(c echo.Context) error {
	courses, err := h.Svc.FeaturedCourses(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "courses": courses})
}

func (h *CourseHTTP) SearchCourses(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_search")

	page, size := pageParams(c)
	res, err := h.Svc.SearchCourses(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		l.Error("search_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CourseHTTP) GetCourseContent(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_content")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	content, err := h.Svc.GetCourseContent(ctx, u, c.Param("id"))
	if err != nil {
		l.Warn("course_content_denied", "course_id", c.Param("id"), "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "content": content})
}

func (h *CourseHTTP) AddQuestion(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_add_question")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	var req transport.QuestionRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("add_question_error", "status", 400, "error", err)
		return err
	}

	q, err := h.Svc.AddQuestion(ctx, u, req)
	if err != nil {
		l.Warn("add_question_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "question": q})
}

func (h *CourseHTTP) AddAnswer(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_add_answer")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	var req transport.AnswerRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("add_answer_error", "status", 400, "error", err)
		return err
	}

	reply, err := h.Svc.AddAnswer(ctx, u, req)
	if err != nil {
		l.Warn("add_answer_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "reply": reply})
}

func (h *CourseHTTP) AddReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_add_review")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	var req transport.ReviewRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("add_review_error", "status", 400, "error", err)
		return err
	}

	course, err := h.Svc.AddReview(ctx, u, c.Param("id"), req)
	if err != nil {
		l.Warn("add_review_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "course": course})
}

func (h *CourseHTTP) AddReplyToReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_add_reply")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	var req transport.ReviewReplyRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("add_reply_error", "status", 400, "error", err)
		return err
	}

	reply, err := h.Svc.AddReplyToReview(ctx, u, req)
	if err != nil {
		l.Warn("add_reply_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "reply": reply})
}

func (h *CourseHTTP) ListQuestions(c echo.Context) error {
	page, size := pageParams(c)
	res, err := h.Svc.ListQuestions(c.Request().Context(), c.Param("id"), c.QueryParam("contentId"), page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CourseHTTP) ListReviews(c echo.Context) error {
	page, size := pageParams(c)
	res, err := h.Svc.ListReviews(c.Request().Context(), c.Param("id"), page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CourseHTTP) AdminCourses(c echo.Context) error {
	page, size := pageParams(c)
	res, err := h.Svc.AdminCourses(c.Request().Context(), page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *CourseHTTP) DeleteCourse(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "course_delete")

	id := c.Param("id")
	if err := h.Svc.DeleteCourse(ctx, id); err != nil {
		l.Warn("delete_course_failed", "course_id", id, "error", err)
		return err
	}
	l.Info("course_deleted", "course_id", id)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Course deleted successfully",
	})
}
