package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-player/internal/domain"
	"github.com/pot-code/course-player/internal/draft"
	infra "github.com/pot-code/course-player/internal/infrastructure"
	"github.com/pot-code/course-player/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ player.ProgressStore        = (*Client)(nil)
	_ player.LatestProgressSource = (*Client)(nil)
	_ draft.SubmissionStore       = (*Client)(nil)
)

// newStandIn a minimal persistence API recording what it received
func newStandIn(t *testing.T) (*Client, *standIn) {
	s := &standIn{}
	app := echo.New()
	app.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s.authorization = c.Request().Header.Get(echo.HeaderAuthorization)
			return next(c)
		}
	})
	app.GET("/api/v1/courses/:courseId/outline", func(c echo.Context) error {
		if c.Param("courseId") != "c1" {
			return c.JSON(http.StatusNotFound, infra.NewRESTStandardError(http.StatusNotFound, domain.ErrCourseNotFound.Error()))
		}
		return c.JSON(http.StatusOK, &domain.CourseOutline{CourseID: "c1", Lessons: []*domain.LessonModel{
			{ID: "l1", SubLessons: []*domain.SubLessonModel{{ID: "s1"}}},
		}})
	})
	app.GET("/api/v1/progress/course/:courseId/latest", func(c echo.Context) error {
		return c.JSON(http.StatusOK, &domain.LatestProgress{HasProgress: true, LatestSubLesson: &domain.SubLessonRef{ID: "s1"}})
	})
	app.GET("/api/v1/progress/sub_lesson/:id", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"watch_time":42.5,"duration":100,"status":"in_progress"}`))
	})
	app.POST("/api/v1/progress/sub_lesson/:id", func(c echo.Context) error {
		post := new(domain.ProgressWrite)
		if err := c.Bind(post); err != nil {
			return err
		}
		s.progress = post
		s.subLessonID = c.Param("id")
		return c.JSON(http.StatusOK, &domain.ProgressAck{Applied: post.Seq > 1})
	})
	app.PUT("/api/v1/submission", func(c echo.Context) error {
		s.query = c.QueryParams()
		if c.QueryParam("assignmentId") == "missing" {
			return c.JSONBlob(http.StatusOK, []byte(`{"data":[]}`))
		}
		return c.JSONBlob(http.StatusOK, []byte(`{"data":[{"id":"x1","assignment_id":"a1","user_id":"u1","answer":"hi","status":"inprogress"}]}`))
	})
	app.POST("/api/v1/submission", func(c echo.Context) error {
		post := new(domain.SubmissionCreate)
		if err := c.Bind(post); err != nil {
			return err
		}
		if post.AssignmentID == "dup" {
			return c.JSON(http.StatusConflict, infra.NewRESTStandardError(http.StatusConflict, domain.ErrDuplicatedSubmission.Error()))
		}
		return c.JSON(http.StatusCreated, &domain.SubmissionModel{ID: "x2", AssignmentID: post.AssignmentID, Status: post.Status})
	})
	app.GET("/api/v1/users/:userId/submission", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []*domain.AssignmentModel{{ID: "a1", Status: domain.SubmissionOverdue}})
	})

	server := httptest.NewServer(app)
	t.Cleanup(server.Close)
	return New(&Config{BaseURL: server.URL + "/", Token: "tk", Timeout: time.Second}), s
}

type standIn struct {
	authorization string
	subLessonID   string
	progress      *domain.ProgressWrite
	query         map[string][]string
}

func TestReadEndpoints(t *testing.T) {
	ctx := context.Background()
	c, s := newStandIn(t)

	outline, err := c.GetCourseOutline(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "s1", outline.First().ID)
	assert.Equal(t, "Bearer tk", s.authorization)

	latest, err := c.GetLatestProgress(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, latest.HasProgress)
	assert.Equal(t, "s1", latest.LatestSubLesson.ID)

	progress, err := c.GetProgress(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", progress.SubLessonID)
	assert.Equal(t, 42.5, progress.WatchTime)
	assert.Equal(t, domain.StatusInProgress, progress.Status)
	require.NotNil(t, progress.Duration)
	assert.Equal(t, 100.0, *progress.Duration)

	assignments, err := c.ListUserAssignments(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, domain.SubmissionOverdue, assignments[0].Status)
}

func TestResponseError(t *testing.T) {
	c, _ := newStandIn(t)

	_, err := c.GetCourseOutline(context.Background(), "nope")
	require.Error(t, err)
	var re *ResponseError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.Equal(t, domain.ErrCourseNotFound.Error(), re.Detail)
}

func TestTransportError(t *testing.T) {
	c := New(&Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.GetLatestProgress(context.Background(), "c1")
	require.Error(t, err)
	var re *ResponseError
	assert.False(t, errors.As(err, &re))
}

func TestSaveProgress(t *testing.T) {
	ctx := context.Background()
	c, s := newStandIn(t)

	applied, err := c.SaveProgress(ctx, "s2", &domain.ProgressWrite{WatchTime: 7, Status: domain.StatusInProgress, Seq: 2})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "s2", s.subLessonID)
	assert.Equal(t, 7.0, s.progress.WatchTime)
	assert.Equal(t, int64(2), s.progress.Seq)

	applied, err = c.SaveProgress(ctx, "s2", &domain.ProgressWrite{WatchTime: 7, Seq: 1})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSubmissionEndpoints(t *testing.T) {
	ctx := context.Background()
	c, s := newStandIn(t)

	rows, err := c.UpdateSubmission(ctx, "a1", "u1", &domain.SubmissionUpdate{Answer: "hi", Status: domain.SubmissionInProgress, UpdatedAt: time.Now()})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "x1", rows[0].ID)
	assert.Equal(t, []string{"a1"}, s.query["assignmentId"])
	assert.Equal(t, []string{"u1"}, s.query["userId"])

	rows, err = c.UpdateSubmission(ctx, "missing", "u1", &domain.SubmissionUpdate{Status: domain.SubmissionPending, UpdatedAt: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, rows)

	created, err := c.CreateSubmission(ctx, &domain.SubmissionCreate{AssignmentID: "a1", UserID: "u1", Status: domain.SubmissionPending, SubmissionDate: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "x2", created.ID)

	_, err = c.CreateSubmission(ctx, &domain.SubmissionCreate{AssignmentID: "dup", UserID: "u1", Status: domain.SubmissionPending, SubmissionDate: time.Now()})
	assert.ErrorIs(t, err, domain.ErrDuplicatedSubmission)
}
