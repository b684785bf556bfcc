// Package client talks to the course persistence API on behalf of the player and the assignment editor.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/pot-code/course-player/internal/domain"
	infra "github.com/pot-code/course-player/internal/infrastructure"
)

// Config client options
type Config struct {
	BaseURL string        // service root, eg.http://127.0.0.1:8081
	Token   string        // bearer token of the signed in user
	Timeout time.Duration // per request timeout, 10s if zero
}

// ResponseError the service replied with a non-2xx status
type ResponseError struct {
	StatusCode int
	Detail     string
}

func (re *ResponseError) Error() string {
	if re.Detail == "" {
		return fmt.Sprintf("persistence service replied %d %s", re.StatusCode, http.StatusText(re.StatusCode))
	}
	return fmt.Sprintf("persistence service replied %d: %s", re.StatusCode, re.Detail)
}

// Client persistence API client
type Client struct {
	http *resty.Client
}

// New create a Client
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/api/v1").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	return &Client{http: rc}
}

func (c *Client) request(ctx context.Context, result interface{}) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(new(infra.RESTStandardError))
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errors.Wrap(err, op)
	}
	if resp.IsError() {
		re := &ResponseError{StatusCode: resp.StatusCode()}
		if body, ok := resp.Error().(*infra.RESTStandardError); ok && body != nil {
			re.Detail = body.Detail
		}
		return errors.WithMessage(re, op)
	}
	return nil
}

// GetCourseOutline ...
func (c *Client) GetCourseOutline(ctx context.Context, courseID string) (*domain.CourseOutline, error) {
	outline := new(domain.CourseOutline)
	resp, err := c.request(ctx, outline).
		SetPathParam("courseId", courseID).
		Get("/courses/{courseId}/outline")
	if err := check(resp, err, "get course outline"); err != nil {
		return nil, err
	}
	return outline, nil
}

// GetLatestProgress ...
func (c *Client) GetLatestProgress(ctx context.Context, courseID string) (*domain.LatestProgress, error) {
	latest := new(domain.LatestProgress)
	resp, err := c.request(ctx, latest).
		SetPathParam("courseId", courseID).
		Get("/progress/course/{courseId}/latest")
	if err := check(resp, err, "get latest progress"); err != nil {
		return nil, err
	}
	return latest, nil
}

// GetProgress progress of the signed in user
func (c *Client) GetProgress(ctx context.Context, subLessonID string) (*domain.WatchProgressModel, error) {
	progress := new(domain.WatchProgressModel)
	resp, err := c.request(ctx, progress).
		SetPathParam("id", subLessonID).
		Get("/progress/sub_lesson/{id}")
	if err := check(resp, err, "get progress"); err != nil {
		return nil, err
	}
	progress.SubLessonID = subLessonID
	return progress, nil
}

// SaveProgress reports whether the service applied the write
func (c *Client) SaveProgress(ctx context.Context, subLessonID string, post *domain.ProgressWrite) (bool, error) {
	ack := new(domain.ProgressAck)
	resp, err := c.request(ctx, ack).
		SetPathParam("id", subLessonID).
		SetBody(post).
		Post("/progress/sub_lesson/{id}")
	if err := check(resp, err, "save progress"); err != nil {
		return false, err
	}
	return ack.Applied, nil
}

// UpdateSubmission an empty result means there is no row to update
func (c *Client) UpdateSubmission(ctx context.Context, assignmentID, userID string, post *domain.SubmissionUpdate) ([]*domain.SubmissionModel, error) {
	result := new(domain.SubmissionUpdateResult)
	resp, err := c.request(ctx, result).
		SetQueryParams(map[string]string{
			"assignmentId": assignmentID,
			"userId":       userID,
		}).
		SetBody(post).
		Put("/submission")
	if err := check(resp, err, "update submission"); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// CreateSubmission returns domain.ErrDuplicatedSubmission when the row already exists
func (c *Client) CreateSubmission(ctx context.Context, post *domain.SubmissionCreate) (*domain.SubmissionModel, error) {
	created := new(domain.SubmissionModel)
	resp, err := c.request(ctx, created).
		SetBody(post).
		Post("/submission")
	if err == nil && resp.StatusCode() == http.StatusConflict {
		return nil, domain.ErrDuplicatedSubmission
	}
	if err := check(resp, err, "create submission"); err != nil {
		return nil, err
	}
	return created, nil
}

// ListUserAssignments ...
func (c *Client) ListUserAssignments(ctx context.Context, userID string) ([]*domain.AssignmentModel, error) {
	var assignments []*domain.AssignmentModel
	resp, err := c.request(ctx, &assignments).
		SetPathParam("userId", userID).
		Get("/users/{userId}/submission")
	if err := check(resp, err, "list assignments"); err != nil {
		return nil, err
	}
	return assignments, nil
}
