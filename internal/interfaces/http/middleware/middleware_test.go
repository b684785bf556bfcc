package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	infra "github.com/pot-code/course-player/internal/infrastructure"
	"github.com/pot-code/course-player/internal/infrastructure/auth"
	"github.com/pot-code/course-player/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestErrorHandling(t *testing.T) {
	tests := []struct {
		name     string
		handler  echo.HandlerFunc
		wantCode int
		wantLogs int
	}{
		{"plain error", func(c echo.Context) error { return errors.New("db down") }, http.StatusInternalServerError, 1},
		{"http error", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "bad") }, http.StatusBadRequest, 0},
		{"panic", func(c echo.Context) error { panic("boom") }, http.StatusInternalServerError, 1},
		{"ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, http.StatusNoContent, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
			c.Response().Header().Set(echo.HeaderXRequestID, "rid")

			err := ErrorHandling(&ErrorHandlingOption{Logger: zap.New(core)})(tt.handler)(c)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLogs, logs.Len())

			if tt.wantCode >= http.StatusBadRequest {
				var body infra.RESTStandardError
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantCode, body.Code)
				assert.Equal(t, "rid", body.TraceID)
			}
		})
	}
}

func TestNoRouteMatched(t *testing.T) {
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/nope", nil))
	err := NoRouteMatched()(func(c echo.Context) error { return echo.ErrNotFound })(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestVerifyToken(t *testing.T) {
	ju := auth.NewJWTUtil("HS256", "secret", "course_token")
	valid, err := ju.Sign(&auth.AppTokenClaims{UID: "u1"})
	require.NoError(t, err)
	revoked, err := ju.Sign(&auth.AppTokenClaims{UID: "u2"})
	require.NoError(t, err)

	mw := VerifyToken(ju, &ValidateTokenOption{
		InBlackList: func(ctx context.Context, token string) (bool, error) {
			return token == revoked, nil
		},
	})
	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			c, rec := newContext(req)
			err := mw(func(c echo.Context) error {
				assert.Equal(t, "u1", ju.GetContextToken(c).UID)
				return c.NoContent(http.StatusOK)
			})(c)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestAbortRequest(t *testing.T) {
	c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	err := AbortRequest(&AbortRequestOption{Timeout: time.Minute})(func(c echo.Context) error {
		_, ok := c.Request().Context().Deadline()
		assert.True(t, ok)
		return nil
	})(c)
	require.NoError(t, err)

	c, _ = newContext(httptest.NewRequest(http.MethodGet, "/ws", nil))
	err = AbortRequest(&AbortRequestOption{
		Timeout: time.Minute,
		Skipper: func(echo.Context) bool { return true },
	})(func(c echo.Context) error {
		_, ok := c.Request().Context().Deadline()
		assert.False(t, ok)
		return nil
	})(c)
	require.NoError(t, err)
}

func TestSetTraceLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Response().Header().Set(echo.HeaderXRequestID, "rid")

	err := SetTraceLogger(zap.New(core))(func(c echo.Context) error {
		logging.ExtractLoggerFromContext(c.Request().Context()).Info("hello")
		return nil
	})(c)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "rid", logs.All()[0].ContextMap()["trace.id"])
}
