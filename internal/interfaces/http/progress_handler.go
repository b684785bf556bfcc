package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-player/internal/domain"
	infra "github.com/pot-code/course-player/internal/infrastructure"
	"github.com/pot-code/course-player/internal/infrastructure/auth"
	"github.com/pot-code/course-player/internal/infrastructure/logging"
	"github.com/pot-code/course-player/internal/infrastructure/validate"
	"go.uber.org/zap"
)

type ProgressHandler struct {
	progressUseCase domain.ProgressUseCase
	validator       validate.Validator
	jwtUtil         *auth.JWTUtil
}

func NewProgressHandler(
	ProgressUseCase domain.ProgressUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *ProgressHandler {
	handler := &ProgressHandler{ProgressUseCase, Validator, JWTUtil}
	return handler
}

func (ph *ProgressHandler) HandleGetLatestProgress(c echo.Context) (err error) {
	latest, err := ph.progressUseCase.GetLatestProgress(c.Request().Context(), currentUser(c, ph.jwtUtil), c.Param("courseId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, latest)
}

func (ph *ProgressHandler) HandleGetProgress(c echo.Context) (err error) {
	progress, err := ph.progressUseCase.GetUserProgress(c.Request().Context(), currentUser(c, ph.jwtUtil), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, progress)
}

func (ph *ProgressHandler) HandlePostProgress(c echo.Context) (err error) {
	post := new(domain.ProgressWrite)
	if err = c.Bind(post); err != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			infra.NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind progress entity"))
	}
	if err := ph.validator.Struct(post); err != nil {
		return c.JSON(http.StatusBadRequest,
			infra.NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", err))
	}

	applied, err := ph.progressUseCase.RecordProgress(c.Request().Context(), currentUser(c, ph.jwtUtil), c.Param("id"), post)
	if err != nil {
		if errors.Is(err, domain.ErrSubLessonNotFound) {
			return c.JSON(http.StatusNotFound, infra.NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, &domain.ProgressAck{Applied: applied})
}

// HandleProgressStream progress writes over websocket, one JSON frame in, one ack out
func (ph *ProgressHandler) HandleProgressStream(c echo.Context, conn *websocket.Conn) error {
	_, message, err := conn.ReadMessage()
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	frame := new(domain.ProgressStreamFrame)
	if err := json.Unmarshal(message, frame); err != nil {
		return conn.WriteJSON(&domain.ProgressAck{Error: "malformed frame"})
	}
	if errs := ph.validator.Struct(frame); errs != nil {
		return conn.WriteJSON(&domain.ProgressAck{SubLessonID: frame.SubLessonID, Error: errs[0].Reason})
	}

	ack := &domain.ProgressAck{SubLessonID: frame.SubLessonID}
	ack.Applied, err = ph.progressUseCase.RecordProgress(ctx, currentUser(c, ph.jwtUtil), frame.SubLessonID, &frame.ProgressWrite)
	if err != nil {
		if !errors.Is(err, domain.ErrSubLessonNotFound) {
			logging.ExtractLoggerFromContext(ctx).Error("failed to record streamed progress",
				zap.String("sub_lesson.id", frame.SubLessonID), zap.Error(err))
		}
		ack.Error = err.Error()
	}
	return conn.WriteJSON(ack)
}
