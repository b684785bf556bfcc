package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-player/internal/domain"
	infra "github.com/pot-code/course-player/internal/infrastructure"
)

type CourseHandler struct {
	courseUseCase domain.CourseUseCase
}

func NewCourseHandler(CourseUseCase domain.CourseUseCase) *CourseHandler {
	handler := &CourseHandler{CourseUseCase}
	return handler
}

func (ch *CourseHandler) HandleGetOutline(c echo.Context) (err error) {
	outline, err := ch.courseUseCase.GetCourseOutline(c.Request().Context(), c.Param("courseId"))
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return c.JSON(http.StatusNotFound, infra.NewRESTStandardError(http.StatusNotFound, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusOK, outline)
}
