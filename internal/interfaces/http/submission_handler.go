package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-player/internal/domain"
	infra "github.com/pot-code/course-player/internal/infrastructure"
	"github.com/pot-code/course-player/internal/infrastructure/auth"
	"github.com/pot-code/course-player/internal/infrastructure/validate"
)

type SubmissionHandler struct {
	submissionUseCase domain.SubmissionUseCase
	validator         validate.Validator
	jwtUtil           *auth.JWTUtil
}

func NewSubmissionHandler(
	SubmissionUseCase domain.SubmissionUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *SubmissionHandler {
	handler := &SubmissionHandler{SubmissionUseCase, Validator, JWTUtil}
	return handler
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, infra.NewRESTStandardError(http.StatusForbidden, domain.ErrForbiddenUser.Error()))
}

// HandleUpdateSubmission an empty data list tells the caller to create the row instead
func (sh *SubmissionHandler) HandleUpdateSubmission(c echo.Context) (err error) {
	assignmentID := c.QueryParam("assignmentId")
	userID := c.QueryParam("userId")

	// validation
	var invalid []*validate.FieldError
	invalid = append(invalid, sh.validator.Empty("assignmentId", assignmentID)...)
	invalid = append(invalid, sh.validator.Empty("userId", userID)...)
	if len(invalid) > 0 {
		return c.JSON(http.StatusBadRequest, infra.NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", invalid))
	}
	if err := authorizeUser(c, sh.jwtUtil, userID); err != nil {
		return forbidden(c)
	}

	post := new(domain.SubmissionUpdate)
	if err = c.Bind(post); err != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			infra.NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind submission entity"))
	}
	if err := sh.validator.Struct(post); err != nil {
		return c.JSON(http.StatusBadRequest,
			infra.NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", err))
	}

	rows, err := sh.submissionUseCase.UpdateSubmission(c.Request().Context(), assignmentID, userID, post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &domain.SubmissionUpdateResult{Data: rows})
}

func (sh *SubmissionHandler) HandleCreateSubmission(c echo.Context) (err error) {
	post := new(domain.SubmissionCreate)
	if err = c.Bind(post); err != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			infra.NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind submission entity"))
	}
	if err := sh.validator.Struct(post); err != nil {
		return c.JSON(http.StatusBadRequest,
			infra.NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", err))
	}
	if err := authorizeUser(c, sh.jwtUtil, post.UserID); err != nil {
		return forbidden(c)
	}

	created, err := sh.submissionUseCase.CreateSubmission(c.Request().Context(), post)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatedSubmission) {
			return c.JSON(http.StatusConflict, infra.NewRESTStandardError(http.StatusConflict, err.Error()))
		}
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (sh *SubmissionHandler) HandleListUserSubmission(c echo.Context) (err error) {
	userID := c.Param("userId")
	if err := authorizeUser(c, sh.jwtUtil, userID); err != nil {
		return forbidden(c)
	}

	assignments, err := sh.submissionUseCase.ListUserAssignments(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, assignments)
}
