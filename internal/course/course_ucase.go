package course

import (
	"context"

	"github.com/pot-code/course-player/internal/domain"
	"go.elastic.co/apm"
)

// CourseUseCaseImpl ...
type CourseUseCaseImpl struct {
	CourseRepository domain.CourseRepository
}

var _ domain.CourseUseCase = &CourseUseCaseImpl{}

// NewCourseUseCase ...
func NewCourseUseCase(
	CourseRepository domain.CourseRepository,
) *CourseUseCaseImpl {
	return &CourseUseCaseImpl{CourseRepository}
}

// GetCourseOutline ordered lessons and sub-lessons of a course
func (cu *CourseUseCaseImpl) GetCourseOutline(ctx context.Context, courseID string) (*domain.CourseOutline, error) {
	apmSpan, _ := apm.StartSpan(ctx, "CourseUseCaseImpl.GetCourseOutline", "service")
	defer apmSpan.End()

	outline, err := cu.CourseRepository.GetOutline(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if outline == nil {
		return nil, domain.ErrCourseNotFound
	}
	return outline, nil
}
