package submission

import (
	"context"
	"time"

	"github.com/pot-code/course-player/internal/domain"
	"github.com/pot-code/course-player/internal/infrastructure/uuid"
	"go.elastic.co/apm"
)

// SubmissionUseCaseImpl ...
type SubmissionUseCaseImpl struct {
	SubmissionRepository domain.SubmissionRepository
	UUIDGenerator        uuid.Generator
	Now                  func() time.Time
}

var _ domain.SubmissionUseCase = &SubmissionUseCaseImpl{}

// NewSubmissionUseCase ...
func NewSubmissionUseCase(
	SubmissionRepository domain.SubmissionRepository,
	UUIDGenerator uuid.Generator,
) *SubmissionUseCaseImpl {
	return &SubmissionUseCaseImpl{
		SubmissionRepository: SubmissionRepository,
		UUIDGenerator:        UUIDGenerator,
		Now:                  time.Now,
	}
}

// UpdateSubmission the result is empty when the user has no submission for the assignment yet
func (su *SubmissionUseCaseImpl) UpdateSubmission(ctx context.Context, assignmentID, userID string, post *domain.SubmissionUpdate) ([]*domain.SubmissionModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "SubmissionUseCaseImpl.UpdateSubmission", "service")
	defer apmSpan.End()

	updated, err := su.SubmissionRepository.UpdateSubmission(ctx, assignmentID, userID, post)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return []*domain.SubmissionModel{}, nil
	}
	return []*domain.SubmissionModel{updated}, nil
}

// CreateSubmission ...
func (su *SubmissionUseCaseImpl) CreateSubmission(ctx context.Context, post *domain.SubmissionCreate) (*domain.SubmissionModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "SubmissionUseCaseImpl.CreateSubmission", "service")
	defer apmSpan.End()

	id, err := su.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	submissionDate := post.SubmissionDate
	model := &domain.SubmissionModel{
		ID:             id,
		AssignmentID:   post.AssignmentID,
		UserID:         post.UserID,
		Answer:         post.Answer,
		Status:         post.Status,
		SubmissionDate: &submissionDate,
		UpdatedAt:      su.Now(),
	}
	if err := su.SubmissionRepository.CreateSubmission(ctx, model); err != nil {
		return nil, err
	}
	return model, nil
}

// ListUserAssignments assignments with the user's submission and the derived status
func (su *SubmissionUseCaseImpl) ListUserAssignments(ctx context.Context, userID string) ([]*domain.AssignmentModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "SubmissionUseCaseImpl.ListUserAssignments", "service")
	defer apmSpan.End()

	assignments, err := su.SubmissionRepository.ListAssignmentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := su.Now()
	for _, a := range assignments {
		a.Status = deriveStatus(a, now)
	}
	return assignments, nil
}

func deriveStatus(a *domain.AssignmentModel, now time.Time) domain.SubmissionStatus {
	status := domain.SubmissionPending
	if a.Submission != nil {
		status = a.Submission.Status
	}
	if status == domain.SubmissionSubmitted {
		return status
	}
	if a.DueAt != nil && now.After(*a.DueAt) {
		return domain.SubmissionOverdue
	}
	return status
}
