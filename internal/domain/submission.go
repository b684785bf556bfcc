package domain

import (
	"context"
	"time"
)

// SubmissionStatus status of a submission record
type SubmissionStatus string

// submission status
const (
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionInProgress SubmissionStatus = "inprogress"
	SubmissionSubmitted  SubmissionStatus = "submitted"
	SubmissionOverdue    SubmissionStatus = "overdue"
)

// SubmissionModel durable answer of a user for an assignment, unique by (assignment, user)
type SubmissionModel struct {
	ID             string           `json:"id"`
	AssignmentID   string           `json:"assignment_id"`
	UserID         string           `json:"user_id"`
	Answer         string           `json:"answer"`
	Status         SubmissionStatus `json:"status"`
	SubmissionDate *time.Time       `json:"submission_date,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SubmissionUpdate PUT /submission body
type SubmissionUpdate struct {
	Answer         string           `json:"answer"`
	Status         SubmissionStatus `json:"status" validate:"required,oneof=pending inprogress submitted overdue"`
	UpdatedAt      time.Time        `json:"updated_at" validate:"required"`
	SubmissionDate *time.Time       `json:"submission_date,omitempty"`
}

// SubmissionCreate POST /submission body
type SubmissionCreate struct {
	AssignmentID   string           `json:"assignment_id" validate:"required"`
	UserID         string           `json:"user_id" validate:"required"`
	Answer         string           `json:"answer"`
	Status         SubmissionStatus `json:"status" validate:"required,oneof=pending inprogress submitted overdue"`
	SubmissionDate time.Time        `json:"submission_date" validate:"required"`
}

// SubmissionUpdateResult an empty Data means no existing row
type SubmissionUpdateResult struct {
	Data []*SubmissionModel `json:"data"`
}

type AssignmentModel struct {
	ID          string           `json:"id"`
	CourseID    string           `json:"course_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	DueAt       *time.Time       `json:"due_at,omitempty"`
	Status      SubmissionStatus `json:"status"` // derived, overdue once due passed without a submission
	Submission  *SubmissionModel `json:"submission,omitempty"`
}

type SubmissionRepository interface {
	// UpdateSubmission returns nil when no row matches
	UpdateSubmission(ctx context.Context, assignmentID, userID string, post *SubmissionUpdate) (*SubmissionModel, error)
	CreateSubmission(ctx context.Context, post *SubmissionModel) error
	ListAssignmentsByUser(ctx context.Context, userID string) ([]*AssignmentModel, error)
}

type SubmissionUseCase interface {
	UpdateSubmission(ctx context.Context, assignmentID, userID string, post *SubmissionUpdate) ([]*SubmissionModel, error)
	CreateSubmission(ctx context.Context, post *SubmissionCreate) (*SubmissionModel, error)
	ListUserAssignments(ctx context.Context, userID string) ([]*AssignmentModel, error)
}
