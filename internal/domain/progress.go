package domain

import "context"

// ProgressStatus watch state of a sub-lesson for one user
type ProgressStatus string

// progress status
const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

// WatchProgressModel one record per (user, sub-lesson)
type WatchProgressModel struct {
	UserID      string         `json:"-"`
	SubLessonID string         `json:"-"`
	WatchTime   float64        `json:"watch_time"`
	Duration    *float64       `json:"duration"`
	Status      ProgressStatus `json:"status"`
	Seq         int64          `json:"-"`
	UpdatedAt   int64          `json:"-"` // milliseconds
}

// ProgressWrite body of a progress write, status and duration are optional
type ProgressWrite struct {
	WatchTime float64        `json:"watch_time" validate:"min=0"`
	Status    ProgressStatus `json:"status,omitempty" validate:"omitempty,oneof=not_started in_progress completed"`
	Duration  *float64       `json:"duration,omitempty" validate:"omitempty,min=0"`
	Seq       int64          `json:"seq" validate:"min=0"`
}

// ProgressStreamFrame progress write received over websocket
type ProgressStreamFrame struct {
	SubLessonID string `json:"sub_lesson_id" validate:"required"`
	ProgressWrite
}

// ProgressAck write result
type ProgressAck struct {
	SubLessonID string `json:"sub_lesson_id,omitempty"`
	Applied     bool   `json:"applied"`
	Error       string `json:"error,omitempty"`
}

// SubLessonRef .
type SubLessonRef struct {
	ID string `json:"id"`
}

// LatestProgress most recently touched sub-lesson of a course
type LatestProgress struct {
	HasProgress     bool          `json:"hasProgress"`
	LatestSubLesson *SubLessonRef `json:"latestSubLesson,omitempty"`
}

type ProgressRepository interface {
	GetProgress(ctx context.Context, userID, subLessonID string) (*WatchProgressModel, error)
	// SaveProgress persists p unless the stored record carries a seq >= p.Seq
	SaveProgress(ctx context.Context, p *WatchProgressModel) (bool, error)
	GetLatestSubLesson(ctx context.Context, userID, courseID string) (string, error)
}

type ProgressUseCase interface {
	GetUserProgress(ctx context.Context, userID, subLessonID string) (*WatchProgressModel, error)
	RecordProgress(ctx context.Context, userID, subLessonID string, post *ProgressWrite) (bool, error)
	GetLatestProgress(ctx context.Context, userID, courseID string) (*LatestProgress, error)
}
