// Package player records watch progress of a playing sub-lesson and picks the sub-lesson to open when a course player mounts.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/pot-code/course-player/internal/domain"
	infra "github.com/pot-code/course-player/internal/infrastructure"
	"go.uber.org/zap"
)

// DefaultThrottle minimum interval between two tick writes
const DefaultThrottle = 5 * time.Second

const (
	// a watch time covering this share of the duration counts as watched through
	completedRatio = 0.95
	// resumed sessions covering less than this percentage of the remaining part are asked to confirm
	promptPercent = 60.0
)

// ProgressStore persistence boundary of the tracker
type ProgressStore interface {
	GetProgress(ctx context.Context, subLessonID string) (*domain.WatchProgressModel, error)
	SaveProgress(ctx context.Context, subLessonID string, post *domain.ProgressWrite) (bool, error)
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replace time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLogger log swallowed persistence failures to logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithThrottle override DefaultThrottle
func WithThrottle(d time.Duration) Option {
	return func(t *Tracker) {
		t.throttle = d
	}
}

// Tracker turns playback events of one sub-lesson into progress writes.
//
// Writes are best-effort: failures are logged and the local state moves on regardless.
// Every write carries a sequence number larger than the previous one so the store can drop late arrivals.
type Tracker struct {
	mu    sync.Mutex
	store ProgressStore

	subLessonID      string
	status           domain.ProgressStatus
	watchTime        float64
	duration         *float64
	initialWatchTime float64
	pendingConfirm   bool

	seq           int64
	lastPersistAt time.Time

	now      func() time.Time
	logger   *zap.Logger
	throttle time.Duration
}

// NewTracker create a tracker from the progress loaded when the player mounted, progress may be nil
func NewTracker(store ProgressStore, subLessonID string, progress *domain.WatchProgressModel, opts ...Option) *Tracker {
	t := &Tracker{
		store:       store,
		subLessonID: subLessonID,
		status:      domain.StatusNotStarted,
		now:         time.Now,
		logger:      zap.NewNop(),
		throttle:    DefaultThrottle,
	}
	for _, opt := range opts {
		opt(t)
	}
	if progress != nil {
		if progress.Status != "" {
			t.status = progress.Status
		}
		t.watchTime = progress.WatchTime
		t.initialWatchTime = progress.WatchTime
		if progress.Duration != nil {
			d := *progress.Duration
			t.duration = &d
		}
	}
	return t
}

// LoadTracker fetch the stored progress then create the tracker.
//
// A failed fetch is logged and the tracker starts from a fresh record.
func LoadTracker(ctx context.Context, store ProgressStore, subLessonID string, opts ...Option) *Tracker {
	t := NewTracker(store, subLessonID, nil, opts...)
	var progress *domain.WatchProgressModel
	ok := infra.BestEffort(t.logger, "load progress", func() (err error) {
		progress, err = store.GetProgress(ctx, subLessonID)
		return
	})
	if !ok || progress == nil {
		return t
	}
	return NewTracker(store, subLessonID, progress, opts...)
}

// ResumePosition seek target when media metadata loads, a video watched through restarts from 0
func ResumePosition(watchTime, duration float64) float64 {
	if watchTime < duration*completedRatio {
		return watchTime
	}
	return 0
}

// OnMetadata record the media duration if unknown and return where playback should resume
func (t *Tracker) OnMetadata(duration float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.duration == nil && duration > 0 {
		t.duration = &duration
	}
	return ResumePosition(t.watchTime, duration)
}

// Status current local status
func (t *Tracker) Status() domain.ProgressStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// WatchTime current local watch time
func (t *Tracker) WatchTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watchTime
}

// PendingConfirmation whether playback ended and the learner has not answered the completion prompt yet
func (t *Tracker) PendingConfirmation() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingConfirm
}

// nextWrite snapshot the local state into a write, must be called with mu held
func (t *Tracker) nextWrite() *domain.ProgressWrite {
	seq := t.now().UnixNano()
	if seq <= t.seq {
		seq = t.seq + 1
	}
	t.seq = seq
	t.lastPersistAt = t.now()

	w := &domain.ProgressWrite{
		WatchTime: t.watchTime,
		Status:    t.status,
		Seq:       seq,
	}
	if t.duration != nil {
		d := *t.duration
		w.Duration = &d
	}
	return w
}

func (t *Tracker) persist(ctx context.Context, w *domain.ProgressWrite) {
	infra.BestEffort(t.logger, "save progress", func() error {
		_, err := t.store.SaveProgress(ctx, t.subLessonID, w)
		return err
	})
}

// OnPlaybackTick throttled position update, the first tick of a never started video is written at once
func (t *Tracker) OnPlaybackTick(ctx context.Context, currentTime float64) {
	t.mu.Lock()
	if t.status == domain.StatusCompleted {
		t.mu.Unlock()
		return
	}
	t.watchTime = currentTime

	var w *domain.ProgressWrite
	switch {
	case t.status == domain.StatusNotStarted:
		t.status = domain.StatusInProgress
		w = t.nextWrite()
	case t.lastPersistAt.IsZero() || t.now().Sub(t.lastPersistAt) >= t.throttle:
		w = t.nextWrite()
	}
	t.mu.Unlock()

	if w != nil {
		t.persist(ctx, w)
	}
}

// OnPlay ...
func (t *Tracker) OnPlay(ctx context.Context, currentTime float64) {
	t.persistNow(ctx, currentTime)
}

// OnPause ...
func (t *Tracker) OnPause(ctx context.Context, currentTime float64) {
	t.persistNow(ctx, currentTime)
}

// OnSeek ...
func (t *Tracker) OnSeek(ctx context.Context, currentTime float64) {
	t.persistNow(ctx, currentTime)
}

func (t *Tracker) persistNow(ctx context.Context, currentTime float64) {
	t.mu.Lock()
	if t.status == domain.StatusCompleted {
		t.mu.Unlock()
		return
	}
	t.watchTime = currentTime
	if t.status == domain.StatusNotStarted {
		t.status = domain.StatusInProgress
	}
	w := t.nextWrite()
	t.mu.Unlock()

	t.persist(ctx, w)
}

// OnPlaybackEnded decide whether the learner has to confirm the completion.
//
// When it returns true the caller shows the prompt and reports the answer through Confirm or Decline,
// otherwise the sub-lesson has been completed already.
func (t *Tracker) OnPlaybackEnded(ctx context.Context, endTime float64) bool {
	t.mu.Lock()
	if t.status == domain.StatusCompleted {
		t.mu.Unlock()
		return false
	}
	t.watchTime = endTime
	if t.duration == nil {
		d := endTime
		t.duration = &d
	}

	if shouldPrompt(t.initialWatchTime, endTime, *t.duration) {
		t.pendingConfirm = true
		t.mu.Unlock()
		return true
	}
	w := t.complete()
	t.mu.Unlock()

	t.persist(ctx, w)
	return false
}

func shouldPrompt(initialWatchTime, endTime, duration float64) bool {
	if initialWatchTime == 0 {
		return true
	}
	if initialWatchTime >= duration*completedRatio {
		return false
	}
	remaining := duration - initialWatchTime
	if remaining <= 0 {
		return false
	}
	watched := endTime - initialWatchTime
	// watched/remaining*100 < promptPercent, kept free of division rounding
	return watched*100 < promptPercent*remaining
}

// complete must be called with mu held
func (t *Tracker) complete() *domain.ProgressWrite {
	t.pendingConfirm = false
	t.status = domain.StatusCompleted
	if t.duration != nil {
		t.watchTime = *t.duration
	}
	return t.nextWrite()
}

// Confirm the learner certified the completion
func (t *Tracker) Confirm(ctx context.Context) {
	t.mu.Lock()
	if !t.pendingConfirm {
		t.mu.Unlock()
		return
	}
	w := t.complete()
	t.mu.Unlock()

	t.persist(ctx, w)
}

// Decline the learner wants to watch again, progress rewinds to where this session started.
//
// It returns the position playback should seek to.
func (t *Tracker) Decline(ctx context.Context) float64 {
	t.mu.Lock()
	if !t.pendingConfirm {
		pos := t.watchTime
		t.mu.Unlock()
		return pos
	}
	t.pendingConfirm = false
	t.status = domain.StatusInProgress
	t.watchTime = t.initialWatchTime
	w := t.nextWrite()
	t.mu.Unlock()

	t.persist(ctx, w)
	return w.WatchTime
}
