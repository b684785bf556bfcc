// Package draft keeps unsaved assignment answers in sync with their submission records.
package draft

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pot-code/course-player/internal/domain"
	infra "github.com/pot-code/course-player/internal/infrastructure"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultAutosaveSpec cron spec of the autosave timer
const DefaultAutosaveSpec = "@every 30s"

// SubmissionStore persistence boundary of the synchronizer
type SubmissionStore interface {
	// UpdateSubmission returns an empty slice when there is no row for (assignment, user)
	UpdateSubmission(ctx context.Context, assignmentID, userID string, post *domain.SubmissionUpdate) ([]*domain.SubmissionModel, error)
	CreateSubmission(ctx context.Context, post *domain.SubmissionCreate) (*domain.SubmissionModel, error)
	ListUserAssignments(ctx context.Context, userID string) ([]*domain.AssignmentModel, error)
}

// Decision answer of the navigation prompt
type Decision int

// navigation decisions
const (
	DecisionStay Decision = iota
	DecisionSave
	DecisionDiscard
)

// Prompt asks the learner what to do with unsaved answers, it is only called when some are dirty
type Prompt func(ctx context.Context) Decision

type draftAnswer struct {
	text          string
	dirty         bool
	lastSavedText string
	lastSavedAt   time.Time
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithClock replace time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// WithLogger ...
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithAutosaveSpec override DefaultAutosaveSpec
func WithAutosaveSpec(spec string) Option {
	return func(s *Synchronizer) {
		s.autosaveSpec = spec
	}
}

// Synchronizer owns the drafts of one assignments view.
//
// Create one per view, Start it when the view mounts and Close it when the view goes away.
type Synchronizer struct {
	mu     sync.Mutex
	drafts map[string]*draftAnswer

	// serializes writes so that no two flushes target one assignment at the same time
	flushMu sync.Mutex

	store  SubmissionStore
	userID string

	now          func() time.Time
	logger       *zap.Logger
	autosaveSpec string
	scheduler    *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSynchronizer ...
func NewSynchronizer(store SubmissionStore, userID string, opts ...Option) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		drafts:       make(map[string]*draftAnswer),
		store:        store,
		userID:       userID,
		now:          time.Now,
		logger:       zap.NewNop(),
		autosaveSpec: DefaultAutosaveSpec,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// bind derive a context that is also cancelled by Close
func (s *Synchronizer) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Load seed drafts with the answers already stored, drafts with unsaved edits are kept
func (s *Synchronizer) Load(ctx context.Context) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()

	assignments, err := s.store.ListUserAssignments(ctx, s.userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range assignments {
		if a.Submission == nil {
			continue
		}
		if d, ok := s.drafts[a.ID]; ok && d.dirty {
			continue
		}
		s.drafts[a.ID] = &draftAnswer{
			text:          a.Submission.Answer,
			lastSavedText: a.Submission.Answer,
			lastSavedAt:   a.Submission.UpdatedAt,
		}
	}
	return nil
}

// Answer current local answer of an assignment
func (s *Synchronizer) Answer(assignmentID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[assignmentID]; ok {
		return d.text, true
	}
	return "", false
}

// LastSavedAt when the answer was last stored, zero if never
func (s *Synchronizer) LastSavedAt(assignmentID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[assignmentID]; ok {
		return d.lastSavedAt
	}
	return time.Time{}
}

// IsDirty ...
func (s *Synchronizer) IsDirty(assignmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[assignmentID]
	return ok && d.dirty
}

// DirtyIDs sorted ids of the assignments with unsaved edits
func (s *Synchronizer) DirtyIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(d *draftAnswer) bool { return d.dirty })
}

// collect must be called with mu held
func (s *Synchronizer) collect(match func(d *draftAnswer) bool) []string {
	var ids []string
	for id, d := range s.drafts {
		if match(d) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// OnAnswerChange record an edit, setting the answer to its current value is a no-op
func (s *Synchronizer) OnAnswerChange(assignmentID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[assignmentID]
	if !ok {
		d = new(draftAnswer)
		s.drafts[assignmentID] = d
	}
	if d.text == text {
		return
	}
	d.text = text
	d.dirty = true
}

func statusOf(text string) domain.SubmissionStatus {
	if strings.TrimSpace(text) == "" {
		return domain.SubmissionPending
	}
	return domain.SubmissionInProgress
}

// write update the submission of (assignment, user), falling back to create when there is no row
func (s *Synchronizer) write(ctx context.Context, assignmentID, text string, status domain.SubmissionStatus) error {
	now := s.now()
	update := &domain.SubmissionUpdate{Answer: text, Status: status, UpdatedAt: now}
	if status == domain.SubmissionSubmitted {
		update.SubmissionDate = &now
	}

	rows, err := s.store.UpdateSubmission(ctx, assignmentID, s.userID, update)
	if err != nil || len(rows) > 0 {
		return err
	}
	_, err = s.store.CreateSubmission(ctx, &domain.SubmissionCreate{
		AssignmentID:   assignmentID,
		UserID:         s.userID,
		Answer:         text,
		Status:         status,
		SubmissionDate: now,
	})
	if errors.Is(err, domain.ErrDuplicatedSubmission) {
		// created in the meantime, it can be updated now
		_, err = s.store.UpdateSubmission(ctx, assignmentID, s.userID, update)
	}
	return err
}

// flush must be called with flushMu held
func (s *Synchronizer) flush(ctx context.Context, assignmentID string) error {
	s.mu.Lock()
	d, ok := s.drafts[assignmentID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	text := d.text
	s.mu.Unlock()

	if err := s.write(ctx, assignmentID, text, statusOf(text)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the draft may have been discarded or edited while the request was in flight
	if s.drafts[assignmentID] != d || s.ctx.Err() != nil {
		return nil
	}
	d.lastSavedText = text
	d.lastSavedAt = s.now()
	if d.text == text {
		d.dirty = false
	}
	return nil
}

// flushIDs flush assignments concurrently, a failed one stays dirty and does not stop the others
func (s *Synchronizer) flushIDs(ctx context.Context, ids []string) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.flush(ctx, id); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("flush assignment %s: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errs
}

// Flush save one assignment
func (s *Synchronizer) Flush(ctx context.Context, assignmentID string) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.flush(ctx, assignmentID)
}

// FlushAll save every dirty assignment concurrently, the returned error aggregates the failed ones
func (s *Synchronizer) FlushAll(ctx context.Context) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.flushIDs(ctx, s.DirtyIDs())
}

// AutosaveTick one autosave round, only drafts whose text differs from the last saved one are written
func (s *Synchronizer) AutosaveTick(ctx context.Context) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	changed := s.collect(func(d *draftAnswer) bool { return d.dirty && d.text != d.lastSavedText })
	for _, id := range s.collect(func(d *draftAnswer) bool { return d.dirty && d.text == d.lastSavedText }) {
		// edited back to what is stored
		s.drafts[id].dirty = false
	}
	s.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	return s.flushIDs(ctx, changed)
}

// Start schedule the autosave timer, a started synchronizer is left as is
func (s *Synchronizer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(s.autosaveSpec, func() {
		if err := s.AutosaveTick(s.ctx); err != nil {
			s.logger.Warn("autosave failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule autosave: %w", err)
	}
	s.scheduler = scheduler
	scheduler.Start()
	return nil
}

// Close stop the autosave timer, abandon in-flight writes and drop every draft
func (s *Synchronizer) Close() {
	s.cancel()

	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	s.mu.Lock()
	s.drafts = make(map[string]*draftAnswer)
	s.mu.Unlock()
}

// Discard drop the local draft of an assignment
func (s *Synchronizer) Discard(assignmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, assignmentID)
}

// Submit store the current answer as submitted and clear the draft
func (s *Synchronizer) Submit(ctx context.Context, assignmentID string) error {
	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	var text string
	if d, ok := s.drafts[assignmentID]; ok {
		text = d.text
	}
	s.mu.Unlock()

	if err := s.write(ctx, assignmentID, text, domain.SubmissionSubmitted); err != nil {
		return err
	}
	s.Discard(assignmentID)
	return nil
}

// BeforeUnload whether the page should ask before closing, nothing can be saved at this point
func (s *Synchronizer) BeforeUnload() bool {
	return len(s.DirtyIDs()) > 0
}

// GuardNavigation run before leaving the assignments view, it reports whether navigation may proceed.
//
// With unsaved answers the learner is prompted: save then go, discard then go, or stay.
// A failed save is logged and navigation proceeds anyway.
// When navigation proceeds every blank answer is stored as pending.
func (s *Synchronizer) GuardNavigation(ctx context.Context, prompt Prompt) bool {
	if len(s.DirtyIDs()) > 0 {
		switch prompt(ctx) {
		case DecisionSave:
			if err := s.FlushAll(ctx); err != nil {
				s.logger.Warn("failed to save answers before navigation, leaving anyway", zap.Error(err))
			}
		case DecisionDiscard:
			s.discardEdits()
		default:
			return false
		}
	}
	s.reconcileBlank(ctx)
	return true
}

// discardEdits revert dirty drafts to their last saved text
func (s *Synchronizer) discardEdits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drafts {
		if d.dirty {
			d.text = d.lastSavedText
			d.dirty = false
		}
	}
}

func (s *Synchronizer) reconcileBlank(ctx context.Context) {
	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.mu.Lock()
	blank := s.collect(func(d *draftAnswer) bool { return strings.TrimSpace(d.text) == "" })
	s.mu.Unlock()
	if len(blank) == 0 {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	infra.BestEffort(s.logger, "mark blank answers pending", func() error {
		return s.flushIDs(ctx, blank)
	})
}
