package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pot-code/course-player/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStore struct {
	mu       sync.Mutex
	record   *domain.WatchProgressModel
	writes   []*domain.ProgressWrite
	fail     error
	getCalls int
}

func (f *fakeStore) GetProgress(ctx context.Context, subLessonID string) (*domain.WatchProgressModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.record, nil
}

func (f *fakeStore) SaveProgress(ctx context.Context, subLessonID string, post *domain.ProgressWrite) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, post)
	if f.fail != nil {
		return false, f.fail
	}
	return true, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeStore) last() *domain.ProgressWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[len(f.writes)-1]
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func ptr(v float64) *float64 {
	return &v
}

func TestTickThrottle(t *testing.T) {
	store := &fakeStore{}
	clock := newClock()
	tracker := NewTracker(store, "s1", nil, WithClock(clock.Now))

	var writtenAt []float64
	for sec := 0; sec <= 6; sec++ {
		before := store.count()
		tracker.OnPlaybackTick(context.Background(), float64(sec))
		if store.count() > before {
			writtenAt = append(writtenAt, float64(sec))
		}
		clock.Advance(time.Second)
	}
	assert.Equal(t, []float64{0, 5}, writtenAt)
	assert.Equal(t, domain.StatusInProgress, store.writes[0].Status)
	assert.Equal(t, domain.StatusInProgress, tracker.Status())
}

func TestDiscreteEventsBypassThrottle(t *testing.T) {
	store := &fakeStore{}
	clock := newClock()
	tracker := NewTracker(store, "s1", &domain.WatchProgressModel{WatchTime: 3, Status: domain.StatusInProgress}, WithClock(clock.Now))
	ctx := context.Background()

	tracker.OnPlay(ctx, 3)
	tracker.OnSeek(ctx, 30)
	tracker.OnPause(ctx, 31)
	require.Equal(t, 3, store.count())
	assert.Equal(t, 31.0, store.last().WatchTime)

	// every write carries a larger seq, even within the same clock instant
	for i := 1; i < len(store.writes); i++ {
		assert.Greater(t, store.writes[i].Seq, store.writes[i-1].Seq)
	}
}

func TestCompletionFreeze(t *testing.T) {
	store := &fakeStore{}
	clock := newClock()
	tracker := NewTracker(store, "s1", &domain.WatchProgressModel{WatchTime: 100, Duration: ptr(100), Status: domain.StatusCompleted}, WithClock(clock.Now))
	ctx := context.Background()

	tracker.OnPlaybackTick(ctx, 1)
	clock.Advance(time.Minute)
	tracker.OnPlaybackTick(ctx, 2)
	tracker.OnPlay(ctx, 2)
	tracker.OnPause(ctx, 3)
	tracker.OnSeek(ctx, 50)
	assert.False(t, tracker.OnPlaybackEnded(ctx, 100))
	assert.Equal(t, 0, store.count())
	assert.Equal(t, domain.StatusCompleted, tracker.Status())
}

func TestMonotonicStatus(t *testing.T) {
	store := &fakeStore{}
	clock := newClock()
	tracker := NewTracker(store, "s1", nil, WithClock(clock.Now))
	ctx := context.Background()

	rank := map[domain.ProgressStatus]int{
		domain.StatusNotStarted: 0,
		domain.StatusInProgress: 1,
		domain.StatusCompleted:  2,
	}
	events := []func(){
		func() { tracker.OnPlay(ctx, 0) },
		func() { tracker.OnPlaybackTick(ctx, 1) },
		func() { tracker.OnSeek(ctx, 80) },
		func() { tracker.OnPlaybackTick(ctx, 81) },
		func() { tracker.OnPause(ctx, 82) },
		func() { tracker.OnMetadata(100) },
		func() { tracker.OnPlaybackEnded(ctx, 100) },
		func() { tracker.Confirm(ctx) },
		func() { tracker.OnSeek(ctx, 10) },
		func() { tracker.OnPlaybackTick(ctx, 11) },
	}
	prev := rank[tracker.Status()]
	for _, ev := range events {
		ev()
		clock.Advance(time.Second)
		cur := rank[tracker.Status()]
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	assert.Equal(t, domain.StatusCompleted, tracker.Status())
	for i := 1; i < len(store.writes); i++ {
		assert.GreaterOrEqual(t, rank[store.writes[i].Status], rank[store.writes[i-1].Status])
	}
}

func TestResumePosition(t *testing.T) {
	tests := []struct {
		watchTime, duration, want float64
	}{
		{96, 100, 0},
		{95, 100, 0},
		{80, 100, 80},
		{0, 100, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResumePosition(tt.watchTime, tt.duration), "watchTime=%v duration=%v", tt.watchTime, tt.duration)
	}

	tracker := NewTracker(&fakeStore{}, "s1", &domain.WatchProgressModel{WatchTime: 80, Status: domain.StatusInProgress})
	assert.Equal(t, 80.0, tracker.OnMetadata(100))
}

func TestCompletionPrompt(t *testing.T) {
	tests := []struct {
		name       string
		initial    float64
		end        float64
		wantPrompt bool
	}{
		{"first completion", 0, 100, true},
		{"prior completion", 96, 100, false},
		{"resumed and watched the rest", 50, 100, false},
		{"resumed and jumped to the end", 50, 70, true},
		{"exactly at the threshold", 50, 80, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			status := domain.StatusInProgress
			if tt.initial == 0 {
				status = domain.StatusNotStarted
			}
			tracker := NewTracker(store, "s1", &domain.WatchProgressModel{WatchTime: tt.initial, Duration: ptr(100), Status: status})

			prompt := tracker.OnPlaybackEnded(context.Background(), tt.end)
			assert.Equal(t, tt.wantPrompt, prompt)
			assert.Equal(t, tt.wantPrompt, tracker.PendingConfirmation())
			if tt.wantPrompt {
				assert.Equal(t, 0, store.count())
				assert.NotEqual(t, domain.StatusCompleted, tracker.Status())
			} else {
				require.Equal(t, 1, store.count())
				assert.Equal(t, domain.StatusCompleted, store.last().Status)
				assert.Equal(t, 100.0, store.last().WatchTime)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, "s1", nil)
	ctx := context.Background()
	tracker.OnMetadata(100)
	tracker.OnPlaybackTick(ctx, 1)

	require.True(t, tracker.OnPlaybackEnded(ctx, 100))
	tracker.Confirm(ctx)
	assert.Equal(t, domain.StatusCompleted, tracker.Status())
	w := store.last()
	assert.Equal(t, domain.StatusCompleted, w.Status)
	assert.Equal(t, 100.0, w.WatchTime)
	require.NotNil(t, w.Duration)
	assert.Equal(t, 100.0, *w.Duration)

	// nothing pending any more
	before := store.count()
	tracker.Confirm(ctx)
	assert.Equal(t, before, store.count())
}

func TestDeclineRewinds(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, "s1", &domain.WatchProgressModel{WatchTime: 50, Duration: ptr(100), Status: domain.StatusInProgress})
	ctx := context.Background()

	tracker.OnSeek(ctx, 69)
	require.True(t, tracker.OnPlaybackEnded(ctx, 70))

	pos := tracker.Decline(ctx)
	assert.Equal(t, 50.0, pos)
	assert.Equal(t, domain.StatusInProgress, tracker.Status())
	assert.Equal(t, 50.0, tracker.WatchTime())
	w := store.last()
	assert.Equal(t, 50.0, w.WatchTime)
	assert.Equal(t, domain.StatusInProgress, w.Status)
	assert.False(t, tracker.PendingConfirmation())
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	store := &fakeStore{fail: errors.New("offline")}
	tracker := NewTracker(store, "s1", nil, WithLogger(zap.New(core)))
	ctx := context.Background()

	tracker.OnPlaybackTick(ctx, 1)
	tracker.OnPause(ctx, 2)
	assert.Equal(t, domain.StatusInProgress, tracker.Status())
	assert.Equal(t, 2.0, tracker.WatchTime())
	assert.Equal(t, 2, logs.FilterMessage("best-effort persistence failed").Len())
}

func TestLoadTracker(t *testing.T) {
	store := &fakeStore{record: &domain.WatchProgressModel{WatchTime: 40, Duration: ptr(100), Status: domain.StatusInProgress}}
	tracker := LoadTracker(context.Background(), store, "s1")
	assert.Equal(t, domain.StatusInProgress, tracker.Status())
	assert.Equal(t, 40.0, tracker.OnMetadata(100))

	broken := &fakeStore{fail: errors.New("offline")}
	tracker = LoadTracker(context.Background(), broken, "s1")
	assert.Equal(t, domain.StatusNotStarted, tracker.Status())
	assert.Equal(t, 1, broken.getCalls)
}
