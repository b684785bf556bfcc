package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pot-code/course-player/internal/course"
	"github.com/pot-code/course-player/internal/domain"
	"github.com/pot-code/course-player/internal/infrastructure/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenKV struct {
	driver.MemoryKV
}

func (b *brokenKV) SetEX(ctx context.Context, key string, value string, expiration time.Duration) error {
	return errors.New("kv unavailable")
}

func (b *brokenKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("kv unavailable")
}

func newTestConn(t *testing.T) driver.ITransactionalDB {
	ctx := context.Background()
	conn, err := driver.NewSQLiteConn(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(ctx) })
	require.NoError(t, driver.Migrate(ctx, conn))

	for _, q := range []string{
		`INSERT INTO course(id, title) VALUES('c1', 'Go')`,
		`INSERT INTO lesson(id, course_id, title, order_no) VALUES('l1', 'c1', 'Basics', 1)`,
		`INSERT INTO sub_lesson(id, lesson_id, title, media_ref, order_no) VALUES('s1', 'l1', 'Hello', 'v/s1.mp4', 1)`,
		`INSERT INTO sub_lesson(id, lesson_id, title, media_ref, order_no) VALUES('s2', 'l1', 'Types', 'v/s2.mp4', 2)`,
	} {
		_, err := conn.ExecContext(ctx, q)
		require.NoError(t, err)
	}
	return conn
}

func newTestUseCase(t *testing.T, kv driver.KeyValueDB) (*ProgressUseCaseImpl, *ProgressSQL) {
	conn := newTestConn(t)
	repo := NewProgressRepository(conn)
	uc := NewProgressUseCase(repo, course.NewCourseRepository(conn), kv, time.Hour)
	now := time.Unix(1700000000, 0)
	uc.Now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return uc, repo
}

func float(v float64) *float64 {
	return &v
}

func TestGetUserProgressNotStarted(t *testing.T) {
	uc, _ := newTestUseCase(t, driver.NewMemoryKV())

	p, err := uc.GetUserProgress(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotStarted, p.Status)
	assert.Zero(t, p.WatchTime)
	assert.Nil(t, p.Duration)
}

func TestRecordProgress(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t, driver.NewMemoryKV())

	applied, err := uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: 12, Duration: float(300), Seq: 1})
	require.NoError(t, err)
	assert.True(t, applied)

	p, err := uc.GetUserProgress(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, p.Status)
	assert.Equal(t, 12.0, p.WatchTime)
	require.NotNil(t, p.Duration)
	assert.Equal(t, 300.0, *p.Duration)

	// status and duration omitted, stored values kept
	applied, err = uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: 300, Status: domain.StatusCompleted, Seq: 2})
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: 40, Seq: 3})
	require.NoError(t, err)
	assert.True(t, applied)

	p, err = uc.GetUserProgress(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Equal(t, 40.0, p.WatchTime)
	assert.Equal(t, 300.0, *p.Duration)
	assert.Equal(t, int64(3), p.Seq)
}

func TestRecordProgressIgnoresStaleWrites(t *testing.T) {
	ctx := context.Background()
	uc, repo := newTestUseCase(t, driver.NewMemoryKV())

	applied, err := uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: 90, Seq: 10})
	require.NoError(t, err)
	assert.True(t, applied)

	// an earlier write delivered late
	applied, err = uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: 30, Seq: 9})
	require.NoError(t, err)
	assert.False(t, applied)

	// the repository enforces the same rule on its own
	applied, err = repo.SaveProgress(ctx, &domain.WatchProgressModel{
		UserID: "u1", SubLessonID: "s1", WatchTime: 5, Status: domain.StatusInProgress, Seq: 10,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	p, err := uc.GetUserProgress(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, p.WatchTime)
}

func TestRecordProgressWithoutSeq(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t, driver.NewMemoryKV())

	for _, watchTime := range []float64{10, 60, 45} {
		applied, err := uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: watchTime})
		require.NoError(t, err)
		assert.True(t, applied)
	}

	p, err := uc.GetUserProgress(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 45.0, p.WatchTime)
	assert.Positive(t, p.Seq)
}

func TestRecordProgressWithoutSeqAfterSequencedWrite(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t, driver.NewMemoryKV())

	// a sequenced write stamped ahead of the server clock
	applied, err := uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: 20, Seq: time.Unix(1800000000, 0).UnixNano()})
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: 70})
	require.NoError(t, err)
	assert.True(t, applied)

	p, err := uc.GetUserProgress(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 70.0, p.WatchTime)
}

func TestRecordProgressUnknownSubLesson(t *testing.T) {
	uc, _ := newTestUseCase(t, driver.NewMemoryKV())

	_, err := uc.RecordProgress(context.Background(), "u1", "nope", &domain.ProgressWrite{Seq: 1})
	assert.ErrorIs(t, err, domain.ErrSubLessonNotFound)
}

func TestGetLatestProgress(t *testing.T) {
	ctx := context.Background()
	kv := driver.NewMemoryKV()
	uc, _ := newTestUseCase(t, kv)

	latest, err := uc.GetLatestProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.False(t, latest.HasProgress)
	assert.Nil(t, latest.LatestSubLesson)

	_, err = uc.RecordProgress(ctx, "u1", "s2", &domain.ProgressWrite{WatchTime: 1, Seq: 1})
	require.NoError(t, err)
	_, err = uc.RecordProgress(ctx, "u1", "s1", &domain.ProgressWrite{WatchTime: 1, Seq: 2})
	require.NoError(t, err)

	cached, err := kv.Get(ctx, latestKey("u1", "c1"))
	require.NoError(t, err)
	assert.Equal(t, "s1", cached)

	latest, err = uc.GetLatestProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, latest.HasProgress)
	assert.Equal(t, "s1", latest.LatestSubLesson.ID)

	// other users see nothing
	latest, err = uc.GetLatestProgress(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.False(t, latest.HasProgress)
}

func TestGetLatestProgressFallsBackToSQL(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(t, &brokenKV{})

	// cache failures never fail the write
	applied, err := uc.RecordProgress(ctx, "u1", "s2", &domain.ProgressWrite{WatchTime: 1, Seq: 1})
	require.NoError(t, err)
	assert.True(t, applied)

	latest, err := uc.GetLatestProgress(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, latest.HasProgress)
	assert.Equal(t, "s2", latest.LatestSubLesson.ID)
}
