package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pot-code/course-player/internal/domain"
	infra "github.com/pot-code/course-player/internal/infrastructure"
	"github.com/pot-code/course-player/internal/infrastructure/driver"
	"github.com/pot-code/course-player/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// ProgressUseCaseImpl ...
type ProgressUseCaseImpl struct {
	ProgressRepository domain.ProgressRepository
	CourseRepository   domain.CourseRepository
	KVStore            driver.KeyValueDB
	LatestTTL          time.Duration
	Now                func() time.Time
}

var _ domain.ProgressUseCase = &ProgressUseCaseImpl{}

// NewProgressUseCase ...
func NewProgressUseCase(
	ProgressRepository domain.ProgressRepository,
	CourseRepository domain.CourseRepository,
	KVStore driver.KeyValueDB,
	LatestTTL time.Duration,
) *ProgressUseCaseImpl {
	return &ProgressUseCaseImpl{
		ProgressRepository: ProgressRepository,
		CourseRepository:   CourseRepository,
		KVStore:            KVStore,
		LatestTTL:          LatestTTL,
		Now:                time.Now,
	}
}

func latestKey(userID, courseID string) string {
	return fmt.Sprintf("latest:%s:%s", userID, courseID)
}

// GetUserProgress a missing record reads as not started
func (pu *ProgressUseCaseImpl) GetUserProgress(ctx context.Context, userID, subLessonID string) (*domain.WatchProgressModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetUserProgress", "service")
	defer apmSpan.End()

	progress, err := pu.ProgressRepository.GetProgress(ctx, userID, subLessonID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return &domain.WatchProgressModel{
			UserID:      userID,
			SubLessonID: subLessonID,
			Status:      domain.StatusNotStarted,
		}, nil
	}
	return progress, nil
}

// RecordProgress persist a progress write, omitted status and duration keep their stored values.
//
// The result is false when a write with a newer seq was stored before.
// A write without seq is stamped from the clock.
func (pu *ProgressUseCaseImpl) RecordProgress(ctx context.Context, userID, subLessonID string, post *domain.ProgressWrite) (bool, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.RecordProgress", "service")
	defer apmSpan.End()

	courseID, err := pu.CourseRepository.GetCourseIDBySubLesson(ctx, subLessonID)
	if err != nil {
		return false, err
	}
	if courseID == "" {
		return false, domain.ErrSubLessonNotFound
	}

	existing, err := pu.ProgressRepository.GetProgress(ctx, userID, subLessonID)
	if err != nil {
		return false, err
	}
	seq := post.Seq
	if seq == 0 {
		// writes without seq are stamped on arrival, the last one received wins
		seq = pu.Now().UnixNano()
		if existing != nil && seq <= existing.Seq {
			seq = existing.Seq + 1
		}
	}
	if existing != nil && existing.Seq >= seq {
		return false, nil
	}

	record := &domain.WatchProgressModel{
		UserID:      userID,
		SubLessonID: subLessonID,
		WatchTime:   post.WatchTime,
		Duration:    post.Duration,
		Status:      post.Status,
		Seq:         seq,
		UpdatedAt:   pu.Now().UnixMilli(),
	}
	if record.Status == "" {
		record.Status = domain.StatusInProgress
		if existing != nil && existing.Status != domain.StatusNotStarted {
			record.Status = existing.Status
		}
	}
	if record.Duration == nil && existing != nil {
		record.Duration = existing.Duration
	}

	applied, err := pu.ProgressRepository.SaveProgress(ctx, record)
	if err != nil || !applied {
		return applied, err
	}

	logger := logging.ExtractLoggerFromContext(ctx).With(zap.String("user.id", userID), zap.String("course.id", courseID))
	infra.BestEffort(logger, "cache latest sub-lesson", func() error {
		return pu.KVStore.SetEX(ctx, latestKey(userID, courseID), subLessonID, pu.LatestTTL)
	})
	return true, nil
}

// GetLatestProgress the most recently watched sub-lesson of a course, served from the kv cache when possible
func (pu *ProgressUseCaseImpl) GetLatestProgress(ctx context.Context, userID, courseID string) (*domain.LatestProgress, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressUseCaseImpl.GetLatestProgress", "service")
	defer apmSpan.End()

	logger := logging.ExtractLoggerFromContext(ctx).With(zap.String("user.id", userID), zap.String("course.id", courseID))
	key := latestKey(userID, courseID)

	cached, err := pu.KVStore.Get(ctx, key)
	if err == nil && cached != "" {
		return &domain.LatestProgress{HasProgress: true, LatestSubLesson: &domain.SubLessonRef{ID: cached}}, nil
	}
	if err != nil && !errors.Is(err, driver.ErrKeyNotFound) {
		logger.Warn("failed to read latest sub-lesson cache", zap.Error(err))
	}

	id, err := pu.ProgressRepository.GetLatestSubLesson(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return &domain.LatestProgress{HasProgress: false}, nil
	}
	infra.BestEffort(logger, "cache latest sub-lesson", func() error {
		return pu.KVStore.SetEX(ctx, key, id, pu.LatestTTL)
	})
	return &domain.LatestProgress{HasProgress: true, LatestSubLesson: &domain.SubLessonRef{ID: id}}, nil
}
