package player

import (
	"context"
	"sync"

	"github.com/pot-code/course-player/internal/domain"
	"go.uber.org/zap"
)

// LatestProgressSource answers which sub-lesson of a course the user touched last
type LatestProgressSource interface {
	GetLatestProgress(ctx context.Context, courseID string) (*domain.LatestProgress, error)
}

// LocationReplacer update the visible location to the chosen sub-lesson without navigating
type LocationReplacer func(courseID, subLessonID string)

type selection struct {
	courseID   string
	deepLinkID string
}

// Selector picks the sub-lesson to open when a course player mounts.
//
// Precedence: deep link, latest progress, first sub-lesson of the course, nothing.
// A selection runs once per (course, deep link) pair, repeated calls return the remembered result.
type Selector struct {
	mu      sync.Mutex
	latest  LatestProgressSource
	replace LocationReplacer
	logger  *zap.Logger

	results map[selection]*domain.SubLessonModel
}

// NewSelector replace may be nil
func NewSelector(latest LatestProgressSource, replace LocationReplacer, logger *zap.Logger) *Selector {
	if replace == nil {
		replace = func(string, string) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		latest:  latest,
		replace: replace,
		logger:  logger,
		results: make(map[selection]*domain.SubLessonModel),
	}
}

// Select returns nil when the course has nothing to play.
//
// A nil outline means it has not been delivered yet, nothing is selected and the guard stays unset.
func (s *Selector) Select(ctx context.Context, courseID, deepLinkID string, outline *domain.CourseOutline) *domain.SubLessonModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := selection{courseID, deepLinkID}
	if result, ok := s.results[key]; ok {
		return result
	}
	if outline == nil {
		return nil
	}

	result := s.pick(ctx, courseID, deepLinkID, outline)
	s.results[key] = result
	return result
}

func (s *Selector) pick(ctx context.Context, courseID, deepLinkID string, outline *domain.CourseOutline) *domain.SubLessonModel {
	if deepLinkID != "" {
		if sub := outline.Find(deepLinkID); sub != nil {
			return sub
		}
		s.logger.Debug("deep linked sub-lesson not in outline", zap.String("course.id", courseID), zap.String("sub_lesson.id", deepLinkID))
	}

	latest, err := s.latest.GetLatestProgress(ctx, courseID)
	if err != nil {
		s.logger.Warn("failed to get latest progress", zap.String("course.id", courseID), zap.Error(err))
	} else if latest != nil && latest.HasProgress && latest.LatestSubLesson != nil {
		if sub := outline.Find(latest.LatestSubLesson.ID); sub != nil {
			s.replace(courseID, sub.ID)
			return sub
		}
	}

	return outline.First()
}
