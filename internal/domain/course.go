package domain

import "context"

type SubLessonModel struct {
	ID       string `json:"id"`
	LessonID string `json:"-"`
	Title    string `json:"title"`
	MediaRef string `json:"media_ref"`
	OrderNo  int    `json:"order_no"`
}

type LessonModel struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	OrderNo    int               `json:"order_no"`
	SubLessons []*SubLessonModel `json:"sub_lessons"`
}

// CourseOutline ordered lessons of a course, each an ordered list of sub-lessons
type CourseOutline struct {
	CourseID string         `json:"course_id"`
	Lessons  []*LessonModel `json:"lessons"`
}

// Find locate a sub-lesson by id, nil if absent
func (co *CourseOutline) Find(id string) *SubLessonModel {
	if co == nil || id == "" {
		return nil
	}
	for _, l := range co.Lessons {
		for _, s := range l.SubLessons {
			if s.ID == id {
				return s
			}
		}
	}
	return nil
}

// First the first sub-lesson of the first lesson
func (co *CourseOutline) First() *SubLessonModel {
	if co == nil || len(co.Lessons) == 0 {
		return nil
	}
	if subs := co.Lessons[0].SubLessons; len(subs) > 0 {
		return subs[0]
	}
	return nil
}

type CourseRepository interface {
	GetOutline(ctx context.Context, courseID string) (*CourseOutline, error)
	GetCourseIDBySubLesson(ctx context.Context, subLessonID string) (string, error)
}

type CourseUseCase interface {
	GetCourseOutline(ctx context.Context, courseID string) (*CourseOutline, error)
}
