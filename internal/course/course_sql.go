package course

import (
	"context"
	"database/sql"

	"github.com/pot-code/course-player/internal/domain"
	"github.com/pot-code/course-player/internal/infrastructure/driver"
)

type CourseSQL struct {
	Conn driver.ITransactionalDB
}

var _ domain.CourseRepository = &CourseSQL{}

func NewCourseRepository(Conn driver.ITransactionalDB) *CourseSQL {
	return &CourseSQL{Conn}
}

func (repo *CourseSQL) courseExists(ctx context.Context, courseID string) (bool, error) {
	rows, err := repo.Conn.QueryContext(ctx, `SELECT id FROM course WHERE id = $1`, courseID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), nil
}

// GetOutline returns nil if the course does not exist
func (repo *CourseSQL) GetOutline(ctx context.Context, courseID string) (*domain.CourseOutline, error) {
	if ok, err := repo.courseExists(ctx, courseID); err != nil || !ok {
		return nil, err
	}

	rows, err := repo.Conn.QueryContext(ctx, `
SELECT l.id, l.title, l.order_no, sl.id, sl.title, sl.media_ref, sl.order_no
FROM lesson l
	LEFT JOIN sub_lesson sl ON (sl.lesson_id = l.id)
WHERE l.course_id = $1
ORDER BY l.order_no, l.id, sl.order_no, sl.id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outline := &domain.CourseOutline{CourseID: courseID, Lessons: []*domain.LessonModel{}}
	var current *domain.LessonModel
	for rows.Next() {
		var (
			lesson   domain.LessonModel
			subID    sql.NullString
			subTitle sql.NullString
			mediaRef sql.NullString
			subOrder sql.NullInt64
		)
		if err := rows.Scan(&lesson.ID, &lesson.Title, &lesson.OrderNo, &subID, &subTitle, &mediaRef, &subOrder); err != nil {
			return nil, err
		}
		if current == nil || current.ID != lesson.ID {
			lesson.SubLessons = []*domain.SubLessonModel{}
			current = &lesson
			outline.Lessons = append(outline.Lessons, current)
		}
		if subID.Valid {
			current.SubLessons = append(current.SubLessons, &domain.SubLessonModel{
				ID:       subID.String,
				LessonID: current.ID,
				Title:    subTitle.String,
				MediaRef: mediaRef.String,
				OrderNo:  int(subOrder.Int64),
			})
		}
	}
	return outline, nil
}

// GetCourseIDBySubLesson empty if the sub-lesson does not exist
func (repo *CourseSQL) GetCourseIDBySubLesson(ctx context.Context, subLessonID string) (string, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT l.course_id
FROM sub_lesson sl
	INNER JOIN lesson l ON (l.id = sl.lesson_id)
WHERE sl.id = $1`, subLessonID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var courseID string
	if rows.Next() {
		if err := rows.Scan(&courseID); err != nil {
			return "", err
		}
	}
	return courseID, nil
}
