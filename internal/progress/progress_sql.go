package progress

import (
	"context"
	"database/sql"

	"github.com/pot-code/course-player/internal/domain"
	"github.com/pot-code/course-player/internal/infrastructure/driver"
)

type ProgressSQL struct {
	Conn driver.ITransactionalDB
}

var _ domain.ProgressRepository = &ProgressSQL{}

func NewProgressRepository(Conn driver.ITransactionalDB) *ProgressSQL {
	return &ProgressSQL{Conn}
}

// GetProgress returns nil when the user never played the sub-lesson
func (repo *ProgressSQL) GetProgress(ctx context.Context, userID, subLessonID string) (*domain.WatchProgressModel, error) {
	return getProgress(ctx, repo.Conn, userID, subLessonID)
}

func getProgress(ctx context.Context, conn driver.ITransactionalDB, userID, subLessonID string) (*domain.WatchProgressModel, error) {
	rows, err := conn.QueryContext(ctx, `
SELECT watch_time, duration, status, seq, updated_at
FROM watch_progress
WHERE user_id = $1 AND sub_lesson_id = $2`, userID, subLessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	var (
		item     = &domain.WatchProgressModel{UserID: userID, SubLessonID: subLessonID}
		duration sql.NullFloat64
		status   string
	)
	if err := rows.Scan(&item.WatchTime, &duration, &status, &item.Seq, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if duration.Valid {
		item.Duration = &duration.Float64
	}
	item.Status = domain.ProgressStatus(status)
	return item, nil
}

// SaveProgress write p unless a record with the same or a newer seq is stored, the result
// reports whether p was applied
func (repo *ProgressSQL) SaveProgress(ctx context.Context, p *domain.WatchProgressModel) (applied bool, err error) {
	// a concurrent first insert makes ours fail on the primary key, the retry then goes through the update path
	for attempt := 0; attempt < 2; attempt++ {
		applied, err = repo.saveOnce(ctx, p)
		if !driver.IsDuplicateKey(err) {
			return
		}
	}
	return
}

func (repo *ProgressSQL) saveOnce(ctx context.Context, p *domain.WatchProgressModel) (bool, error) {
	tx, err := repo.Conn.BeginTx(ctx, &driver.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
UPDATE watch_progress
SET watch_time = $1, duration = $2, status = $3, seq = $4, updated_at = $5
WHERE user_id = $6 AND sub_lesson_id = $7 AND seq < $8`,
		p.WatchTime, p.Duration, string(p.Status), p.Seq, p.UpdatedAt, p.UserID, p.SubLessonID, p.Seq)
	if err != nil {
		tx.Rollback(ctx)
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, tx.Commit(ctx)
	}

	existing, err := getProgress(ctx, tx, p.UserID, p.SubLessonID)
	if err != nil {
		tx.Rollback(ctx)
		return false, err
	}
	if existing != nil {
		// stale write
		return false, tx.Commit(ctx)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO watch_progress(user_id, sub_lesson_id, watch_time, duration, status, seq, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7)`,
		p.UserID, p.SubLessonID, p.WatchTime, p.Duration, string(p.Status), p.Seq, p.UpdatedAt)
	if err != nil {
		tx.Rollback(ctx)
		return false, err
	}
	return true, tx.Commit(ctx)
}

// GetLatestSubLesson id of the most recently updated sub-lesson of the course, empty if none
func (repo *ProgressSQL) GetLatestSubLesson(ctx context.Context, userID, courseID string) (string, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT wp.sub_lesson_id
FROM watch_progress wp
	INNER JOIN sub_lesson sl ON (sl.id = wp.sub_lesson_id)
	INNER JOIN lesson l ON (l.id = sl.lesson_id)
WHERE wp.user_id = $1 AND l.course_id = $2
ORDER BY wp.updated_at DESC, wp.seq DESC
LIMIT 1`, userID, courseID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var id string
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
	}
	return id, nil
}
