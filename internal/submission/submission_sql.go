package submission

import (
	"context"
	"database/sql"
	"time"

	"github.com/pot-code/course-player/internal/domain"
	"github.com/pot-code/course-player/internal/infrastructure/driver"
)

type SubmissionSQL struct {
	Conn driver.ITransactionalDB
}

var _ domain.SubmissionRepository = &SubmissionSQL{}

func NewSubmissionRepository(Conn driver.ITransactionalDB) *SubmissionSQL {
	return &SubmissionSQL{Conn}
}

func millis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

// UpdateSubmission update the row of (assignment, user), nil if there is none.
//
// A nil submission date keeps the stored one.
func (repo *SubmissionSQL) UpdateSubmission(ctx context.Context, assignmentID, userID string, post *domain.SubmissionUpdate) (*domain.SubmissionModel, error) {
	_, err := repo.Conn.ExecContext(ctx, `
UPDATE submission
SET answer = $1, status = $2, updated_at = $3, submission_date = COALESCE($4, submission_date)
WHERE assignment_id = $5 AND user_id = $6`,
		post.Answer, string(post.Status), post.UpdatedAt.UnixMilli(), millis(post.SubmissionDate), assignmentID, userID)
	if err != nil {
		return nil, err
	}
	// mysql counts changed rows only, so RowsAffected cannot tell a missing row apart
	return repo.findSubmission(ctx, assignmentID, userID)
}

func (repo *SubmissionSQL) findSubmission(ctx context.Context, assignmentID, userID string) (*domain.SubmissionModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT id, answer, status, submission_date, updated_at
FROM submission
WHERE assignment_id = $1 AND user_id = $2`, assignmentID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	var (
		item           = &domain.SubmissionModel{AssignmentID: assignmentID, UserID: userID}
		status         string
		submissionDate sql.NullInt64
		updatedAt      int64
	)
	if err := rows.Scan(&item.ID, &item.Answer, &status, &submissionDate, &updatedAt); err != nil {
		return nil, err
	}
	item.Status = domain.SubmissionStatus(status)
	item.SubmissionDate = fromMillis(submissionDate)
	item.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return item, nil
}

// CreateSubmission returns domain.ErrDuplicatedSubmission if the (assignment, user) row exists
func (repo *SubmissionSQL) CreateSubmission(ctx context.Context, post *domain.SubmissionModel) error {
	_, err := repo.Conn.ExecContext(ctx, `
INSERT INTO submission(id, assignment_id, user_id, answer, status, submission_date, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.AssignmentID, post.UserID, post.Answer, string(post.Status), millis(post.SubmissionDate), post.UpdatedAt.UnixMilli())
	if driver.IsDuplicateKey(err) {
		return domain.ErrDuplicatedSubmission
	}
	return err
}

// ListAssignmentsByUser every assignment joined with the user's submission, if any
func (repo *SubmissionSQL) ListAssignmentsByUser(ctx context.Context, userID string) ([]*domain.AssignmentModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT a.id, a.course_id, a.title, a.description, a.due_at,
	s.id, s.answer, s.status, s.submission_date, s.updated_at
FROM assignment a
	LEFT JOIN submission s ON (s.assignment_id = a.id AND s.user_id = $1)
ORDER BY a.course_id, a.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*domain.AssignmentModel{}
	for rows.Next() {
		var (
			item           = new(domain.AssignmentModel)
			dueAt          sql.NullInt64
			subID          sql.NullString
			answer         sql.NullString
			status         sql.NullString
			submissionDate sql.NullInt64
			updatedAt      sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.CourseID, &item.Title, &item.Description, &dueAt,
			&subID, &answer, &status, &submissionDate, &updatedAt); err != nil {
			return nil, err
		}
		item.DueAt = fromMillis(dueAt)
		if subID.Valid {
			item.Submission = &domain.SubmissionModel{
				ID:             subID.String,
				AssignmentID:   item.ID,
				UserID:         userID,
				Answer:         answer.String,
				Status:         domain.SubmissionStatus(status.String),
				SubmissionDate: fromMillis(submissionDate),
				UpdatedAt:      time.UnixMilli(updatedAt.Int64).UTC(),
			}
		}
		result = append(result, item)
	}
	return result, nil
}
