package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/reminder"
	"github.com/trezcool/clubhouse/core/schedule"
)

type reminderRepository struct {
	exec core.DBExecutor
}

var _ reminder.Repository = (*reminderRepository)(nil) // interface compliance check

func NewReminderRepository(exec core.DBExecutor) *reminderRepository {
	return &reminderRepository{exec: exec}
}

func (repo reminderRepository) QueryUpcomingSessions(ctx context.Context, from, to schedule.Date) ([]schedule.Session, error) {
	var sessions []schedule.Session
	err := repo.exec.SelectContext(ctx, &sessions,
		sessionSelect+" WHERE NOT se.cancel AND se.start_date BETWEEN $1 AND $2 ORDER BY se.start_date, se.start_time, se.id",
		from, to)
	if err != nil {
		return nil, errors.Wrap(err, "querying upcoming sessions")
	}
	return sessions, nil
}

func (repo reminderRepository) QueryRecipients(ctx context.Context, teamID string) ([]reminder.Recipient, error) {
	var recipients []reminder.Recipient
	err := repo.exec.SelectContext(ctx, &recipients, `
		SELECT e.id AS enrollment_id, st.first_name || ' ' || st.last_name AS student_name,
			u.name AS parent_name, u.email AS parent_email, t.name AS team_name, sc.name AS school_name
		FROM enrollments e
		JOIN students st ON st.id = e.student_id
		JOIN users u ON u.id = st.parent_id
		JOIN teams t ON t.id = e.team_id
		JOIN schools sc ON sc.id = t.school_id
		WHERE e.team_id = $1 AND e.is_active
		ORDER BY e.id`, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "querying reminder recipients")
	}
	return recipients, nil
}

func (repo reminderRepository) QuerySentEnrollmentIDs(ctx context.Context, sessionID string, t reminder.Type) ([]string, error) {
	var ids []string
	err := repo.exec.SelectContext(ctx, &ids,
		"SELECT enrollment_id FROM session_reminders WHERE session_id = $1 AND reminder_type = $2",
		sessionID, string(t))
	if err != nil {
		return nil, errors.Wrap(err, "querying sent reminders")
	}
	return ids, nil
}

func (repo reminderRepository) Reserve(ctx context.Context, rec reminder.Record) error {
	res, err := repo.exec.ExecContext(ctx, `
		INSERT INTO session_reminders (session_id, enrollment_id, reminder_type, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT session_reminders_key DO NOTHING`,
		rec.SessionID, rec.EnrollmentID, string(rec.Type), rec.SentAt)
	if err != nil {
		return errors.Wrap(err, "reserving reminder")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting reserved reminders")
	}
	if n == 0 {
		return reminder.ErrAlreadySent
	}
	return nil
}

func (repo reminderRepository) Release(ctx context.Context, rec reminder.Record) error {
	_, err := repo.exec.ExecContext(ctx,
		"DELETE FROM session_reminders WHERE session_id = $1 AND enrollment_id = $2 AND reminder_type = $3",
		rec.SessionID, rec.EnrollmentID, string(rec.Type))
	return errors.Wrap(err, "releasing reminder")
}
