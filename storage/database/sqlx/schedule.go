package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/schedule"
)

const sessionSelect = `
	SELECT se.id, se.team_id, t.name AS team_name, se.start_date, se.end_date, se.start_time, se.end_time,
		se.days_of_week, se.cancel, se.created_at
	FROM sessions se JOIN teams t ON t.id = se.team_id`

// activeContactsSelect lists one row per active enrollment, with its student and parent.
const activeContactsSelect = `
	SELECT e.id AS enrollment_id, st.first_name || ' ' || st.last_name AS student_name,
		u.name AS parent_name, u.email AS parent_email
	FROM enrollments e
	JOIN students st ON st.id = e.student_id
	JOIN users u ON u.id = st.parent_id
	WHERE e.team_id = $1 AND e.is_active`

type scheduleRepository struct {
	exec core.DBExecutor
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(exec core.DBExecutor) *scheduleRepository {
	return &scheduleRepository{exec: exec}
}

func (repo scheduleRepository) CreateSession(ctx context.Context, s schedule.Session) (schedule.Session, error) {
	_, err := repo.exec.ExecContext(ctx, `
		INSERT INTO sessions (id, team_id, start_date, end_date, start_time, end_time, days_of_week, cancel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.TeamID, s.StartDate, s.EndDate, s.StartTime, s.EndTime, s.DaysOfWeek, s.Cancel, s.CreatedAt)
	if err != nil {
		return schedule.Session{}, errors.Wrap(err, "inserting session")
	}
	return repo.GetSession(ctx, s.ID)
}

func (repo scheduleRepository) GetSession(ctx context.Context, id string) (schedule.Session, error) {
	var s schedule.Session
	if err := repo.exec.GetContext(ctx, &s, sessionSelect+" WHERE se.id = $1", id); err != nil {
		return schedule.Session{}, trapNoRowsErr(err, schedule.ErrNotFound, "finding session")
	}
	return s, nil
}

func (repo scheduleRepository) CancelSession(ctx context.Context, id string) (schedule.Session, bool, error) {
	res, err := repo.exec.ExecContext(ctx, "UPDATE sessions SET cancel = TRUE WHERE id = $1 AND NOT cancel", id)
	if err != nil {
		return schedule.Session{}, false, errors.Wrap(err, "cancelling session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return schedule.Session{}, false, errors.Wrap(err, "counting cancelled sessions")
	}

	// no row updated: either missing or cancelled before
	s, err := repo.GetSession(ctx, id)
	if err != nil {
		return schedule.Session{}, false, err
	}
	return s, n == 1, nil
}

func (repo scheduleRepository) QuerySessionsByTeam(ctx context.Context, teamID string) ([]schedule.Session, error) {
	sessions := make([]schedule.Session, 0)
	err := repo.exec.SelectContext(ctx, &sessions, sessionSelect+" WHERE se.team_id = $1 ORDER BY se.start_date, se.id", teamID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return sessions, nil
}

func (repo scheduleRepository) QueryParentTeamIDs(ctx context.Context, parentID string) ([]string, error) {
	var ids []string
	err := repo.exec.SelectContext(ctx, &ids, `
		SELECT DISTINCT e.team_id FROM enrollments e JOIN students st ON st.id = e.student_id
		WHERE st.parent_id = $1 AND e.is_active
		ORDER BY e.team_id`, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying parent teams")
	}
	return ids, nil
}

func (repo scheduleRepository) QueryTeamContacts(ctx context.Context, teamID string) ([]schedule.Contact, error) {
	var contacts []schedule.Contact
	if err := repo.exec.SelectContext(ctx, &contacts, activeContactsSelect+" ORDER BY student_name", teamID); err != nil {
		return nil, errors.Wrap(err, "querying team contacts")
	}
	return contacts, nil
}
