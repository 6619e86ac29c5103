package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/messaging"
)

// unreadWhere selects the coach messages of a parent ($1) without a read receipt from that parent.
const unreadWhere = `
	m.parent_id = $1 AND m.sender_role = 'coach'
	AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.parent_id = $1)`

type messagingRepository struct {
	exec core.DBExecutor
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(exec core.DBExecutor) *messagingRepository {
	return &messagingRepository{exec: exec}
}

func (repo messagingRepository) GetTeamCoachID(ctx context.Context, teamID string) (string, error) {
	var coachID string
	if err := repo.exec.GetContext(ctx, &coachID, "SELECT coach_id FROM teams WHERE id = $1", teamID); err != nil {
		return "", trapNoRowsErr(err, messaging.ErrTeamNotFound, "finding team")
	}
	return coachID, nil
}

func (repo messagingRepository) HasStudentOnTeam(ctx context.Context, teamID, parentID string) (bool, error) {
	var ok bool
	err := repo.exec.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments e JOIN students st ON st.id = e.student_id
			WHERE e.team_id = $1 AND st.parent_id = $2
		)`, teamID, parentID)
	if err != nil {
		return false, errors.Wrap(err, "checking team parent")
	}
	return ok, nil
}

func (repo messagingRepository) CreateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	_, err := repo.exec.ExecContext(ctx, `
		INSERT INTO messages (id, team_id, coach_id, parent_id, sender_role, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.TeamID, m.CoachID, m.ParentID, m.SenderRole, m.Body, m.CreatedAt)
	if err != nil {
		return messaging.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo messagingRepository) QueryConversation(ctx context.Context, teamID, coachID, parentID string) ([]messaging.Message, error) {
	var msgs []messaging.Message
	err := repo.exec.SelectContext(ctx, &msgs, `
		SELECT m.id, m.team_id, m.coach_id, m.parent_id, m.sender_role, m.body, m.created_at,
			EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.parent_id = m.parent_id) AS read
		FROM messages m
		WHERE m.team_id = $1 AND m.coach_id = $2 AND m.parent_id = $3
		ORDER BY m.created_at, m.id`,
		teamID, coachID, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	return msgs, nil
}

func (repo messagingRepository) QueryUnreadCounts(ctx context.Context, parentID string) ([]messaging.UnreadCount, error) {
	var counts []messaging.UnreadCount
	err := repo.exec.SelectContext(ctx, &counts, `
		SELECT m.team_id, m.coach_id, COUNT(*) AS count
		FROM messages m
		WHERE`+unreadWhere+`
		GROUP BY m.team_id, m.coach_id`,
		parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying unread counts")
	}
	return counts, nil
}

func (repo messagingRepository) CountUnread(ctx context.Context, teamID, coachID, parentID string) (int, error) {
	var n int
	err := repo.exec.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM messages m
		WHERE`+unreadWhere+` AND m.team_id = $2 AND m.coach_id = $3`,
		parentID, teamID, coachID)
	if err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return n, nil
}

// MarkAsRead inserts the receipts in one statement; concurrent calls never duplicate a receipt.
func (repo messagingRepository) MarkAsRead(ctx context.Context, teamID, coachID, parentID string, at time.Time) (int, error) {
	res, err := repo.exec.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, parent_id, read_at)
		SELECT m.id, m.parent_id, $4
		FROM messages m
		WHERE m.team_id = $1 AND m.coach_id = $2 AND m.parent_id = $3 AND m.sender_role = 'coach'
		ON CONFLICT (message_id, parent_id) DO NOTHING`,
		teamID, coachID, parentID, at)
	if err != nil {
		return 0, errors.Wrap(err, "inserting read receipts")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting read receipts")
	}
	return int(n), nil
}
