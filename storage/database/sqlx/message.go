package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/chat"
)

type messageRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	SenderID  string    `db:"sender_id"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

func (row messageRow) toMessage() chat.Message {
	return chat.Message{
		ID:        row.ID,
		CourseID:  row.CourseID,
		SenderID:  row.SenderID,
		Body:      row.Message,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type messageRepository struct {
	db *sqlx.DB
}

var _ chat.Backend = (*messageRepository)(nil) // interface compliance check

// NewMessageRepository returns the course_messages table. Inserts are pushed by the table trigger.
func NewMessageRepository(db *sqlx.DB) chat.Backend {
	return &messageRepository{db: db}
}

func (repo *messageRepository) ListMessages(ctx context.Context, courseID string) ([]chat.Message, error) {
	rows := make([]messageRow, 0)
	q := `SELECT id, course_id, sender_id, message, created_at FROM course_messages
		WHERE course_id = $1 ORDER BY created_at, id`
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toMessage())
	}
	return msgs, nil
}

func (repo *messageRepository) InsertMessage(ctx context.Context, nm chat.NewMessage) (chat.Message, error) {
	if err := nm.Validate(); err != nil {
		return chat.Message{}, err
	}
	var row messageRow
	q := `INSERT INTO course_messages (course_id, sender_id, message) VALUES ($1, $2, $3)
		RETURNING id, course_id, sender_id, message, created_at`
	if err := repo.db.GetContext(ctx, &row, q, nm.CourseID, nm.SenderID, nm.Body); err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return row.toMessage(), nil
}
