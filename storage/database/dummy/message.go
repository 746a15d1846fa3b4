package dummydb

import (
	"context"
	"sort"
	"strconv"

	"github.com/trezcool/classroom/core/chat"
)

type messageRepository struct {
	db *messageTable
}

var _ chat.Backend = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) chat.Backend {
	return &messageRepository{db: db.message}
}

func (repo *messageRepository) ListMessages(_ context.Context, courseID string) ([]chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]chat.Message, 0)
	for _, msg := range repo.db.table {
		if msg.CourseID == courseID {
			msgs = append(msgs, msg)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (repo *messageRepository) InsertMessage(_ context.Context, nm chat.NewMessage) (chat.Message, error) {
	if err := nm.Validate(); err != nil {
		return chat.Message{}, err
	}

	repo.db.Lock()
	repo.db.pkCount++
	msg := chat.Message{
		ID:        strconv.Itoa(repo.db.pkCount),
		CourseID:  nm.CourseID,
		SenderID:  nm.SenderID,
		Body:      nm.Body,
		CreatedAt: NowFunc().UTC(),
	}
	repo.db.table = append(repo.db.table, msg)
	repo.db.Unlock()
	return msg, nil
}
