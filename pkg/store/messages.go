package store

import (
	"context"
	"fmt"
	"time"

	"github.com/notedhq/noted/pkg/model"
)

// AppendMessage persists one message and returns the canonical record with
// its store-assigned id and timestamp. Fails with ErrNotFound when the group
// no longer exists (it may be deleted while a chat connection is live).
func (s *Store) AppendMessage(ctx context.Context, groupID, senderID int64, content string) (model.Message, error) {
	if _, err := s.GroupByID(ctx, groupID); err != nil {
		return model.Message{}, err
	}

	id := s.ids.Generate()
	now := toMillis(time.Now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, group_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, groupID, senderID, content, now)
	if err != nil {
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}

	return model.Message{
		ID:        id,
		GroupID:   groupID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: fromMillis(now),
	}, nil
}

// MessagesForGroup lists a group's messages in creation order.
func (s *Store) MessagesForGroup(ctx context.Context, groupID int64) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, sender_id, content, created_at FROM messages WHERE group_id = ? ORDER BY id ASC`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var created int64
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = fromMillis(created)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
