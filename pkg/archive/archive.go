package archive

import (
	"fmt"

	"github.com/notedhq/noted/pkg/model"
)

// Table holds the archive DDL so the create script and tests agree on it.
// group_id partitions, id clusters newest-first (ids are time-sortable).
const Table = `
CREATE TABLE IF NOT EXISTS messages (
	group_id    bigint,
	id          bigint,
	sender_id   bigint,
	sender_name text,
	content     text,
	created_at  timestamp,
	PRIMARY KEY (group_id, id)
) WITH CLUSTERING ORDER BY (id DESC)
`

type Archive struct {
	db *Session
}

func New(db *Session) *Archive {
	return &Archive{db: db}
}

// Insert writes one chat event's message row into the archive.
func (a *Archive) Insert(ev model.ChatEvent) error {
	if ev.Type != model.EventMessage {
		return fmt.Errorf("archive: refusing to store %q event", ev.Type)
	}
	query := `INSERT INTO messages (group_id, id, sender_id, sender_name, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	return a.db.Query(query, ev.GroupID, ev.ID, ev.Sender.ID, ev.Sender.Username, ev.Content, ev.CreatedAt).Exec()
}

// History reads up to limit archived messages for a group, newest first,
// older than before (pass 0 for the newest page).
func (a *Archive) History(groupID int64, before int64, limit int) ([]model.ChatEvent, error) {
	query := `SELECT group_id, id, sender_id, sender_name, content, created_at FROM messages WHERE group_id = ?`
	args := []interface{}{groupID}
	if before > 0 {
		query += ` AND id < ?`
		args = append(args, before)
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	iter := a.db.Query(query, args...).Iter()

	var events []model.ChatEvent
	var ev model.ChatEvent
	for iter.Scan(&ev.GroupID, &ev.ID, &ev.Sender.ID, &ev.Sender.Username, &ev.Content, &ev.CreatedAt) {
		ev.Type = model.EventMessage
		events = append(events, ev)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("archive: iterate messages: %w", err)
	}
	return events, nil
}
