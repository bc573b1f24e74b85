package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notedhq/noted/pkg/model"
)

const groupColumns = "id, name, owner_id, goal, description, avatar, created_at, updated_at"

func scanGroup(row interface{ Scan(...any) error }) (model.Group, error) {
	var g model.Group
	var created, updated int64
	if err := row.Scan(&g.ID, &g.Name, &g.OwnerID, &g.Goal, &g.Description, &g.Avatar, &created, &updated); err != nil {
		return model.Group{}, err
	}
	g.CreatedAt = fromMillis(created)
	g.UpdatedAt = fromMillis(updated)
	return g, nil
}

// CreateGroup creates a group owned by ownerID, who becomes its first member.
func (s *Store) CreateGroup(ctx context.Context, ownerID int64, name, goal, description string) (model.Group, error) {
	id := s.ids.Generate()
	now := toMillis(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Group{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, owner_id, goal, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, ownerID, goal, description, now, now); err != nil {
		return model.Group{}, fmt.Errorf("insert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)`,
		id, ownerID, now); err != nil {
		return model.Group{}, fmt.Errorf("insert owner membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Group{}, fmt.Errorf("commit: %w", err)
	}

	return model.Group{
		ID:          id,
		Name:        name,
		OwnerID:     ownerID,
		Goal:        goal,
		Description: description,
		CreatedAt:   fromMillis(now),
		UpdatedAt:   fromMillis(now),
	}, nil
}

func (s *Store) GroupByID(ctx context.Context, id int64) (model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Group{}, ErrNotFound
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("select group: %w", err)
	}
	return g, nil
}

// GroupsForUser lists the groups the user belongs to, newest first.
func (s *Store) GroupsForUser(ctx context.Context, userID int64) ([]model.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM groups
		 JOIN group_members ON group_members.group_id = groups.id
		 WHERE group_members.user_id = ?
		 ORDER BY groups.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateGroup applies a partial update; nil fields are left untouched.
func (s *Store) UpdateGroup(ctx context.Context, id int64, name, goal, description *string) (model.Group, error) {
	g, err := s.GroupByID(ctx, id)
	if err != nil {
		return model.Group{}, err
	}
	if name != nil {
		g.Name = *name
	}
	if goal != nil {
		g.Goal = *goal
	}
	if description != nil {
		g.Description = *description
	}
	now := toMillis(time.Now())
	if _, err := s.db.ExecContext(ctx,
		`UPDATE groups SET name = ?, goal = ?, description = ?, updated_at = ? WHERE id = ?`,
		g.Name, g.Goal, g.Description, now, id); err != nil {
		return model.Group{}, fmt.Errorf("update group: %w", err)
	}
	g.UpdatedAt = fromMillis(now)
	return g, nil
}

// DeleteGroup removes the group with its memberships and messages.
func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// AddMember joins a user to a group. Joining twice is a no-op.
func (s *Store) AddMember(ctx context.Context, groupID, userID int64) error {
	if _, err := s.GroupByID(ctx, groupID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)`,
		groupID, userID, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// RemoveMember drops a user's membership. Removing a non-member is a no-op.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// IsMember reports whether the user currently belongs to the group. This is
// the chat channel's authorization gate; it is checked once per connection.
func (s *Store) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select membership: %w", err)
	}
	return true, nil
}

// Members lists the users belonging to a group.
func (s *Store) Members(ctx context.Context, groupID int64) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 JOIN group_members ON group_members.user_id = users.id
		 WHERE group_members.group_id = ?
		 ORDER BY group_members.joined_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
