package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notedhq/noted/pkg/model"
)

const imageColumns = "id, user_id, title, description, object_name, created_at, updated_at"

func scanImage(row interface{ Scan(...any) error }) (model.Image, error) {
	var img model.Image
	var created, updated int64
	if err := row.Scan(&img.ID, &img.UserID, &img.Title, &img.Description, &img.ObjectName, &created, &updated); err != nil {
		return model.Image{}, err
	}
	img.CreatedAt = fromMillis(created)
	img.UpdatedAt = fromMillis(updated)
	return img, nil
}

func (s *Store) CreateImage(ctx context.Context, userID int64, title, description, objectName string) (model.Image, error) {
	id := s.ids.Generate()
	now := toMillis(time.Now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (id, user_id, title, description, object_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, title, description, objectName, now, now)
	if err != nil {
		return model.Image{}, fmt.Errorf("insert image: %w", err)
	}

	return model.Image{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: description,
		ObjectName:  objectName,
		CreatedAt:   fromMillis(now),
		UpdatedAt:   fromMillis(now),
	}, nil
}

// ImageByID returns the image only when it belongs to userID; other users'
// images read as not found.
func (s *Store) ImageByID(ctx context.Context, id, userID int64) (model.Image, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = ? AND user_id = ?`, id, userID)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Image{}, ErrNotFound
	}
	if err != nil {
		return model.Image{}, fmt.Errorf("select image: %w", err)
	}
	return img, nil
}

func (s *Store) ImagesForUser(ctx context.Context, userID int64) ([]model.Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select images: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// UpdateImage applies a partial update to a caller-owned image.
func (s *Store) UpdateImage(ctx context.Context, id, userID int64, title, description *string) (model.Image, error) {
	img, err := s.ImageByID(ctx, id, userID)
	if err != nil {
		return model.Image{}, err
	}
	if title != nil {
		img.Title = *title
	}
	if description != nil {
		img.Description = *description
	}
	now := toMillis(time.Now())
	if _, err := s.db.ExecContext(ctx,
		`UPDATE images SET title = ?, description = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		img.Title, img.Description, now, id, userID); err != nil {
		return model.Image{}, fmt.Errorf("update image: %w", err)
	}
	img.UpdatedAt = fromMillis(now)
	return img, nil
}

// DeleteImage removes a caller-owned image row and returns it so the handler
// can unlink the stored file.
func (s *Store) DeleteImage(ctx context.Context, id, userID int64) (model.Image, error) {
	img, err := s.ImageByID(ctx, id, userID)
	if err != nil {
		return model.Image{}, err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM images WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return model.Image{}, fmt.Errorf("delete image: %w", err)
	}
	return img, nil
}
