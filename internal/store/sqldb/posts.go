package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/chatrocket-server/internal/store"
)

// CreatePost inserts a post. ID and CreatedAt are assigned when empty.
func (s *SQLStore) CreatePost(ctx context.Context, post *store.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now()
	}

	query := `
		INSERT INTO posts (id, posted_by, text, img, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.exec(ctx, query, post.ID, post.PostedBy, post.Text, post.Img, post.CreatedAt); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetPostByID retrieves a post by ID.
func (s *SQLStore) GetPostByID(ctx context.Context, id string) (*store.Post, error) {
	query := `
		SELECT id, posted_by, text, img, created_at
		FROM posts
		WHERE id = ?
	`
	var post store.Post
	err := s.queryRow(ctx, query, id).Scan(
		&post.ID,
		&post.PostedBy,
		&post.Text,
		&post.Img,
		&post.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query post: %w", err)
	}
	post.CreatedAt = post.CreatedAt.UTC()
	return &post, nil
}
