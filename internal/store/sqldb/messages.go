package sqldb

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/chatrocket-server/internal/store"
)

// InsertMessage persists a message. ID and CreatedAt are assigned when empty.
func (s *SQLStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, text, image, video, post_id, seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.exec(ctx, query,
		msg.ID, msg.ConversationID, msg.Sender,
		msg.Text, msg.Image, msg.Video, msg.PostID,
		msg.Seen, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages, oldest first.
func (s *SQLStore) ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, text, image, video, post_id, seen, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Sender,
			&msg.Text,
			&msg.Image,
			&msg.Video,
			&msg.PostID,
			&msg.Seen,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// MarkAllSeenExcept flips seen on unseen messages not sent by excludedSender.
func (s *SQLStore) MarkAllSeenExcept(ctx context.Context, conversationID, excludedSender string) (int64, error) {
	query := `
		UPDATE messages
		SET seen = ?
		WHERE conversation_id = ? AND sender_id <> ? AND seen = ?
	`
	res, err := s.exec(ctx, query, true, conversationID, excludedSender, false)
	if err != nil {
		return 0, fmt.Errorf("mark messages seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
