package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/chatrocket-server/internal/store"
)

const conversationColumns = `id, user_a, user_b, last_text, last_sender, last_seen, created_at, updated_at`

// FindConversationByParticipants looks a conversation up by unordered pair.
func (s *SQLStore) FindConversationByParticipants(ctx context.Context, a, b string) (*store.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE pair_key = ?`
	conv, err := scanConversation(s.queryRow(ctx, query, store.PairKey(a, b)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation between %s and %s: %w", a, b, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	conv, err := scanConversation(s.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return conv, nil
}

// CreateConversation creates the pair's conversation.
// A concurrent insert for the same pair collapses onto the existing row.
func (s *SQLStore) CreateConversation(ctx context.Context, a, b string, last store.LastMessage) (*store.Conversation, error) {
	userA, userB := store.OrderPair(a, b)
	ts := now()

	query := `
		INSERT INTO conversations (id, pair_key, user_a, user_b, last_text, last_sender, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pair_key) DO UPDATE SET
			last_text = excluded.last_text,
			last_sender = excluded.last_sender,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at
	`
	_, err := s.exec(ctx, query,
		uuid.NewString(), store.PairKey(a, b), userA, userB,
		last.Text, last.Sender, last.Seen, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return s.FindConversationByParticipants(ctx, a, b)
}

// UpdateLastMessage overwrites the conversation summary.
func (s *SQLStore) UpdateLastMessage(ctx context.Context, id string, last store.LastMessage) error {
	query := `
		UPDATE conversations
		SET last_text = ?, last_sender = ?, last_seen = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.exec(ctx, query, last.Text, last.Sender, last.Seen, now(), id)
	if err != nil {
		return fmt.Errorf("update last message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("conversation %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// MarkLastMessageSeen flips lastMessage.seen when the last sender is not viewerID.
// updated_at is left alone so reading does not reorder the conversation list.
func (s *SQLStore) MarkLastMessageSeen(ctx context.Context, id, viewerID string) error {
	query := `
		UPDATE conversations
		SET last_seen = ?
		WHERE id = ? AND last_sender <> ? AND last_seen = ?
	`
	if _, err := s.exec(ctx, query, true, id, viewerID, false); err != nil {
		return fmt.Errorf("mark last message seen: %w", err)
	}
	return nil
}

// ListConversations lists the user's conversations, most recently updated first.
func (s *SQLStore) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_a = ? OR user_b = ?
		ORDER BY updated_at DESC, id ASC
	`
	rows, err := s.query(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*store.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return convs, nil
}

func scanConversation(row scanner) (*store.Conversation, error) {
	var conv store.Conversation
	if err := row.Scan(
		&conv.ID,
		&conv.UserA,
		&conv.UserB,
		&conv.LastMessage.Text,
		&conv.LastMessage.Sender,
		&conv.LastMessage.Seen,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return &conv, nil
}
