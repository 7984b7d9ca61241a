package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"stockchat/backend/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository expects a database already migrated by database.InitDB.
func NewSQLiteRepository(db *sql.DB) ThreadRepository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) GetThread(ctx context.Context, threadID string) ([]model.ThreadMessage, error) {
	query := `
		SELECT id, role, content, tool_calls, tool_call_id, tool_name, created_at
		FROM thread_messages
		WHERE thread_id = ?
		ORDER BY seq ASC
	`
	rows, err := r.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("could not query thread: %w", err)
	}
	defer rows.Close()

	messages := []model.ThreadMessage{}
	for rows.Next() {
		var msg model.ThreadMessage
		var toolCalls, toolCallID, toolName sql.NullString

		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &toolCalls, &toolCallID, &toolName, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("could not scan message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("could not decode tool calls of message %s: %w", msg.ID, err)
			}
		}
		msg.ToolCallID = toolCallID.String
		msg.ToolName = toolName.String

		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessages writes the messages and touches the thread in one
// transaction.
func (r *sqliteRepository) AppendMessages(ctx context.Context, threadID string, msgs ...model.ThreadMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	upsertThread := `
		INSERT INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, upsertThread, threadID, now, now); err != nil {
		return fmt.Errorf("could not upsert thread: %w", err)
	}

	insertMsg := `
		INSERT INTO thread_messages (id, thread_id, role, content, tool_calls, tool_call_id, tool_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, msg := range msgs {
		var toolCalls sql.NullString
		if len(msg.ToolCalls) > 0 {
			encoded, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("could not encode tool calls: %w", err)
			}
			toolCalls = sql.NullString{String: string(encoded), Valid: true}
		}
		_, err := tx.ExecContext(ctx, insertMsg,
			msg.ID,
			threadID,
			msg.Role,
			msg.Content,
			toolCalls,
			nullString(msg.ToolCallID),
			nullString(msg.ToolName),
			msg.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("could not insert message: %w", err)
		}
	}

	return tx.Commit()
}

func (r *sqliteRepository) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM thread_messages WHERE thread_id = ?", threadID); err != nil {
		return fmt.Errorf("could not delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM threads WHERE id = ?", threadID)
	if err != nil {
		return fmt.Errorf("could not delete thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
