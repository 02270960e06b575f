package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ragchat/internal/models"
)

// SQLStore persists conversations in the tables created by storage.Migrate.
type SQLStore struct {
	db        *sql.DB
	namespace string
}

func NewSQLStore(db *sql.DB, namespace string) *SQLStore {
	return &SQLStore{db: db, namespace: namespace}
}

func (s *SQLStore) Create(ctx context.Context, seed ...models.Message) (string, error) {
	id := NewID()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, namespace, created_at) VALUES (?, ?, ?)`,
		id, s.namespace, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	for _, msg := range seed {
		if err := insertMessage(ctx, tx, s.namespace, id, msg); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit conversation: %w", err)
	}
	return id, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertMessage(ctx context.Context, db execer, namespace, id string, msg models.Message) error {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO conversation_messages (namespace, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		namespace, id, string(msg.Role), msg.Content, msg.Timestamp.UTC()); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLStore) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE namespace = ? AND id = ?`, s.namespace, id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup conversation: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) ([]models.Message, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM conversation_messages
		WHERE namespace = ? AND conversation_id = ? ORDER BY seq ASC`, s.namespace, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg  models.Message
			role string
		)
		if err := rows.Scan(&role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = models.Role(role)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func (s *SQLStore) Append(ctx context.Context, id string, msg models.Message) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	return insertMessage(ctx, s.db, s.namespace, id, msg)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys is a per-connection pragma, so messages are removed explicitly
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE namespace = ? AND conversation_id = ?`, s.namespace, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE namespace = ? AND id = ?`, s.namespace, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM conversations WHERE namespace = ?`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
