package todo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store persists todos in Postgres.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const columns = `id, title, done, created_at, updated_at, description, category, priority`

func (s *Store) List(ctx context.Context) ([]Todo, error) {
	todos := []Todo{}
	query := `SELECT ` + columns + ` FROM todos ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &todos, query); err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

func (s *Store) Get(ctx context.Context, id int) (*Todo, error) {
	var t Todo
	query := `SELECT ` + columns + ` FROM todos WHERE id = $1`
	if err := s.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get todo %d: %w", id, err)
	}
	return &t, nil
}

// Create inserts t and fills in its generated id and creation time.
func (s *Store) Create(ctx context.Context, t *Todo) error {
	if err := t.Normalize(); err != nil {
		return err
	}

	query := `
		INSERT INTO todos (title, done, description, category, priority, created_at)
		VALUES (:title, :done, :description, :category, :priority, NOW())
		RETURNING id, created_at`

	rows, err := s.db.NamedQueryContext(ctx, query, t)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to create todo: %w", err)
		}
		return fmt.Errorf("failed to create todo: no id returned")
	}
	if err := rows.Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("failed to scan created todo: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of the todo with t.ID and stamps
// updated_at. The creation time is never changed.
func (s *Store) Update(ctx context.Context, t *Todo) error {
	if err := t.Normalize(); err != nil {
		return err
	}

	query := `
		UPDATE todos
		SET title = $1, done = $2, description = $3, category = $4, priority = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING ` + columns

	var updated Todo
	err := s.db.GetContext(ctx, &updated, query,
		t.Title, t.Done, t.Description, t.Category, t.Priority, t.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update todo %d: %w", t.ID, err)
	}
	*t = updated
	return nil
}

func (s *Store) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete todo %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete todo %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListByCategory(ctx context.Context, category string) ([]Todo, error) {
	todos := []Todo{}
	query := `SELECT ` + columns + ` FROM todos WHERE category = $1 ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &todos, query, category); err != nil {
		return nil, fmt.Errorf("failed to list todos in category %q: %w", category, err)
	}
	return todos, nil
}

// ListPending returns unfinished todos, most urgent first.
func (s *Store) ListPending(ctx context.Context) ([]Todo, error) {
	todos := []Todo{}
	query := `SELECT ` + columns + ` FROM todos WHERE done = FALSE ORDER BY priority ASC, created_at DESC`
	if err := s.db.SelectContext(ctx, &todos, query); err != nil {
		return nil, fmt.Errorf("failed to list pending todos: %w", err)
	}
	return todos, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
