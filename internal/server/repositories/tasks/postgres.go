package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/dbx"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

var taskColumns = []string{"id", "user_id", "title", "completed", "created_at", "updated_at"}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository implements task storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func returning() string {
	return "RETURNING " + strings.Join(taskColumns, ", ")
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string) ([]*models.Task, error) {
	query, args, err := psql.Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"user_id": ownerID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	query, args, err := psql.Insert("tasks").
		Columns(taskColumns...).
		Values(task.ID, task.UserID, task.Title, task.Completed, task.CreatedAt, task.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

func (r *PostgresRepository) UpdateTitle(ctx context.Context, ownerID, taskID, title string, updatedAt time.Time) (*models.Task, error) {
	b := psql.Update("tasks").
		Set("title", title).
		Set("updated_at", updatedAt)

	return r.updateOne(ctx, b, ownerID, taskID)
}

func (r *PostgresRepository) ToggleCompletion(ctx context.Context, ownerID, taskID string, updatedAt time.Time) (*models.Task, error) {
	b := psql.Update("tasks").
		Set("completed", sq.Expr("NOT completed")).
		Set("updated_at", updatedAt)

	return r.updateOne(ctx, b, ownerID, taskID)
}

// updateOne appends the owner-first predicate to b and returns the updated row.
func (r *PostgresRepository) updateOne(ctx context.Context, b sq.UpdateBuilder, ownerID, taskID string) (*models.Task, error) {
	query, args, err := b.
		Where(sq.Eq{"user_id": ownerID}).
		Where(sq.Eq{"id": taskID}).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	t, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, taskID string) error {
	query, args, err := psql.Delete("tasks").
		Where(sq.Eq{"user_id": ownerID}).
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) Exists(ctx context.Context, taskID string) (bool, error) {
	query, args, err := psql.Select("1").
		Prefix("SELECT EXISTS (").
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
