// Package tasks stores tasks. Every read and write is scoped by the owner's
// user id in the WHERE clause itself, so a call can never see or touch a row
// that belongs to someone else.
package tasks

import (
	"context"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

type Repository interface {
	// List returns ownerID's tasks, newest first.
	List(ctx context.Context, ownerID string) ([]*models.Task, error)
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	// UpdateTitle, ToggleCompletion and Delete return common.ErrorNotFound
	// when no task with taskID is owned by ownerID.
	UpdateTitle(ctx context.Context, ownerID, taskID, title string, updatedAt time.Time) (*models.Task, error)
	ToggleCompletion(ctx context.Context, ownerID, taskID string, updatedAt time.Time) (*models.Task, error)
	Delete(ctx context.Context, ownerID, taskID string) error
	// Exists reports whether any task has taskID, regardless of owner. It is
	// for audit logging only and must never feed a response.
	Exists(ctx context.Context, taskID string) (bool, error)
}
