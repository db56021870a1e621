package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/events"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const publishTimeout = 5 * time.Second

// TaskService runs the owner-scoped task operations. ownerID always comes
// from a verified token and is never taken from request bodies.
type TaskService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   events.Publisher
	log         logging.Logger
	now         func() time.Time
}

func NewTaskService(db *sql.DB, m repomanager.RepositoryManager, p events.Publisher, log logging.Logger) *TaskService {
	return &TaskService{
		db:          db,
		repomanager: m,
		publisher:   p,
		log:         log.With("module", "tasks"),
		now:         time.Now,
	}
}

// List returns the owner's tasks, newest first.
func (s *TaskService) List(ctx context.Context, ownerID string) ([]*models.Task, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	tasks, err := s.repomanager.Tasks(s.db).List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) Create(ctx context.Context, ownerID, title string) (*models.Task, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task, err := s.repomanager.Tasks(s.db).Create(ctx, &models.Task{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating task: %w", err)
	}

	s.publish(ctx, events.ForTask(events.TaskCreated, task, now))
	return task, nil
}

// UpdateTitle validates title before touching storage, so a rejected title
// leaves the stored one as it was.
func (s *TaskService) UpdateTitle(ctx context.Context, ownerID, taskID, title string) (*models.Task, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	id, ok := parseTaskID(taskID)
	if !ok {
		return nil, common.ErrorNotFound
	}

	now := s.now().UTC()
	task, err := s.repomanager.Tasks(s.db).UpdateTitle(ctx, ownerID, id, title, now)
	if err != nil {
		return nil, s.mutationError(ctx, "update", ownerID, id, err)
	}

	s.publish(ctx, events.ForTask(events.TaskUpdated, task, now))
	return task, nil
}

func (s *TaskService) ToggleCompletion(ctx context.Context, ownerID, taskID string) (*models.Task, error) {
	if ownerID == "" {
		return nil, common.ErrorUnauthorized
	}
	id, ok := parseTaskID(taskID)
	if !ok {
		return nil, common.ErrorNotFound
	}

	now := s.now().UTC()
	task, err := s.repomanager.Tasks(s.db).ToggleCompletion(ctx, ownerID, id, now)
	if err != nil {
		return nil, s.mutationError(ctx, "toggle", ownerID, id, err)
	}

	s.publish(ctx, events.ForTask(events.ToggleType(task.Completed), task, now))
	return task, nil
}

// Delete removes the task and returns its canonical id.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) (string, error) {
	if ownerID == "" {
		return "", common.ErrorUnauthorized
	}
	id, ok := parseTaskID(taskID)
	if !ok {
		return "", common.ErrorNotFound
	}

	if err := s.repomanager.Tasks(s.db).Delete(ctx, ownerID, id); err != nil {
		return "", s.mutationError(ctx, "delete", ownerID, id, err)
	}

	s.publish(ctx, events.ForDeletedTask(ownerID, id, s.now()))
	return id, nil
}

// mutationError passes storage failures through wrapped and, for a zero-row
// mutation, records whether the id exists under another owner. The caller
// gets common.ErrorNotFound either way.
func (s *TaskService) mutationError(ctx context.Context, op, ownerID, taskID string, err error) error {
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("error during task %s: %w", op, err)
	}

	exists, exErr := s.repomanager.Tasks(s.db).Exists(ctx, taskID)
	switch {
	case exErr != nil:
		s.log.Error(ctx, "task audit lookup failed", "op", op, "task_id", taskID, "error", exErr)
	case exists:
		s.log.Warn(ctx, "task not owned by caller", "op", op, "task_id", taskID, "user_id", ownerID)
	default:
		s.log.Info(ctx, "task not found", "op", op, "task_id", taskID, "user_id", ownerID)
	}
	return common.ErrorNotFound
}

// publish is best effort. The write has already committed, so a broker
// failure is logged and the request still succeeds.
func (s *TaskService) publish(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, ev.Data.UserID, ev); err != nil {
		s.log.Error(ctx, "event publish failed", "event_type", ev.Type, "task_id", ev.Data.TaskID, "error", err)
	}
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title must not be empty", common.ErrorValidation)
	}
	if utf8.RuneCountInString(title) > common.MaxTaskTitleLength {
		return "", fmt.Errorf("%w: title must be at most %d characters", common.ErrorValidation, common.MaxTaskTitleLength)
	}
	return title, nil
}

// parseTaskID returns the canonical form of a UUID task id.
func parseTaskID(taskID string) (string, bool) {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
