package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/cryptox"
	"github.com/dmitrijs2005/taskkeeper/internal/dbx"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/events"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	cryptox.PasswordCost = bcrypt.MinCost
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type memUsers struct {
	mu        sync.Mutex
	byEmail   map[string]*models.User
	getErr    error
	createErr error
}

func newMemUsers() *memUsers { return &memUsers{byEmail: map[string]*models.User{}} }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.byEmail[u.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	cp := *u
	r.byEmail[u.Email] = &cp
	return u, nil
}

func (r *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

type memRefreshTokens struct {
	mu        sync.Mutex
	tokens    map[string]*models.RefreshToken
	createErr error
	deleteErr error
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{tokens: map[string]*models.RefreshToken{}}
}

func (r *memRefreshTokens) Create(_ context.Context, t *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *t
	r.tokens[t.Token] = &cp
	return nil
}

func (r *memRefreshTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRefreshTokens) Delete(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return false, r.deleteErr
	}
	_, ok := r.tokens[token]
	delete(r.tokens, token)
	return ok, nil
}

// memTasks mimics the owner-first predicates of the SQL repository.
type memTasks struct {
	mu        sync.Mutex
	rows      map[string]*models.Task
	mutations int
	err       error
	existsErr error
}

func newMemTasks() *memTasks { return &memTasks{rows: map[string]*models.Task{}} }

func (r *memTasks) List(_ context.Context, ownerID string) ([]*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*models.Task, 0)
	for _, t := range r.rows {
		if t.UserID == ownerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *memTasks) Create(_ context.Context, t *models.Task) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	cp := *t
	r.rows[t.ID] = &cp
	return t, nil
}

func (r *memTasks) owned(ownerID, taskID string) (*models.Task, error) {
	r.mutations++
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.rows[taskID]
	if !ok || t.UserID != ownerID {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (r *memTasks) UpdateTitle(_ context.Context, ownerID, taskID, title string, at time.Time) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.owned(ownerID, taskID)
	if err != nil {
		return nil, err
	}
	t.Title, t.UpdatedAt = title, at
	cp := *t
	return &cp, nil
}

func (r *memTasks) ToggleCompletion(_ context.Context, ownerID, taskID string, at time.Time) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.owned(ownerID, taskID)
	if err != nil {
		return nil, err
	}
	t.Completed, t.UpdatedAt = !t.Completed, at
	cp := *t
	return &cp, nil
}

func (r *memTasks) Delete(_ context.Context, ownerID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.owned(ownerID, taskID); err != nil {
		return err
	}
	delete(r.rows, taskID)
	return nil
}

func (r *memTasks) Exists(_ context.Context, taskID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, ok := r.rows[taskID]
	return ok, nil
}

func (r *memTasks) get(id string) *models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

type fakeRepoManager struct {
	users  *memUsers
	tokens *memRefreshTokens
	tasks  *memTasks
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{users: newMemUsers(), tokens: newMemRefreshTokens(), tasks: newMemTasks()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.tokens }
func (m *fakeRepoManager) Tasks(dbx.DBTX) tasks.Repository                 { return m.tasks }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	keys   []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type logEntry struct {
	level string
	msg   string
}

// recordingLogger keeps the messages only; attributes are not inspected.
type recordingLogger struct {
	mu      sync.Mutex
	entries *[]logEntry
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{entries: &[]logEntry{}}
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...any) { l.add("error", msg) }
func (l *recordingLogger) With(...any) logging.Logger                    { return l }

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

var errBoom = fmt.Errorf("boom")
