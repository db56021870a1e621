package rest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/google/uuid"
)

const testSecret = "rest-test-secret"

type fakeAccount struct {
	user     *models.User
	password string
}

// fakeAuth signs real tokens so the bearer middleware is exercised end to end.
type fakeAuth struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
	refresh  map[string]string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{accounts: map[string]*fakeAccount{}, refresh: map[string]string{}}
}

func (a *fakeAuth) session(u *models.User) (*services.Session, error) {
	token, exp, err := auth.GenerateToken(u.ID, []byte(testSecret), time.Hour)
	if err != nil {
		return nil, err
	}
	rt := uuid.NewString()
	a.refresh[rt] = u.ID
	return &services.Session{
		User:      u,
		TokenPair: services.TokenPair{AccessToken: token, RefreshToken: rt, ExpiresAt: exp},
	}, nil
}

func (a *fakeAuth) Signup(_ context.Context, email, password string) (*services.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := a.accounts[email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if len(password) < common.MinPasswordLength {
		return nil, common.ErrorValidation
	}
	u := &models.User{ID: uuid.NewString(), Email: email, CreatedAt: time.Now()}
	a.accounts[email] = &fakeAccount{user: u, password: password}
	return a.session(u)
}

func (a *fakeAuth) Signin(_ context.Context, email, password string) (*services.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || acc.password != password {
		return nil, common.ErrorInvalidCredentials
	}
	return a.session(acc.user)
}

func (a *fakeAuth) Refresh(_ context.Context, token string) (*services.TokenPair, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	userID, ok := a.refresh[token]
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	delete(a.refresh, token)
	for _, acc := range a.accounts {
		if acc.user.ID == userID {
			s, err := a.session(acc.user)
			if err != nil {
				return nil, err
			}
			return &s.TokenPair, nil
		}
	}
	return nil, common.ErrorUnauthorized
}

func (a *fakeAuth) Signout(_ context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if token == "" {
		return common.ErrorValidation
	}
	delete(a.refresh, token)
	return nil
}

func (a *fakeAuth) Verify(token string) (string, error) {
	return auth.GetUserIDFromToken(token, []byte(testSecret))
}

// fakeTasks keeps tasks in memory and scopes every operation by owner.
type fakeTasks struct {
	mu      sync.Mutex
	rows    []*models.Task
	clock   time.Time
	err     error
	panicOn string
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{clock: time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeTasks) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeTasks) find(ownerID, id string) *models.Task {
	for _, t := range f.rows {
		if t.UserID == ownerID && t.ID == id {
			return t
		}
	}
	return nil
}

func (f *fakeTasks) List(_ context.Context, ownerID string) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == "list" {
		panic("list exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Task
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].UserID == ownerID {
			cp := *f.rows[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTasks) Create(_ context.Context, ownerID, title string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, common.ErrorValidation
	}
	now := f.tick()
	t := &models.Task{ID: uuid.NewString(), UserID: ownerID, Title: title, CreatedAt: now, UpdatedAt: now}
	f.rows = append(f.rows, t)
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) UpdateTitle(_ context.Context, ownerID, id, title string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, common.ErrorValidation
	}
	t := f.find(ownerID, id)
	if t == nil {
		return nil, common.ErrorNotFound
	}
	t.Title, t.UpdatedAt = title, f.tick()
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) ToggleCompletion(_ context.Context, ownerID, id string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.find(ownerID, id)
	if t == nil {
		return nil, common.ErrorNotFound
	}
	t.Completed, t.UpdatedAt = !t.Completed, f.tick()
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) Delete(_ context.Context, ownerID, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.rows {
		if t.UserID == ownerID && t.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return id, nil
		}
	}
	return "", common.ErrorNotFound
}

func (f *fakeTasks) byID(id string) *models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.ID == id {
			cp := *t
			return &cp
		}
	}
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }
