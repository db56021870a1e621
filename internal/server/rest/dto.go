package rest

import (
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// taskRequest deliberately has no owner field; the owner is the token subject.
type taskRequest struct {
	Title string `json:"title"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type taskResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type tokenResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type sessionResponse struct {
	User userResponse `json:"user"`
	tokenResponse
}

func newTokenResponse(p services.TokenPair) tokenResponse {
	return tokenResponse{Token: p.AccessToken, RefreshToken: p.RefreshToken, ExpiresAt: p.ExpiresAt.UTC()}
}

func newSessionResponse(s *services.Session) sessionResponse {
	return sessionResponse{
		User: userResponse{
			ID:        s.User.ID,
			Email:     s.User.Email,
			CreatedAt: s.User.CreatedAt.UTC(),
		},
		tokenResponse: newTokenResponse(s.TokenPair),
	}
}

func newTaskResponse(t *models.Task) taskResponse {
	return taskResponse{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}
