// Package rest exposes the auth and task operations over HTTP with gin.
package rest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// AuthService is the part of services.UserService the handlers need.
type AuthService interface {
	Signup(ctx context.Context, email, password string) (*services.Session, error)
	Signin(ctx context.Context, email, password string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Signout(ctx context.Context, refreshToken string) error
	Verify(token string) (string, error)
}

// TaskService is the part of services.TaskService the handlers need.
type TaskService interface {
	List(ctx context.Context, ownerID string) ([]*models.Task, error)
	Create(ctx context.Context, ownerID, title string) (*models.Task, error)
	UpdateTitle(ctx context.Context, ownerID, taskID, title string) (*models.Task, error)
	ToggleCompletion(ctx context.Context, ownerID, taskID string) (*models.Task, error)
	Delete(ctx context.Context, ownerID, taskID string) (string, error)
}

// Pinger reports database reachability for /health. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterConfig struct {
	CORSOrigins []string
	// TrustedProxies lists the addresses or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Nil trusts none.
	TrustedProxies []string
	AuthRateLimit  float64
	AuthRateBurst  int
	Version        string
}

// NewRouter builds the gin engine with every route and middleware attached.
// It fails only on a malformed TrustedProxies entry.
func NewRouter(cfg RouterConfig, authSvc AuthService, taskSvc TaskService, db Pinger, log logging.Logger) (*gin.Engine, error) {
	log = log.With("module", "http")
	h := &handler{auth: authSvc, tasks: taskSvc, db: db, log: log, version: cfg.Version}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(requestLogger(log))
	r.Use(recovery(log))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.GET("/", h.root)
	r.GET("/health", h.health)

	api := r.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Use(rateLimiter(newVisitorLimiter(rate.Limit(cfg.AuthRateLimit), cfg.AuthRateBurst)))
	{
		authRoutes.POST("/signup", h.signup)
		authRoutes.POST("/signin", h.signin)
		authRoutes.POST("/refresh", h.refresh)
		authRoutes.POST("/signout", h.signout)
	}

	taskRoutes := api.Group("/tasks")
	taskRoutes.Use(bearerAuth(authSvc, log))
	{
		taskRoutes.GET("", h.listTasks)
		taskRoutes.POST("", h.createTask)
		taskRoutes.PUT("/:id", h.updateTask)
		taskRoutes.PATCH("/:id/complete", h.toggleTask)
		taskRoutes.DELETE("/:id", h.deleteTask)
	}

	return r, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
