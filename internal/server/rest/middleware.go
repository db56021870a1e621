package rest

import (
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const userIDKey = "userID"

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func recovery(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error(c.Request.Context(), "panic recovered", "error", err, "stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal error"))
			}
		}()
		c.Next()
	}
}

const (
	visitorIdleTTL    = 10 * time.Minute
	visitorMaxIdleTTL = 24 * time.Hour
	visitorSweepEvery = time.Minute
	maxVisitors       = 10000
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorLimiter keeps one token bucket per client ip. Buckets idle for
// longer than idleTTL are dropped on the next sweep and at most maxSize
// buckets are held; when full, the least recently seen one is evicted.
type visitorLimiter struct {
	mu        sync.Mutex
	r         rate.Limit
	b         int
	idleTTL   time.Duration
	maxSize   int
	now       func() time.Time
	lastSweep time.Time
	visitors  map[string]*visitor
}

func newVisitorLimiter(r rate.Limit, b int) *visitorLimiter {
	return &visitorLimiter{
		r:        r,
		b:        b,
		idleTTL:  idleTTL(r, b),
		maxSize:  maxVisitors,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// idleTTL is never shorter than the time a drained bucket needs to refill,
// so dropping an idle bucket cannot hand a client extra tokens.
func idleTTL(r rate.Limit, b int) time.Duration {
	if r == rate.Inf {
		return visitorIdleTTL
	}
	if r <= 0 {
		return visitorMaxIdleTTL
	}
	refill := float64(b) / float64(r)
	if refill >= visitorMaxIdleTTL.Seconds() {
		return visitorMaxIdleTTL
	}
	return max(visitorIdleTTL, time.Duration(refill*float64(time.Second)))
}

func (v *visitorLimiter) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if now.Sub(v.lastSweep) >= visitorSweepEvery {
		v.sweep(now)
	}

	vis, ok := v.visitors[ip]
	if !ok {
		if len(v.visitors) >= v.maxSize {
			v.sweep(now)
		}
		if len(v.visitors) >= v.maxSize {
			v.evictOldest()
		}
		vis = &visitor{limiter: rate.NewLimiter(v.r, v.b)}
		v.visitors[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter.AllowN(now, 1)
}

func (v *visitorLimiter) sweep(now time.Time) {
	for ip, vis := range v.visitors {
		if now.Sub(vis.lastSeen) > v.idleTTL {
			delete(v.visitors, ip)
		}
	}
	v.lastSweep = now
}

func (v *visitorLimiter) evictOldest() {
	var (
		oldestIP string
		oldest   *visitor
	)
	for ip, vis := range v.visitors {
		if oldest == nil || vis.lastSeen.Before(oldest.lastSeen) {
			oldestIP, oldest = ip, vis
		}
	}
	delete(v.visitors, oldestIP)
}

func (v *visitorLimiter) size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.visitors)
}

// rateLimiter rejects a client once its bucket is empty. The client is
// c.ClientIP(), which honours forwarding headers only from the engine's
// trusted proxies.
func rateLimiter(l *visitorLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("rate limit exceeded"))
			return
		}
		c.Next()
	}
}

// bearerAuth admits a request only with a valid "Authorization: Bearer"
// token and stores the token subject under userIDKey. Rejected requests
// never reach the handlers.
func bearerAuth(authSvc AuthService, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}

		userID, err := authSvc.Verify(token)
		if err != nil {
			log.Debug(c.Request.Context(), "token rejected", "error", err)
			unauthorized(c, err.Error())
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", common.BearerScheme)
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(msg))
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
