package server

import (
	"crypto/subtle"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/leasebook/internal/auditcontext"
	obscontext "github.com/smallbiznis/leasebook/internal/observability/context"
	"github.com/smallbiznis/leasebook/internal/observability/logger"
	"github.com/smallbiznis/leasebook/internal/ownercontext"
	"go.uber.org/zap"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderAdminToken = "X-Admin-Token"
)

// OwnerContext trusts the X-User-ID header injected by the gateway after it authenticated the landlord.
func OwnerContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		ownerID, err := snowflake.ParseString(raw)
		if err != nil || ownerID <= 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		ctx = ownercontext.WithOwnerID(ctx, ownerID)
		ctx = obscontext.WithOwnerID(ctx, ownerID.String())
		ctx = obscontext.WithActor(ctx, string(ActorUser), ownerID.String())
		ctx = auditcontext.WithActor(ctx, string(ActorUser), ownerID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminTokenRequired guards operator routes. An empty configured token disables them.
func (s *Server) AdminTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(s.cfg.AdminToken)
		if expected == "" {
			AbortWithError(c, ErrNotFound)
			return
		}
		provided := strings.TrimSpace(c.GetHeader(HeaderAdminToken))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			logger.FromContext(c.Request.Context()).Warn("admin token rejected", zap.String("path", c.Request.URL.Path))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		ctx = obscontext.WithActor(ctx, string(ActorSystem), "admin")
		ctx = auditcontext.WithActor(ctx, string(ActorSystem), "admin")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ManualTriggerRateLimit throttles on-demand generation per landlord. It is open when Redis is not configured.
func (s *Server) ManualTriggerRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.manualLimiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ownerID, ok := ownercontext.OwnerIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.manualLimiter.AllowOwner(ctx, ownerID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("manual trigger rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			retryAfter := max(int(result.RetryAfter.Seconds()), 1)
			logger.FromContext(ctx).Warn("manual trigger rate limit exceeded", zap.Int("retry_after_seconds", retryAfter))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
