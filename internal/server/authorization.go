package server

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/leasebook/internal/ownercontext"
)

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

type Actor struct {
	Type    ActorType
	OwnerID snowflake.ID
	ID      string
}

func (s *Server) authorizeOwnerAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOwnerActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOwnerActionWithContext(c *gin.Context, object string, action string) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor.subject(), actor.OwnerID.String(), strings.TrimSpace(object), strings.TrimSpace(action))
}

// actorFromContext resolves the landlord set by OwnerContext. Landlords act on their own records only.
func actorFromContext(c *gin.Context) (Actor, bool) {
	if c == nil {
		return Actor{}, false
	}
	ownerID, ok := ownercontext.OwnerIDFromContext(c.Request.Context())
	if !ok {
		return Actor{}, false
	}
	return Actor{Type: ActorUser, OwnerID: ownerID, ID: ownerID.String()}, true
}

func (a Actor) subject() string {
	switch a.Type {
	case ActorUser:
		return fmt.Sprintf("user:%s", a.ID)
	case ActorSystem:
		return "system"
	default:
		return ""
	}
}
