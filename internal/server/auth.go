package server

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/exportflowlabs/exportflow/internal/apikey/domain"
	"github.com/exportflowlabs/exportflow/internal/authz"
	exportdomain "github.com/exportflowlabs/exportflow/internal/export/domain"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

const (
	contextActorKey  = "actor"
	contextScopesKey = "api_key_scopes"
)

// APIKeyRequired authenticates the request against the api_keys table and
// attaches the key's acting identity to the gin context.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		hash := apikeydomain.HashAPIKey(parts[1])
		now := time.Now().UTC()

		var record struct {
			ID           snowflake.ID   `gorm:"column:id"`
			ActorID      snowflake.ID   `gorm:"column:actor_id"`
			Role         string         `gorm:"column:role"`
			Organization string         `gorm:"column:organization"`
			KeyHash      string         `gorm:"column:key_hash"`
			Scopes       pq.StringArray `gorm:"column:scopes;type:text[]"`
		}

		if err := s.db.WithContext(c.Request.Context()).Raw(
			`SELECT id, actor_id, role, organization, key_hash, scopes
			 FROM api_keys
			 WHERE key_hash = ?
			   AND is_active = true
			   AND (expires_at IS NULL OR expires_at > ?)
			 LIMIT 1`,
			hash,
			now,
		).Scan(&record).Error; err != nil {
			AbortWithError(c, err)
			return
		}

		if record.ID == 0 || subtle.ConstantTimeCompare([]byte(record.KeyHash), []byte(hash)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		role, err := authz.ParseRole(record.Role)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextActorKey, exportdomain.Actor{
			ID:           record.ActorID,
			Role:         role,
			Organization: record.Organization,
		})
		c.Set(contextScopesKey, []string(record.Scopes))
		c.Next()
	}
}

// RequireScope gates a route on one API key scope.
func (s *Server) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopes, ok := c.Get(contextScopesKey)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		for _, have := range scopes.([]string) {
			if have == scope {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrScope)
	}
}

func actorFromContext(c *gin.Context) (exportdomain.Actor, bool) {
	v, ok := c.Get(contextActorKey)
	if !ok {
		return exportdomain.Actor{}, false
	}
	actor, ok := v.(exportdomain.Actor)
	return actor, ok
}
