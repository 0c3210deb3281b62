package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// APIKey binds a bearer credential to one acting identity. Partner systems
// authenticate with a key; the role and organization on the record decide
// what the resolver lets them do.
type APIKey struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	Name    string       `gorm:"type:text;not null" json:"name"`
	KeyHash string       `gorm:"type:text;not null;uniqueIndex" json:"-"`

	ActorID      snowflake.ID `gorm:"not null" json:"actor_id"`
	Role         string       `gorm:"type:text;not null" json:"role"`
	Organization string       `gorm:"type:text;not null" json:"organization"`

	Scopes pq.StringArray `gorm:"column:scopes;type:text[]" json:"scopes"`

	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (APIKey) TableName() string { return "api_keys" }

const (
	ScopeExportsRead  = "exports:read"
	ScopeExportsWrite = "exports:write"
	ScopeAuditRead    = "audit:read"
)

// HashAPIKey derives the stored digest of a raw key. Only the digest ever
// touches the database.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
