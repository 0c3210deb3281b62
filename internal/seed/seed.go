// Package seed provisions demo API keys for local development. Every
// organization in the pipeline gets one key with a fixed raw value.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/exportflowlabs/exportflow/internal/apikey/domain"
	"github.com/exportflowlabs/exportflow/internal/authz"
	"github.com/exportflowlabs/exportflow/internal/catalog"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type demoKey struct {
	Name         string
	Role         authz.Role
	Organization string
	Scopes       []string
	RawKey       string
}

func demoKeys() []demoKey {
	rw := []string{apikeydomain.ScopeExportsRead, apikeydomain.ScopeExportsWrite}
	return []demoKey{
		{"demo-exporter", authz.RoleExporter, catalog.OrgExporter, rw, "dev-exporter-key"},
		{"demo-ecx", authz.RoleECX, catalog.OrgECX, rw, "dev-ecx-key"},
		{"demo-ecta", authz.RoleECTA, catalog.OrgECTA, rw, "dev-ecta-key"},
		{"demo-commercial-bank", authz.RoleCommercialBank, catalog.OrgCommercialBank, rw, "dev-commercial-bank-key"},
		{"demo-national-bank", authz.RoleNationalBank, catalog.OrgNationalBank, rw, "dev-national-bank-key"},
		{"demo-customs", authz.RoleCustoms, catalog.OrgCustoms, rw, "dev-customs-key"},
		{"demo-shipping-line", authz.RoleShippingLine, catalog.OrgShippingLine, rw, "dev-shipping-line-key"},
		{"demo-admin", authz.RoleAdmin, "compliance", []string{apikeydomain.ScopeExportsRead, apikeydomain.ScopeAuditRead}, "dev-admin-key"},
	}
}

// EnsureDemoKeys inserts one API key per organization, skipping keys that
// already exist.
func EnsureDemoKeys(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := time.Now().UTC()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, k := range demoKeys() {
			hash := apikeydomain.HashAPIKey(k.RawKey)

			var count int64
			if err := tx.Model(&apikeydomain.APIKey{}).
				Where("key_hash = ?", hash).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			id := node.Generate()
			record := apikeydomain.APIKey{
				ID:           id,
				Name:         k.Name,
				KeyHash:      hash,
				ActorID:      id,
				Role:         string(k.Role),
				Organization: k.Organization,
				Scopes:       pq.StringArray(k.Scopes),
				IsActive:     true,
				CreatedAt:    now,
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("seed api key %s: %w", k.Name, err)
			}
		}
		return nil
	})
}
