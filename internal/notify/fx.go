package notify

import (
	"github.com/exportflowlabs/exportflow/internal/config"
	exportdomain "github.com/exportflowlabs/exportflow/internal/export/domain"
	"github.com/exportflowlabs/exportflow/internal/metrics"
	"github.com/exportflowlabs/exportflow/internal/notify/domain"
	"github.com/exportflowlabs/exportflow/internal/notify/provider/email"
	"github.com/exportflowlabs/exportflow/internal/notify/provider/webhook"
	"github.com/exportflowlabs/exportflow/internal/notify/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("notify",
	fx.Provide(
		NewProviders,
		NewDispatcher,
		func(d *service.Dispatcher) exportdomain.Nudger { return d },
	),
)

// NewProviders assembles the delivery channels enabled by configuration.
func NewProviders(cfg config.Config) []domain.Provider {
	var providers []domain.Provider
	if cfg.Notify.WebhookURL != "" {
		providers = append(providers, webhook.New(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.SMTPHost != "" && cfg.Notify.To != "" {
		providers = append(providers, email.New(cfg.Notify))
	}
	return providers
}

func NewDispatcher(db *gorm.DB, log *zap.Logger, rdb *redis.Client, providers []domain.Provider, m *metrics.Metrics, cfg config.Config) *service.Dispatcher {
	return service.NewDispatcher(db, log, rdb, providers, m, service.DispatcherConfig{
		ComplianceLog: cfg.Notify.ComplianceLog,
		DedupTTL:      cfg.Notify.DedupTTL,
	})
}
