// Package observability wires the process logger and the prometheus registry.
package observability

import (
	"github.com/exportflowlabs/exportflow/internal/config"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(NewRegistry),
)

// NewLogger builds the process zap logger. The level follows log.level from
// config and is the one setting honored on config file reload.
func NewLogger(cfg config.Config, v *viper.Viper) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Log.Level))

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}

	config.Watch(v, func(next config.Config, _ fsnotify.Event) {
		level.SetLevel(parseLevel(next.Log.Level))
	})

	return log, nil
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func parseLevel(raw string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(raw)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
