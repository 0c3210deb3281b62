package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the config file on change and hands the updated snapshot to
// apply. Callers decide which fields are safe to honor at runtime.
func Watch(v *viper.Viper, apply func(Config, fsnotify.Event)) {
	v.OnConfigChange(func(event fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		apply(cfg, event)
	})
	v.WatchConfig()
}
