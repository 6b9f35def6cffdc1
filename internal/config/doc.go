// Package config provides the pagestorm configuration.
//
// Settings are layered lowest first:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← PAGESTORM_*, highest priority
//	├─────────────────────────────┤
//	│  2. Config File             │  ← pagestorm.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← lowest priority
//	└─────────────────────────────┘
//
// Each layer is a nested map; the layers are merged with layer.DeepMerge
// and decoded into the typed Config.
//
// # Sections
//
//   - page: terminal page geometry used by the cell measurer
//   - reflow: automatic reflow after mutations
//   - commands: executor limits, hooks and journal
//   - logging: level, format and destination
//   - server: HTTP listen address, timeouts and config reload
//
// # Sub-packages
//
//   - loader: TOML file and environment loading
//   - layer: map merging and path helpers
//   - watcher: fsnotify-based file watching for live reload
//
// # Basic Usage
//
//	cfg, err := config.Load("pagestorm.toml")
//	if err != nil {
//	    return err
//	}
//	measurer := layout.NewMeasurer(cfg.Page.Layout())
//
// # Live Reload
//
//	m, err := config.NewManager("pagestorm.toml", logger)
//	m.OnChange(func(old, new *config.Config, changed []string) { ... })
//	m.Start()
//	defer m.Stop()
package config
