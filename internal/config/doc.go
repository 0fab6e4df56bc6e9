// Package config loads the appcache settings.
//
// Values start from Default, are overridden by an optional TOML file and finally by
// environment variables:
//
//   - APPCACHE_DIR, APPCACHE_NAMESPACE
//   - APPCACHE_ICON_SIZE, APPCACHE_ICON_THEME, APPCACHE_ICON_WORKERS
//   - APPCACHE_APP_DIRS (colon separated)
//   - APPCACHE_LOG_LEVEL, APPCACHE_LOG_DEV
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//		cfg = config.Default()
//	}
//	dir, _ := cfg.CacheDir()
package config
