package config

import "time"

// Query timeouts
const (
	DefaultQueryTimeout = 30 * time.Second
)

// Cache settings
const (
	TaskCacheSize   = 256
	CacheExpiration = 5 * time.Minute
)
