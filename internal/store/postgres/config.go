package postgres

// SessionStoreConfig holds session-specific configuration for the PostgreSQL session store.
// Pool configuration is handled separately via PoolConfig.
type SessionStoreConfig struct {
	// QueryTimeoutSeconds is the maximum time a query can run before timing out.
	// Default: 5 seconds
	QueryTimeoutSeconds int32

	// AutoMigrate runs the embedded migrations when the store is created.
	AutoMigrate bool
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *SessionStoreConfig) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 5
	}
}
