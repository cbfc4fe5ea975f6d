package app

import (
	"strings"

	"github.com/steelforge/erpauth/internal/database"
)

// ConnectionConfig converts the application database configuration into the
// database package representation, preferring whichever host based backend is
// enabled.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver: strings.TrimSpace(c.Driver),
		Path:   c.Path,
		DSN:    c.DSN,
	}

	var auth DBAuthConfig
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		auth = c.Postgres
	case "mysql":
		auth = c.MySQL
	}
	if auth.Enabled {
		cfg.Host = auth.Host
		cfg.Port = auth.Port
		cfg.Name = auth.Database
		cfg.User = auth.Username
		cfg.Password = auth.Password
	}

	return cfg
}
