package config

import (
	"github.com/cielolabs/costwatch/pkg/db"
	"go.uber.org/fx"
)

// DBConfig adapts the application config into the database package's config.
func DBConfig(cfg Config) db.Config {
	return db.Config{
		Type:            cfg.DBType,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		Path:            cfg.DBPath,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}
}

// Module loads configuration once and exposes derived configs.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		DBConfig,
	),
)
