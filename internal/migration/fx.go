package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/config"
	refdomain "github.com/cielolabs/costwatch/internal/reference/domain"
	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
	srcdomain "github.com/cielolabs/costwatch/internal/source/domain"
)

// AutoMigrate creates the schema from the models. It is the sqlite path;
// postgres goes through the versioned SQL migrations.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&srcdomain.Source{},
		&refdomain.Customer{},
		&refdomain.Subscription{},
		&refdomain.Resource{},
		&refdomain.Meter{},
		&snapdomain.Snapshot{},
		&snapdomain.CostLineItem{},
	)
}

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
