package db

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rezars19/rz-automedata/internal/models"
	cfgpkg "github.com/rezars19/rz-automedata/pkg/config"
	gormzap "github.com/rezars19/rz-automedata/pkg/gormlog"
	"github.com/rezars19/rz-automedata/pkg/tool"
)

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{Logger: gormzap.New(l)})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to postgres via DSN")
	return db, nil
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// AutoMigrate runs GORM migrations on startup and seeds default settings.
func AutoMigrate(l *zap.SugaredLogger, cfg *cfgpkg.Config, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.License{},
		&models.ActivityLog{},
		&models.AppVersion{},
		&models.AdminSetting{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	if err := seedSettings(cfg, db); err != nil {
		l.Errorf("settings seed failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// seedSettings inserts the default admin settings once; existing values are
// never overwritten.
func seedSettings(cfg *cfgpkg.Config, db *gorm.DB) error {
	defaults := map[string]string{
		models.SettingTrialDays:     intToString(cfg.License.TrialDays),
		models.SettingPriceMonthly:  "0",
		models.SettingPriceYearly:   "0",
		models.SettingPriceLifetime: "0",
	}
	for key, value := range defaults {
		var existing models.AdminSetting
		err := db.Where("key = ?", key).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		row := &models.AdminSetting{ID: tool.GenerateUUIDV7(), Key: key, Value: value}
		if err := db.Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func intToString(n int) string {
	if n <= 0 {
		n = 2
	}
	return strconv.Itoa(n)
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing postgres connection pool")
			return sqlDB.Close()
		},
	})
}
