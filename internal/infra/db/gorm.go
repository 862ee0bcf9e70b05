package db

import (
	"fmt"

	"foodrescue/internal/config"
	"foodrescue/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		//ユニーク制約違反を gorm.ErrDuplicatedKey にそろえる
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	switch cfg.DBDriver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
		if err != nil {
			return nil, err
		}
		//sqliteは書き込みが1本なので接続も1本にする
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "postgres", "":
		return gorm.Open(postgres.Open(postgresDSN(cfg)), gcfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// DATABASE_URL があれば最優先で使う
func postgresDSN(cfg config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode,
	)
}

// Migrate は注文まわりのテーブルを作る。foods はカタログ側の持ち物だが開発用に作っておく
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Food{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentRecord{},
		&model.AuditLog{},
	)
}
