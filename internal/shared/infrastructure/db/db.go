// Package db 负责打开 MySQL（GORM）连接。
package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"SaveKeeper/internal/shared/config"
	"SaveKeeper/internal/shared/logs"
	"SaveKeeper/modules/kit/logx"
)

const slowSQLThreshold = 200 * time.Millisecond

// DSN 拼出 go-sql-driver 格式的连接串。
func DSN(cfg config.MySQLConfig) string {
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	// username:password@protocol(address)/dbname?charset=utf8mb4&parseTime=True&loc=Local
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		charset,
	)
}

func Open(cfg config.MySQLConfig, l logx.Logger) (*gorm.DB, error) {
	if l == nil {
		l = logx.Nop()
	}
	level := logger.Warn
	if cfg.ShowSQL {
		level = logger.Info
	}
	gcfg := &gorm.Config{
		Logger: logs.NewGormLogger(l, level, slowSQLThreshold),
	}

	db, err := gorm.Open(mysql.Open(DSN(cfg)), gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}

	l.Info("open db success",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("db", cfg.DBName),
		zap.String("user", cfg.User),
	)
	return db, nil
}
