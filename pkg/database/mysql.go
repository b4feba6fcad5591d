// Package database initializes the MySQL and Redis connections.
package database

import (
	"fmt"
	"time"

	"biobyia-go/internal/config"
	"biobyia-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitMySQL opens the MySQL connection and tunes the pool.
func InitMySQL(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL database connected successfully")
	return db, nil
}
