// connection.go
//
// A scalable, high performance Go data service for the jam-build miniatures library
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-minisdb.
// jam-build-minisdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-minisdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-minisdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package database

import (
	"fmt"
	"log"

	"github.com/localnerve/jam-build-minisdb/internal/config"
	"github.com/localnerve/jam-build-minisdb/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dialector builds a gorm dialector for the configured DB_TYPE with the
// given credentials.
func dialector(cfg *config.Config, user, password string) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "mysql", "mariadb":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			user, password, cfg.DBHost, cfg.DBPort, cfg.DBAppDatabase)
		return mysql.Open(dsn), nil

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, user, password, cfg.DBAppDatabase, cfg.DBPort)
		return postgres.Open(dsn), nil

	case "sqlite":
		// For SQLite, DBAppDatabase is the file path and credentials are moot
		return sqlite.Open(cfg.DBAppDatabase), nil

	case "sqlserver", "mssql":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			user, password, cfg.DBHost, cfg.DBPort, cfg.DBAppDatabase)
		return sqlserver.Open(dsn), nil
	}

	return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
}

// open connects a pool with the given dialector and connection limit.
func open(cfg *config.Config, d gorm.Dialector, connectionLimit int, pool string) (*gorm.DB, error) {
	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", pool, err)
	}

	// Get underlying SQL DB for connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(connectionLimit)
	sqlDB.SetMaxIdleConns(connectionLimit / 2)

	log.Printf("Connected to %s %s database: %s", cfg.DBType, pool, cfg.DBAppDatabase)

	return db, nil
}

// Connect establishes the app pool (app credentials, used by the public
// pose lookup and health checks).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	d, err := dialector(cfg, cfg.DBAppUser, cfg.DBAppPassword)
	if err != nil {
		return nil, err
	}
	return open(cfg, d, cfg.DBAppConnectionLimit, "app")
}

// ConnectUser establishes the user pool (user credentials, used by all
// authenticated operations).
func ConnectUser(cfg *config.Config) (*gorm.DB, error) {
	d, err := dialector(cfg, cfg.DBUser, cfg.DBPassword)
	if err != nil {
		return nil, err
	}
	return open(cfg, d, cfg.DBConnectionLimit, "user")
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Miniature{},
		&models.UserMiniature{},
		&models.UserProfile{},
	)
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
