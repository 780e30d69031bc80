package repository

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"holachat/internal/domain/entity"
)

// OpenSQLite opens the dev backend database and migrates its tables.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&entity.Account{}, &entity.StoredMessage{}); err != nil {
		return nil, err
	}
	return db, nil
}
