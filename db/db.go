package db

import (
	"faceserver/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var Instance *gorm.DB

func Init() {
	var (
		db  *gorm.DB
		err error
	)
	options := &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}
	if config.MYSQL_DSN != "" {
		db, err = gorm.Open(mysql.Open(config.MYSQL_DSN), options)
	} else {
		db, err = gorm.Open(sqlite.Open(config.SQLITE_FILE), options)
	}
	if err != nil || db == nil {
		panic(err)
	}
	Instance = db
}

// InitWithFile opens a throwaway SQLite database, used by tests.
func InitWithFile(path string) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		panic(err)
	}
	Instance = db
}
