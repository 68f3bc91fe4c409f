package models

import (
	"faceserver/db"
)

func Init() {
	db.Instance.AutoMigrate(&Face{})
}
