package mysql

import (
	"gorm.io/gorm"

	"statsingest/internal/model"
)

// RunMigrations auto-migrates the relational schema owned by this store:
// the users table with its embedded Statistics columns.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{})
}
