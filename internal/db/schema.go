package db

import "gorm.io/gorm"

func EnsureExtension(d *gorm.DB, name string) error {
	if d.Dialector.Name() != "postgres" {
		return nil
	}
	return d.Exec(`CREATE EXTENSION IF NOT EXISTS "` + name + `"`).Error
}
