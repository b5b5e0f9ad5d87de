package auth

import (
	"fmt"

	"gorm.io/gorm"
)

func Migrate(d *gorm.DB) error {
	if err := d.AutoMigrate(&Account{}, &Session{}); err != nil {
		return fmt.Errorf("auto-migrate auth tables: %w", err)
	}
	return nil
}
