package casework

import (
	"fmt"
	"log"

	"github.com/stationdesk/casedesk-backend/internal/db"
	"gorm.io/gorm"
)

// Migrate creates or updates the casework tables.
func Migrate(d *gorm.DB) error {
	if err := db.EnsureExtension(d, "uuid-ossp"); err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}

	if err := d.AutoMigrate(&Officer{}, &CrimeReport{}, &Evidence{}); err != nil {
		return fmt.Errorf("auto-migrate casework tables: %w", err)
	}

	// Capacity is enforced in the assignment statement; the constraint
	// catches writers that bypass it.
	if d.Dialector.Name() == "postgres" {
		if err := d.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint WHERE conname = 'police_officers_capacity_chk'
				) THEN
					ALTER TABLE police_officers
						ADD CONSTRAINT police_officers_capacity_chk
						CHECK (active_cases >= 0 AND max_cases > 0 AND active_cases <= max_cases);
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("add capacity constraint: %w", err)
		}
	}

	log.Println("Casework module initialized")
	return nil
}
