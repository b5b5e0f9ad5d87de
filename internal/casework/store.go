package casework

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assigner is the slice of the store the assignment service needs.
type Assigner interface {
	GetOfficer(ctx context.Context, id uuid.UUID) (Officer, error)

	// Assign atomically moves an unassigned report to in_progress under
	// officerID and increments the officer's active_cases, only while
	// active_cases < max_cases. Either both rows change or neither does.
	Assign(ctx context.Context, reportID, officerID uuid.UUID) (Officer, error)
}

// Store is everything the casework handlers read and write.
type Store interface {
	Assigner

	GetReport(ctx context.Context, id uuid.UUID) (CrimeReport, error)
	ListReports(ctx context.Context, f ReportFilter) ([]CrimeReport, error)
	ListOfficers(ctx context.Context) ([]Officer, error)

	// MappedReports returns reports carrying a position, for the map feeds.
	MappedReports(ctx context.Context) ([]CrimeReport, error)

	ListEvidence(ctx context.Context, reportID uuid.UUID) ([]Evidence, error)
	AddEvidence(ctx context.Context, ev *Evidence) error
}

// ReportFilter narrows ListReports. Zero values mean "any".
type ReportFilter struct {
	Status    ReportStatus
	OfficerID *uuid.UUID
	CrimeType string
	Limit     int
}

const (
	defaultReportLimit = 100
	maxReportLimit     = 500
)

// GormStore keeps casework rows in the station database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetOfficer(ctx context.Context, id uuid.UUID) (Officer, error) {
	var officer Officer
	if err := s.db.WithContext(ctx).First(&officer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Officer{}, ErrOfficerNotFound
		}
		return Officer{}, fmt.Errorf("get officer: %w", err)
	}
	return officer, nil
}

func (s *GormStore) Assign(ctx context.Context, reportID, officerID uuid.UUID) (Officer, error) {
	var officer Officer

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report CrimeReport
		if err := tx.Select("id", "current_status").First(&report, "id = ?", reportID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReportNotFound
			}
			return fmt.Errorf("load report: %w", err)
		}
		if report.CurrentStatus != StatusUnassigned {
			return ErrAlreadyAssigned
		}

		// Conditional on status so a concurrent assigner of the same report
		// matches zero rows instead of overwriting.
		res := tx.Model(&CrimeReport{}).
			Where("id = ? AND current_status = ?", reportID, StatusUnassigned).
			Updates(map[string]interface{}{
				"assigned_officer": officerID,
				"current_status":   StatusInProgress,
			})
		if res.Error != nil {
			return fmt.Errorf("assign report: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyAssigned
		}

		// The capacity re-check and the increment are a single statement;
		// Postgres re-evaluates the predicate after taking the row lock.
		res = tx.Model(&Officer{}).
			Where("id = ? AND active_cases < max_cases", officerID).
			Update("active_cases", gorm.Expr("active_cases + 1"))
		if res.Error != nil {
			return fmt.Errorf("increment active cases: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&Officer{}).Where("id = ?", officerID).Count(&n).Error; err != nil {
				return fmt.Errorf("recheck officer: %w", err)
			}
			if n == 0 {
				return ErrOfficerNotFound
			}
			return ErrAtCapacity
		}

		if err := tx.First(&officer, "id = ?", officerID).Error; err != nil {
			return fmt.Errorf("reload officer: %w", err)
		}
		return nil
	})
	if err != nil {
		return Officer{}, err
	}
	return officer, nil
}

func (s *GormStore) GetReport(ctx context.Context, id uuid.UUID) (CrimeReport, error) {
	var report CrimeReport
	if err := s.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CrimeReport{}, ErrReportNotFound
		}
		return CrimeReport{}, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

func (s *GormStore) ListReports(ctx context.Context, f ReportFilter) ([]CrimeReport, error) {
	query := s.db.WithContext(ctx).Model(&CrimeReport{})

	if f.Status != "" {
		query = query.Where("current_status = ?", f.Status)
	}
	if f.OfficerID != nil {
		query = query.Where("assigned_officer = ?", *f.OfficerID)
	}
	if f.CrimeType != "" {
		query = query.Where("LOWER(crime_type) = LOWER(?)", f.CrimeType)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultReportLimit
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}

	var reports []CrimeReport
	if err := query.Order("created_at DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *GormStore) ListOfficers(ctx context.Context) ([]Officer, error) {
	var officers []Officer
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&officers).Error; err != nil {
		return nil, fmt.Errorf("list officers: %w", err)
	}
	return officers, nil
}

func (s *GormStore) MappedReports(ctx context.Context) ([]CrimeReport, error) {
	var reports []CrimeReport
	err := s.db.WithContext(ctx).
		Where("(latitude IS NOT NULL AND longitude IS NOT NULL) OR (location IS NOT NULL AND location <> '')").
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("mapped reports: %w", err)
	}
	return reports, nil
}

func (s *GormStore) ListEvidence(ctx context.Context, reportID uuid.UUID) ([]Evidence, error) {
	var items []Evidence
	err := s.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return items, nil
}

func (s *GormStore) AddEvidence(ctx context.Context, ev *Evidence) error {
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("add evidence: %w", err)
	}
	return nil
}
