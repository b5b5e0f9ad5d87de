package casework

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stationdesk/casedesk-backend/internal/db/dbtest"
	"gorm.io/gorm"
)

// newTestDB migrates the casework tables into a fresh in-memory database.
// evidence_items is created by hand because SQLite has no text[] type; the
// tags column stores pq's array literal as plain text.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d := dbtest.Open(t, &Officer{}, &CrimeReport{})
	if err := d.Exec(`
		CREATE TABLE evidence_items (
			id TEXT PRIMARY KEY,
			report_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			thumbnail_url TEXT,
			tags TEXT,
			metadata TEXT,
			captured_at DATETIME,
			created_at DATETIME
		)`).Error; err != nil {
		t.Fatalf("create evidence_items: %v", err)
	}
	return d
}

func seedOfficer(t *testing.T, d *gorm.DB, active, max int) Officer {
	t.Helper()
	o := Officer{
		Name:        "Officer " + uuid.NewString()[:6],
		BadgeNumber: "B-" + uuid.NewString()[:8],
		ActiveCases: active,
		MaxCases:    max,
	}
	if err := d.Create(&o).Error; err != nil {
		t.Fatalf("seed officer: %v", err)
	}
	return o
}

func seedReport(t *testing.T, d *gorm.DB, mut ...func(*CrimeReport)) CrimeReport {
	t.Helper()
	r := CrimeReport{CrimeType: "theft", Description: "bicycle stolen near the market"}
	for _, m := range mut {
		m(&r)
	}
	if err := d.Create(&r).Error; err != nil {
		t.Fatalf("seed report: %v", err)
	}
	return r
}

func reload(t *testing.T, d *gorm.DB, dst interface{}, id uuid.UUID) {
	t.Helper()
	if err := d.First(dst, "id = ?", id).Error; err != nil {
		t.Fatalf("reload %T %s: %v", dst, id, err)
	}
}

func ptr(f float64) *float64 { return &f }

// fakeAssigner records calls and returns canned results.
type fakeAssigner struct {
	mu sync.Mutex

	officer    Officer
	getErr     error
	assignErr  error
	assigned   Officer
	block      bool
	getCalls   int
	assignArgs [][2]uuid.UUID
}

func (f *fakeAssigner) GetOfficer(ctx context.Context, id uuid.UUID) (Officer, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	if f.getErr != nil {
		return Officer{}, f.getErr
	}
	return f.officer, nil
}

func (f *fakeAssigner) Assign(ctx context.Context, reportID, officerID uuid.UUID) (Officer, error) {
	f.mu.Lock()
	f.assignArgs = append(f.assignArgs, [2]uuid.UUID{reportID, officerID})
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return Officer{}, ctx.Err()
	}
	if f.assignErr != nil {
		return Officer{}, f.assignErr
	}
	return f.assigned, nil
}

func (f *fakeAssigner) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, len(f.assignArgs)
}

// fakeLocker counts lock/unlock pairs.
type fakeLocker struct {
	mu       sync.Mutex
	locked   []uuid.UUID
	unlocked int
	err      error
}

func (l *fakeLocker) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.locked = append(l.locked, id)
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.unlocked++
		l.mu.Unlock()
	}, nil
}

var testTimeout = 2 * time.Second
