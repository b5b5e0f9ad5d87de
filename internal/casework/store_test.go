package casework

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestGormStore_AssignSuccess(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)
	officer := seedOfficer(t, d, 4, 5)
	report := seedReport(t, d)

	got, err := store.Assign(context.Background(), report.ID, officer.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got.ActiveCases != 5 {
		t.Errorf("returned officer active_cases = %d, want 5", got.ActiveCases)
	}

	var r CrimeReport
	reload(t, d, &r, report.ID)
	if r.CurrentStatus != StatusInProgress {
		t.Errorf("status = %q, want in_progress", r.CurrentStatus)
	}
	if r.AssignedOfficer == nil || *r.AssignedOfficer != officer.ID {
		t.Errorf("assigned_officer = %v, want %s", r.AssignedOfficer, officer.ID)
	}

	var o Officer
	reload(t, d, &o, officer.ID)
	if o.ActiveCases != 5 {
		t.Errorf("persisted active_cases = %d, want 5", o.ActiveCases)
	}
}

// TestGormStore_AssignAtCapacityRollsBack checks the report update is undone
// when the counter increment is refused.
func TestGormStore_AssignAtCapacityRollsBack(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)
	officer := seedOfficer(t, d, 5, 5)
	report := seedReport(t, d)

	_, err := store.Assign(context.Background(), report.ID, officer.ID)
	if !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("expected ErrAtCapacity, got %v", err)
	}

	var r CrimeReport
	reload(t, d, &r, report.ID)
	if r.CurrentStatus != StatusUnassigned || r.AssignedOfficer != nil {
		t.Errorf("report mutated despite rollback: status=%q officer=%v", r.CurrentStatus, r.AssignedOfficer)
	}

	var o Officer
	reload(t, d, &o, officer.ID)
	if o.ActiveCases != 5 {
		t.Errorf("active_cases = %d, want 5", o.ActiveCases)
	}
}

func TestGormStore_AssignTwiceConflicts(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)
	officer := seedOfficer(t, d, 0, 5)
	report := seedReport(t, d)

	if _, err := store.Assign(context.Background(), report.ID, officer.ID); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	_, err := store.Assign(context.Background(), report.ID, officer.ID)
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}

	var o Officer
	reload(t, d, &o, officer.ID)
	if o.ActiveCases != 1 {
		t.Errorf("active_cases = %d after conflict, want 1", o.ActiveCases)
	}
}

func TestGormStore_AssignClosedReportConflicts(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)
	officer := seedOfficer(t, d, 0, 5)
	report := seedReport(t, d, func(r *CrimeReport) { r.CurrentStatus = StatusClosed })

	if _, err := store.Assign(context.Background(), report.ID, officer.ID); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned for closed report, got %v", err)
	}
}

func TestGormStore_AssignMissingRows(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)
	officer := seedOfficer(t, d, 0, 5)
	report := seedReport(t, d)

	if _, err := store.Assign(context.Background(), uuid.New(), officer.ID); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}

	if _, err := store.Assign(context.Background(), report.ID, uuid.New()); !errors.Is(err, ErrOfficerNotFound) {
		t.Errorf("expected ErrOfficerNotFound, got %v", err)
	}

	var r CrimeReport
	reload(t, d, &r, report.ID)
	if r.CurrentStatus != StatusUnassigned {
		t.Errorf("report assigned to a missing officer: %q", r.CurrentStatus)
	}
}

// TestGormStore_ConcurrentAssignRespectsCapacity runs N+1 assignments against
// an officer with N free slots: exactly N succeed.
func TestGormStore_ConcurrentAssignRespectsCapacity(t *testing.T) {
	const spare = 5

	d := newTestDB(t)
	store := NewGormStore(d)
	officer := seedOfficer(t, d, 2, 2+spare)

	reports := make([]CrimeReport, spare+1)
	for i := range reports {
		reports[i] = seedReport(t, d)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		full      int
		other     []error
	)
	start := make(chan struct{})
	for _, r := range reports {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := store.Assign(context.Background(), id, officer.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAtCapacity):
				full++
			default:
				other = append(other, err)
			}
		}(r.ID)
	}
	close(start)
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if succeeded != spare || full != 1 {
		t.Fatalf("succeeded=%d full=%d, want %d and 1", succeeded, full, spare)
	}

	var o Officer
	reload(t, d, &o, officer.ID)
	if o.ActiveCases != o.MaxCases {
		t.Errorf("active_cases = %d, want max_cases %d", o.ActiveCases, o.MaxCases)
	}

	var assigned int64
	d.Model(&CrimeReport{}).Where("assigned_officer = ?", officer.ID).Count(&assigned)
	if assigned != spare {
		t.Errorf("%d reports assigned, want %d", assigned, spare)
	}
}

func TestGormStore_ListReportsFilters(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)
	officer := seedOfficer(t, d, 0, 5)

	assigned := seedReport(t, d, func(r *CrimeReport) { r.CrimeType = "Assault" })
	seedReport(t, d)
	seedReport(t, d, func(r *CrimeReport) { r.CrimeType = "vandalism" })
	if _, err := store.Assign(context.Background(), assigned.ID, officer.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	ctx := context.Background()

	all, err := store.ListReports(ctx, ReportFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("ListReports(all) = %d, %v", len(all), err)
	}

	open, _ := store.ListReports(ctx, ReportFilter{Status: StatusUnassigned})
	if len(open) != 2 {
		t.Errorf("unassigned = %d, want 2", len(open))
	}

	mine, _ := store.ListReports(ctx, ReportFilter{OfficerID: &officer.ID})
	if len(mine) != 1 || mine[0].ID != assigned.ID {
		t.Errorf("officer filter returned %v", mine)
	}

	assaults, _ := store.ListReports(ctx, ReportFilter{CrimeType: "assault"})
	if len(assaults) != 1 {
		t.Errorf("crime type filter should be case-insensitive, got %d", len(assaults))
	}

	limited, _ := store.ListReports(ctx, ReportFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit ignored, got %d", len(limited))
	}
}

func TestGormStore_MappedReports(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)

	seedReport(t, d, func(r *CrimeReport) { r.Latitude, r.Longitude = ptr(21.17), ptr(72.83) })
	seedReport(t, d, func(r *CrimeReport) { r.Location = "SRID=4326;POINT(72.84 21.18)" })
	seedReport(t, d)

	got, err := store.MappedReports(context.Background())
	if err != nil {
		t.Fatalf("MappedReports: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 mapped reports, got %d", len(got))
	}
}

func TestGormStore_Evidence(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)
	report := seedReport(t, d)

	ev := Evidence{
		ReportID: report.ID,
		Kind:     EvidenceImage,
		Title:    "Broken headlight",
		URL:      "https://files.example.org/headlight.jpg",
		Tags:     []string{"scene", "vehicle"},
	}
	if err := store.AddEvidence(context.Background(), &ev); err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if ev.ID == uuid.Nil {
		t.Fatal("evidence id not generated")
	}

	items, err := store.ListEvidence(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("ListEvidence: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 evidence item, got %d", len(items))
	}
	if len(items[0].Tags) != 2 || items[0].Tags[1] != "vehicle" {
		t.Errorf("tags did not round-trip: %v", items[0].Tags)
	}
}

// stealLastSlot registers an update hook that, just before the officer
// counter is written, fills the officer's remaining capacity from the same
// connection. It stands in for a concurrent assignment that committed between
// Assign's reads and its increment. The returned func reports the SQL the
// increment ran with.
func stealLastSlot(t *testing.T, d *gorm.DB, officerID uuid.UUID) func() string {
	t.Helper()
	var (
		mu    sync.Mutex
		fired bool
		sql   string
	)
	err := d.Callback().Update().Before("gorm:update").Register("test:steal_slot", func(db *gorm.DB) {
		if db.Statement.Table != "police_officers" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if fired {
			return
		}
		fired = true
		if _, err := db.Statement.ConnPool.ExecContext(db.Statement.Context,
			"UPDATE police_officers SET active_cases = max_cases WHERE id = ?", officerID); err != nil {
			db.AddError(err)
		}
	})
	if err != nil {
		t.Fatalf("register before hook: %v", err)
	}
	err = d.Callback().Update().After("gorm:update").Register("test:capture_sql", func(db *gorm.DB) {
		if db.Statement.Table != "police_officers" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		sql = db.Statement.SQL.String()
	})
	if err != nil {
		t.Fatalf("register after hook: %v", err)
	}
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return sql
	}
}

// TestGormStore_AssignRechecksCapacityAtWrite fills the officer's last slot
// after Assign has read the officer at 4/5 but before it increments. A
// read-check-write increment would overwrite the other assignment's count.
func TestGormStore_AssignRechecksCapacityAtWrite(t *testing.T) {
	d := newTestDB(t)
	store := NewGormStore(d)
	officer := seedOfficer(t, d, 4, 5)
	report := seedReport(t, d)

	before, err := store.GetOfficer(context.Background(), officer.ID)
	if err != nil || !before.HasCapacity() {
		t.Fatalf("officer should start with a free slot: %+v, %v", before, err)
	}

	incrementSQL := stealLastSlot(t, d, officer.ID)

	_, err = store.Assign(context.Background(), report.ID, officer.ID)
	if !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("expected ErrAtCapacity once the slot is taken, got %v", err)
	}

	var o Officer
	reload(t, d, &o, officer.ID)
	if o.ActiveCases != 5 {
		t.Errorf("active_cases = %d, want 5 (no lost or extra increment)", o.ActiveCases)
	}
	var r CrimeReport
	reload(t, d, &r, report.ID)
	if r.CurrentStatus != StatusUnassigned || r.AssignedOfficer != nil {
		t.Errorf("report update not rolled back: status=%q officer=%v", r.CurrentStatus, r.AssignedOfficer)
	}

	got := incrementSQL()
	if !strings.Contains(got, "active_cases < max_cases") {
		t.Errorf("increment is not guarded by the capacity predicate: %s", got)
	}
	if !strings.Contains(got, "active_cases + 1") {
		t.Errorf("increment is not relative to the stored value: %s", got)
	}
}
