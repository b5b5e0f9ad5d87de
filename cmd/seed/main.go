// Command seed loads a station roster (officers, open reports and desk
// accounts) into Postgres. Run the server once first so the tables exist.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/stationdesk/casedesk-backend/internal/auth"
	"github.com/stationdesk/casedesk-backend/internal/casework"
)

var (
	rosterPath  = flag.String("roster", "", "Path to the roster YAML (required)")
	dsn         = flag.String("dsn", "", "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	confirm     = flag.Bool("confirm", false, "Required to write to the database")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

type Counts struct {
	Officers int64
	Reports  int64
	Accounts int64
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}
	if *rosterPath == "" {
		fatalf("--roster is required")
	}

	roster, err := loadRoster(*rosterPath)
	if err != nil {
		fatalf("roster error: %v", err)
	}
	if err := roster.normalize(); err != nil {
		fatalf("roster validation failed: %v", err)
	}

	fmt.Printf("Loaded %d officers, %d reports, %d accounts from %s\n",
		len(roster.Officers), len(roster.Reports), len(roster.Accounts), *rosterPath)

	if *dryRun {
		roster.printPlan()
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	if !*confirm {
		fatalf("Refusing to run without --confirm. Add --dry-run to preview.")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	before, err := countAll(ctx, tx)
	if err != nil {
		fatalf("pre-count: %v", err)
	}
	fmt.Printf("Before: officers=%d reports=%d accounts=%d\n", before.Officers, before.Reports, before.Accounts)

	if err := upsertOfficers(ctx, tx, roster.Officers); err != nil {
		fatalf("officers: %v", err)
	}
	opened, err := insertReports(ctx, tx, roster.Reports)
	if err != nil {
		fatalf("reports: %v", err)
	}
	if err := countOpenCases(ctx, tx, opened); err != nil {
		fatalf("officer counters: %v", err)
	}
	if err := upsertAccounts(ctx, tx, roster.Accounts); err != nil {
		fatalf("accounts: %v", err)
	}

	after, err := countAll(ctx, tx)
	if err != nil {
		fatalf("post-count: %v", err)
	}
	fmt.Printf("After:  officers=%d reports=%d accounts=%d\n", after.Officers, after.Reports, after.Accounts)

	var over int64
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM police_officers WHERE active_cases > max_cases`).Scan(&over); err != nil {
		fatalf("sanity check: %v", err)
	}
	if over > 0 {
		fatalf("sanity check failed: %d officers over capacity", over)
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Seed complete")
}

func countAll(ctx context.Context, tx *sql.Tx) (Counts, error) {
	var c Counts
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM police_officers`).Scan(&c.Officers); err != nil {
		return c, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM crime_reports`).Scan(&c.Reports); err != nil {
		return c, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM desk_accounts`).Scan(&c.Accounts); err != nil {
		return c, err
	}
	return c, nil
}

// upsertOfficers keeps the live active_cases counter of existing officers;
// only profile fields and max_cases are refreshed. Open reports in the roster
// are counted separately by countOpenCases.
func upsertOfficers(ctx context.Context, tx *sql.Tx, officers []RosterOfficer) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO police_officers (id, name, badge_number, rank, active_cases, max_cases, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			badge_number = EXCLUDED.badge_number,
			rank = EXCLUDED.rank,
			max_cases = GREATEST(EXCLUDED.max_cases, police_officers.active_cases),
			updated_at = now()`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range officers {
		if _, err := stmt.ExecContext(ctx, o.ID, o.Name, o.BadgeNumber, o.Rank, o.ActiveCases, o.MaxCases); err != nil {
			return fmt.Errorf("upsert officer %s: %w", o.BadgeNumber, err)
		}
	}
	return nil
}

// execer is the slice of *sql.Tx the report writers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertReports skips ids that already exist and returns, per officer, how
// many open reports were actually inserted.
func insertReports(ctx context.Context, tx execer, reports []RosterReport) (map[string]int, error) {
	opened := map[string]int{}
	for _, r := range reports {
		var lat, lng sql.NullFloat64
		if r.hasPoint {
			lat = sql.NullFloat64{Float64: r.point.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: r.point.Lng, Valid: true}
		}
		officer := sql.NullString{String: r.AssignedOfficer, Valid: r.AssignedOfficer != ""}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO crime_reports (id, crime_type, description, latitude, longitude, location,
				assigned_officer, current_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (id) DO NOTHING`,
			r.ID, r.CrimeType, r.Description, lat, lng, r.Location, officer, r.Status)
		if err != nil {
			return nil, fmt.Errorf("insert report %s: %w", r.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert report %s: %w", r.ID, err)
		}
		if n == 1 && r.AssignedOfficer != "" && r.Status == string(casework.StatusInProgress) {
			opened[r.AssignedOfficer]++
		}
	}
	return opened, nil
}

// countOpenCases adds newly inserted open reports to each officer's live
// counter. The update is refused when it would pass max_cases.
func countOpenCases(ctx context.Context, tx execer, opened map[string]int) error {
	ids := make([]string, 0, len(opened))
	for id := range opened {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := opened[id]
		res, err := tx.ExecContext(ctx, `
			UPDATE police_officers
			SET active_cases = active_cases + $2, updated_at = now()
			WHERE id = $1 AND active_cases + $2 <= max_cases`, id, n)
		if err != nil {
			return fmt.Errorf("count open cases for %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("count open cases for %s: %w", id, err)
		}
		if affected == 0 {
			return fmt.Errorf("officer %s: %d new open cases would exceed max_cases", id, n)
		}
	}
	return nil
}

func upsertAccounts(ctx context.Context, tx *sql.Tx, accounts []RosterAccount) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO desk_accounts (user_id, username, hashed_password, role, officer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (username) DO UPDATE SET
			hashed_password = EXCLUDED.hashed_password,
			role = EXCLUDED.role,
			officer_id = EXCLUDED.officer_id`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range accounts {
		hashed, err := auth.HashPassword(a.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", a.Username, err)
		}
		officer := sql.NullString{String: a.OfficerID, Valid: a.OfficerID != ""}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), a.Username, hashed, a.Role, officer); err != nil {
			return fmt.Errorf("upsert account %s: %w", a.Username, err)
		}
	}
	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
