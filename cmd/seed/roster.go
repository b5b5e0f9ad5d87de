package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/stationdesk/casedesk-backend/internal/auth"
	"github.com/stationdesk/casedesk-backend/internal/casework"
)

// Roster is the YAML file a station admin maintains for bootstrapping.
//
//	officers:
//	  - id: 5b0e...
//	    name: Priya Nair
//	    badge_number: SRT-0142
//	    max_cases: 5
//	reports:
//	  - crime_type: theft
//	    location: SRID=4326;POINT(72.8311 21.1702)
//	accounts:
//	  - username: desk1
//	    password: change-me
//	    role: dispatcher
type Roster struct {
	Officers []RosterOfficer `yaml:"officers"`
	Reports  []RosterReport  `yaml:"reports"`
	Accounts []RosterAccount `yaml:"accounts"`
}

type RosterOfficer struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	BadgeNumber string `yaml:"badge_number"`
	Rank        string `yaml:"rank"`
	ActiveCases int    `yaml:"active_cases"`
	MaxCases    int    `yaml:"max_cases"`
}

type RosterReport struct {
	ID              string `yaml:"id"`
	CrimeType       string `yaml:"crime_type"`
	Description     string `yaml:"description"`
	Location        string `yaml:"location"`
	Status          string `yaml:"status"`
	AssignedOfficer string `yaml:"assigned_officer"`

	point    casework.Point
	hasPoint bool
}

type RosterAccount struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	OfficerID string `yaml:"officer_id"`
}

func loadRoster(path string) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRoster(raw)
}

func parseRoster(raw []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return &r, nil
}

// normalize fills generated ids and defaults in place, then validates.
func (r *Roster) normalize() error {
	if len(r.Officers) == 0 && len(r.Reports) == 0 && len(r.Accounts) == 0 {
		return fmt.Errorf("roster is empty")
	}

	officers := make(map[string]*RosterOfficer, len(r.Officers))
	badges := make(map[string]struct{}, len(r.Officers))
	for i := range r.Officers {
		o := &r.Officers[i]
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if _, ok := casework.ParseID(o.ID); !ok {
			return fmt.Errorf("officer %d: id %q is not a UUID", i+1, o.ID)
		}
		o.ID = strings.ToLower(o.ID)
		if strings.TrimSpace(o.Name) == "" {
			return fmt.Errorf("officer %d: name is empty", i+1)
		}
		if o.BadgeNumber == "" {
			return fmt.Errorf("officer %d: badge_number is empty", i+1)
		}
		if o.MaxCases == 0 {
			o.MaxCases = 5
		}
		if o.MaxCases < 0 || o.ActiveCases < 0 || o.ActiveCases > o.MaxCases {
			return fmt.Errorf("officer %s: active_cases=%d max_cases=%d out of range", o.BadgeNumber, o.ActiveCases, o.MaxCases)
		}
		if _, dup := officers[o.ID]; dup {
			return fmt.Errorf("officer %d: duplicate id %s", i+1, o.ID)
		}
		if _, dup := badges[o.BadgeNumber]; dup {
			return fmt.Errorf("officer %d: duplicate badge_number %s", i+1, o.BadgeNumber)
		}
		officers[o.ID] = o
		badges[o.BadgeNumber] = struct{}{}
	}

	assigned := map[string]int{}
	for i := range r.Reports {
		rep := &r.Reports[i]
		if rep.ID == "" {
			rep.ID = uuid.NewString()
		}
		if _, ok := casework.ParseID(rep.ID); !ok {
			return fmt.Errorf("report %d: id %q is not a UUID", i+1, rep.ID)
		}
		if rep.CrimeType == "" {
			return fmt.Errorf("report %d: crime_type is empty", i+1)
		}
		if rep.Location != "" {
			p, ok := casework.ParseLocation(rep.Location)
			if !ok || !casework.ValidPoint(p) {
				return fmt.Errorf("report %d: location %q is not a WKT point", i+1, rep.Location)
			}
			rep.point, rep.hasPoint = p, true
		}

		if rep.Status == "" {
			rep.Status = string(casework.StatusUnassigned)
			if rep.AssignedOfficer != "" {
				rep.Status = string(casework.StatusInProgress)
			}
		}
		if !casework.ReportStatus(rep.Status).Valid() {
			return fmt.Errorf("report %d: unknown status %q", i+1, rep.Status)
		}

		switch {
		case rep.AssignedOfficer == "" && rep.Status == string(casework.StatusInProgress):
			return fmt.Errorf("report %d: in_progress without assigned_officer", i+1)
		case rep.AssignedOfficer != "" && rep.Status == string(casework.StatusUnassigned):
			return fmt.Errorf("report %d: unassigned report names an officer", i+1)
		case rep.AssignedOfficer != "":
			id := strings.ToLower(rep.AssignedOfficer)
			if _, ok := officers[id]; !ok {
				return fmt.Errorf("report %d: assigned_officer %s is not on the roster", i+1, rep.AssignedOfficer)
			}
			rep.AssignedOfficer = id
			if rep.Status == string(casework.StatusInProgress) {
				assigned[id]++
			}
		}
	}

	// active_cases counts cases held outside the roster; the roster's own open
	// reports are added when they are inserted.
	for id, n := range assigned {
		o := officers[id]
		if o.ActiveCases+n > o.MaxCases {
			return fmt.Errorf("officer %s: %d open cases exceed max_cases=%d", o.BadgeNumber, o.ActiveCases+n, o.MaxCases)
		}
	}

	users := map[string]struct{}{}
	for i := range r.Accounts {
		a := &r.Accounts[i]
		if a.Username == "" || a.Password == "" {
			return fmt.Errorf("account %d: username and password are required", i+1)
		}
		if a.Role == "" {
			a.Role = auth.RoleDispatcher
		}
		if a.Role != auth.RoleDispatcher && a.Role != auth.RoleAdmin {
			return fmt.Errorf("account %s: unknown role %q", a.Username, a.Role)
		}
		if a.OfficerID != "" {
			if _, ok := officers[strings.ToLower(a.OfficerID)]; !ok {
				return fmt.Errorf("account %s: officer_id %s is not on the roster", a.Username, a.OfficerID)
			}
			a.OfficerID = strings.ToLower(a.OfficerID)
		}
		if _, dup := users[a.Username]; dup {
			return fmt.Errorf("account %d: duplicate username %s", i+1, a.Username)
		}
		users[a.Username] = struct{}{}
	}
	return nil
}

func (r *Roster) printPlan() {
	fmt.Println("Plan preview:")
	fmt.Printf("  Officers to upsert: %d\n", len(r.Officers))
	for _, o := range r.Officers {
		fmt.Printf("    %-10s %-24s %d/%d\n", o.BadgeNumber, o.Name, o.ActiveCases, o.MaxCases)
	}
	fmt.Printf("  Reports to insert (existing ids skipped): %d\n", len(r.Reports))
	fmt.Printf("  Accounts to upsert: %d\n", len(r.Accounts))
	fmt.Println("  Tables affected: police_officers, crime_reports, desk_accounts")
}
