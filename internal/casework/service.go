package casework

import (
	"context"
	"errors"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultAssignTimeout = 5 * time.Second

// uuid.Parse also accepts braces, urn: prefixes and the 32-digit form; the
// API only takes the canonical 8-4-4-4-12 text.
var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func logf(format string, args ...interface{}) {
	log.Printf("[casework] "+format, args...)
}

// ParseID validates the canonical textual form of a report or officer id.
func ParseID(s string) (uuid.UUID, bool) {
	if !uuidRe.MatchString(s) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Service runs case assignment against an injected store.
type Service struct {
	store   Assigner
	locker  Locker
	timeout time.Duration
}

type Option func(*Service)

// WithLocker takes an external per-officer lock around each assignment.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithTimeout bounds each assignment. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewService(store Assigner, opts ...Option) *Service {
	s := &Service{store: store, timeout: DefaultAssignTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssignCase hands reportID to officerID if the officer has spare capacity.
// Failures are *Error values; nothing is retried here.
func (s *Service) AssignCase(ctx context.Context, reportID, officerID string) (Assignment, error) {
	rid, ok := ParseID(reportID)
	if !ok {
		return Assignment{}, newError(KindInvalidInput, "Invalid or missing report ID", nil)
	}
	oid, ok := ParseID(officerID)
	if !ok {
		return Assignment{}, newError(KindInvalidInput, "Invalid or missing officer ID", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, oid)
		if err != nil {
			return Assignment{}, newError(KindUpstream, "Failed to lock officer", err)
		}
		defer unlock()
	}

	officer, err := s.store.GetOfficer(ctx, oid)
	if err != nil {
		return Assignment{}, translate(err)
	}
	if !officer.HasCapacity() {
		return Assignment{}, newError(KindCapacityExceeded, "Officer at maximum case capacity", nil)
	}

	// Capacity is checked again inside the store's unit of work; the read
	// above only saves a transaction for the common full-officer case.
	updated, err := s.store.Assign(ctx, rid, oid)
	if err != nil {
		e := translate(err)
		if e.Kind == KindUpstream {
			logf("assign report %s to officer %s failed: %v", rid, oid, err)
		}
		return Assignment{}, e
	}

	logf("assigned report %s to officer %s (%d/%d)", rid, oid, updated.ActiveCases, updated.MaxCases)
	return Assignment{
		ReportID:    rid,
		OfficerID:   oid,
		ActiveCases: updated.ActiveCases,
		MaxCases:    updated.MaxCases,
	}, nil
}

func translate(err error) *Error {
	switch {
	case errors.Is(err, ErrOfficerNotFound):
		return newError(KindNotFound, "Officer not found", err)
	case errors.Is(err, ErrReportNotFound):
		return newError(KindNotFound, "Report not found", err)
	case errors.Is(err, ErrAtCapacity):
		return newError(KindCapacityExceeded, "Officer at maximum case capacity", err)
	case errors.Is(err, ErrAlreadyAssigned):
		return newError(KindConflict, "Report already assigned", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindUpstream, "Case assignment timed out", err)
	}
	return newError(KindUpstream, "Failed to assign case", err)
}

// NearbyReport is a report positioned relative to a query point.
type NearbyReport struct {
	CrimeReport
	Point       Point   `json:"point"`
	DistanceM   float64 `json:"distance_m"`
	MarkerColor string  `json:"marker_color"`
}

// Nearby keeps the reports within radius meters of center, closest first.
func Nearby(reports []CrimeReport, center Point, radius float64) []NearbyReport {
	if radius <= 0 {
		radius = DefaultNearbyRadius
	}

	out := make([]NearbyReport, 0, len(reports))
	for _, r := range reports {
		p, ok := r.Coordinates()
		if !ok {
			continue
		}
		d := DistanceMeters(center, p)
		if d > radius {
			continue
		}
		out = append(out, NearbyReport{
			CrimeReport: r,
			Point:       p,
			DistanceM:   d,
			MarkerColor: MarkerColor(r.CrimeType),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out
}

// HeatPoint is one row of the heatmap feed.
type HeatPoint struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Type string  `json:"type"`
}

// HeatPoints drops reports without a position or a crime type.
func HeatPoints(reports []CrimeReport) []HeatPoint {
	out := make([]HeatPoint, 0, len(reports))
	for _, r := range reports {
		if strings.TrimSpace(r.CrimeType) == "" {
			continue
		}
		p, ok := r.Coordinates()
		if !ok {
			continue
		}
		out = append(out, HeatPoint{Lat: p.Lat, Lng: p.Lng, Type: r.CrimeType})
	}
	return out
}

// EvidenceKindFor maps an upload content type onto a gallery kind.
func EvidenceKindFor(contentType string) EvidenceKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return EvidenceImage
	case strings.HasPrefix(ct, "video/"):
		return EvidenceVideo
	}
	return EvidenceDocument
}
