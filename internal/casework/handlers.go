package casework

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stationdesk/casedesk-backend/internal/utils"
)

// Handler serves the casework API.
type Handler struct {
	Service *Service
	Store   Store
}

func NewHandler(svc *Service, store Store) *Handler {
	return &Handler{Service: svc, Store: store}
}

type assignRequest struct {
	ReportID  string `json:"reportId"`
	OfficerID string `json:"officerId"`
}

// AssignCase handles POST /assign-case.
func (h *Handler) AssignCase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.Service.AssignCase(r.Context(), req.ReportID, req.OfficerID); err != nil {
		writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Case assigned successfully"})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		logf("unclassified error: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to assign case")
		return
	}

	// Driver and network errors stay in the log.
	if e.Kind == KindUpstream {
		logf("upstream failure: %v", e)
	}
	utils.WriteError(w, e.Kind.HTTPStatus(), e.Msg)
}

// ListReports handles GET /reports with optional status, officer, type and limit filters.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f ReportFilter

	if s := q.Get("status"); s != "" {
		status := ReportStatus(s)
		if !status.Valid() {
			utils.WriteError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		f.Status = status
	}
	if s := q.Get("officer"); s != "" {
		id, ok := ParseID(s)
		if !ok {
			utils.WriteError(w, http.StatusBadRequest, "Invalid officer ID")
			return
		}
		f.OfficerID = &id
	}
	f.CrimeType = strings.TrimSpace(q.Get("type"))
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			utils.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = n
	}

	reports, err := h.Store.ListReports(r.Context(), f)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch reports: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, reports)
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(chi.URLParam(r, "id"))
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid report ID")
		return
	}

	report, err := h.Store.GetReport(r.Context(), id)
	if errors.Is(err, ErrReportNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch report: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, report)
}

type officerOut struct {
	Officer
	Available int `json:"available"`
}

func (h *Handler) ListOfficers(w http.ResponseWriter, r *http.Request) {
	officers, err := h.Store.ListOfficers(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch officers: "+err.Error())
		return
	}

	out := make([]officerOut, 0, len(officers))
	for _, o := range officers {
		out = append(out, officerOut{Officer: o, Available: o.Available()})
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOfficer(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(chi.URLParam(r, "id"))
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid officer ID")
		return
	}

	officer, err := h.Store.GetOfficer(r.Context(), id)
	if errors.Is(err, ErrOfficerNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Officer not found")
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch officer: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, officerOut{Officer: officer, Available: officer.Available()})
}

// Locations is the heatmap feed: one {lat, lng, type} per mapped report.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Store.MappedReports(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch locations: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, HeatPoints(reports))
}

// NearbyReports handles GET /reports/nearby?lat=&lng=&radius= (meters).
func (h *Handler) NearbyReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	center := Point{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !ValidPoint(center) {
		utils.WriteError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	radius := DefaultNearbyRadius
	if s := q.Get("radius"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			utils.WriteError(w, http.StatusBadRequest, "Invalid radius")
			return
		}
		radius = v
	}

	reports, err := h.Store.MappedReports(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch reports: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, Nearby(reports, center, radius))
}

func (h *Handler) reportFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := ParseID(chi.URLParam(r, "id"))
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid report ID")
		return uuid.Nil, false
	}

	if _, err := h.Store.GetReport(r.Context(), id); err != nil {
		if errors.Is(err, ErrReportNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Report not found")
		} else {
			utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch report: "+err.Error())
		}
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportFromPath(w, r)
	if !ok {
		return
	}

	items, err := h.Store.ListEvidence(r.Context(), id)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to fetch evidence: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, items)
}

type evidenceRequest struct {
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	ThumbnailURL string     `json:"thumbnail_url"`
	ContentType  string     `json:"content_type"`
	Tags         []string   `json:"tags"`
	Metadata     string     `json:"metadata"`
	CapturedAt   *time.Time `json:"captured_at"`
}

func (h *Handler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportFromPath(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req evidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.URL = strings.TrimSpace(req.URL)
	if req.Title == "" || req.URL == "" {
		utils.WriteError(w, http.StatusBadRequest, "title and url are required")
		return
	}

	thumb := req.ThumbnailURL
	if thumb == "" {
		thumb = req.URL
	}

	ev := Evidence{
		ReportID:     id,
		Kind:         EvidenceKindFor(req.ContentType),
		Title:        req.Title,
		URL:          req.URL,
		ThumbnailURL: thumb,
		Tags:         append(pq.StringArray{}, req.Tags...),
		Metadata:     req.Metadata,
		CapturedAt:   req.CapturedAt,
	}
	if err := h.Store.AddEvidence(r.Context(), &ev); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to save evidence: "+err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusCreated, ev)
}
