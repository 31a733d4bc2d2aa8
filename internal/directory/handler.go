package directory

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// SearchResponse is the body of GET /v1/providers.
type SearchResponse struct {
	Count   int     `json:"count"`
	Results []Match `json:"results"`
}

// Handler serves provider directory searches.
type Handler struct {
	directory *Directory
	logger    *logging.Logger
}

func NewHandler(directory *Directory, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{directory: directory, logger: logger}
}

// Routes mounts the directory endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Search)
	r.Get("/{providerID}", h.Get)
}

// Search handles GET /v1/providers.
//
// Query parameters: insurance, lat, lon, max_distance, telehealth,
// specialty, language, type (the last three repeatable or comma separated)
// and limit.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	matches := h.directory.Search(r.Context(), q)
	writeJSON(w, http.StatusOK, SearchResponse{Count: len(matches), Results: matches})
}

// Get handles GET /v1/providers/{providerID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.directory.Provider(chi.URLParam(r, "providerID"))
	if !ok {
		http.Error(w, "Provider not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseQuery(v url.Values) (Query, error) {
	q := Query{
		Insurance:     strings.TrimSpace(v.Get("insurance")),
		Specialties:   listParam(v, "specialty"),
		Languages:     listParam(v, "language"),
		ProviderTypes: listParam(v, "type"),
	}

	tele, err := ParseTelehealthPreference(v.Get("telehealth"))
	if err != nil {
		return Query{}, queryError("invalid telehealth preference")
	}
	q.Telehealth = tele

	lat, lon := v.Get("lat"), v.Get("lon")
	if (lat == "") != (lon == "") {
		return Query{}, queryError("lat and lon must be provided together")
	}
	if lat != "" {
		var p Point
		if p.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
			return Query{}, queryError("invalid lat")
		}
		if p.Lon, err = strconv.ParseFloat(lon, 64); err != nil {
			return Query{}, queryError("invalid lon")
		}
		if !p.Valid() {
			return Query{}, queryError("coordinates out of range")
		}
		q.Origin = &p
	}

	if raw := v.Get("max_distance"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || d <= 0 {
			return Query{}, queryError("invalid max_distance")
		}
		q.MaxDistanceMiles = d
	}

	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Query{}, queryError("invalid limit")
		}
		q.Limit = n
	}
	return q, nil
}

func listParam(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
