package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/vitalstats/lens/pkg/dataset"
	"github.com/vitalstats/lens/pkg/engine"
	"github.com/vitalstats/lens/pkg/theme"
)

const defaultTopN = 10

// apiError is the structured error body for all /api failures. The
// "no_data" code is the explicit empty-selection signal: clients render a
// placeholder for it instead of an empty chart.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}

func writeNoData(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, "no_data", message)
}

// dataset returns the current snapshot, or responds 503 before the first
// successful load.
func (s *Server) dataset(w http.ResponseWriter) (*dataset.Dataset, bool) {
	ds := s.view.Dataset()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "dataset is still loading")
		return nil, false
	}
	return ds, true
}

func parseYear(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, fmt.Errorf("year is required")
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	return year, nil
}

// metricParam validates the metric query parameter against the fields the
// aggregator understands, defaulting to crude mortality.
func metricParam(r *http.Request) (string, error) {
	m := r.URL.Query().Get("metric")
	if m == "" {
		return dataset.FieldCrudeMortality, nil
	}
	switch m {
	case dataset.FieldCrudeMortality, dataset.FieldPopulation,
		dataset.FieldMaleFemaleRatio, dataset.FieldIncidence:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric %q", m)
}

func (s *Server) themeParam(r *http.Request) (theme.Theme, error) {
	name := r.URL.Query().Get("theme")
	if name == "" {
		name = s.cfg.DefaultTheme
	}
	t, ok := theme.Lookup(name)
	if !ok {
		return theme.Theme{}, fmt.Errorf("unknown theme %q", name)
	}
	return t, nil
}

func (s *Server) yearsHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"years": ds.Years()})
}

func (s *Server) countriesHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Paginate(ds.Countries(), ParsePagination(r, DefaultLimit)))
}

// SummaryResponse carries the derived indicators for one (year, country)
// selection. Unavailable values serialize as null, never as zero.
type SummaryResponse struct {
	Country             string   `json:"country"`
	Year                int      `json:"year"`
	Region              string   `json:"region,omitempty"`
	CrudeMortality      float64  `json:"crude_mortality"`
	MaleFemaleRatio     *float64 `json:"male_to_female_ratio"`
	IncidencePer100k    *float64 `json:"incidence_per_100k,omitempty"`
	EstimatedTotal      *int64   `json:"estimated_total_suicides"`
	CrudeMortalityDelta *float64 `json:"crude_mortality_delta"`
	RatioDelta          *float64 `json:"ratio_delta"`
	EstimatedTotalDelta *int64   `json:"estimated_total_suicides_delta"`
	HasPreviousYear     bool     `json:"has_previous_year"`
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	country := r.URL.Query().Get("country")
	if country == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "country is required")
		return
	}

	cur := ds.Find(country, year)
	if cur == nil {
		writeNoData(w, fmt.Sprintf("no data for %s in %d", country, year))
		return
	}
	prev := ds.Find(country, year-1)

	writeJSON(w, http.StatusOK, SummaryResponse{
		Country:             cur.Country,
		Year:                cur.Year,
		Region:              cur.Region,
		CrudeMortality:      cur.CrudeMortality,
		MaleFemaleRatio:     cur.MaleFemaleRatio,
		IncidencePer100k:    cur.IncidencePer100k,
		EstimatedTotal:      engine.EstimatedTotal(cur),
		CrudeMortalityDelta: engine.MortalityDelta(cur, prev),
		RatioDelta:          engine.RatioDelta(cur, prev),
		EstimatedTotalDelta: engine.EstimatedTotalDelta(cur, prev),
		HasPreviousYear:     prev != nil,
	})
}

type AgeSeriesResponse struct {
	Country string            `json:"country"`
	Year    int               `json:"year"`
	Cohort  dataset.Cohort    `json:"cohort"`
	Points  []engine.AgePoint `json:"points"`
}

func (s *Server) ageSeriesHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	country := r.URL.Query().Get("country")
	if country == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "country is required")
		return
	}

	cohort := dataset.CohortBothSexes
	switch c := r.URL.Query().Get("cohort"); c {
	case "", string(dataset.CohortBothSexes):
	case string(dataset.CohortMale):
		cohort = dataset.CohortMale
	case string(dataset.CohortFemale):
		cohort = dataset.CohortFemale
	default:
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown cohort %q", c))
		return
	}

	rec := ds.Find(country, year)
	if rec == nil {
		writeNoData(w, fmt.Sprintf("no data for %s in %d", country, year))
		return
	}

	points := engine.AgeSeries(rec, ds.Schema(), cohort)
	if points == nil {
		// Explicit empty series, not null: the selection exists but has
		// no age data.
		points = []engine.AgePoint{}
	}
	writeJSON(w, http.StatusOK, AgeSeriesResponse{
		Country: rec.Country,
		Year:    rec.Year,
		Cohort:  cohort,
		Points:  points,
	})
}

type TrendPoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

type TrendResponse struct {
	Country string       `json:"country"`
	Metric  string       `json:"metric"`
	Points  []TrendPoint `json:"points"`
}

func (s *Server) trendHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	country := r.URL.Query().Get("country")
	if country == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "country is required")
		return
	}
	metric, err := metricParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	var points []TrendPoint
	for _, rec := range ds.CountryHistory(country) {
		if v, ok := rec.Metric(metric); ok {
			points = append(points, TrendPoint{Year: rec.Year, Value: v})
		}
	}
	if len(points) == 0 {
		writeNoData(w, fmt.Sprintf("no %s data for %s", metric, country))
		return
	}
	writeJSON(w, http.StatusOK, TrendResponse{Country: country, Metric: metric, Points: points})
}

type RankingResponse struct {
	Year   int                 `json:"year"`
	Metric string              `json:"metric"`
	Groups []engine.GroupValue `json:"groups"`
}

func (s *Server) topHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	metric, err := metricParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	n := topNParam(r)

	groups := engine.TopN(engine.AggregateByKey(ds, year, dataset.KeyCountry, metric, engine.SortValueDesc), n)
	if len(groups) == 0 {
		writeNoData(w, fmt.Sprintf("no %s data for %d", metric, year))
		return
	}
	writeJSON(w, http.StatusOK, RankingResponse{Year: year, Metric: metric, Groups: groups})
}

type ShareEntry struct {
	Country string  `json:"country"`
	Value   float64 `json:"value"`
	Share   float64 `json:"share"` // percentage of the top-N total
}

type ShareResponse struct {
	Year    int          `json:"year"`
	Metric  string       `json:"metric"`
	Entries []ShareEntry `json:"entries"`
}

// shareHandler backs the top-N share pie: each country's slice of the
// ranking's combined value.
func (s *Server) shareHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	metric, err := metricParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	groups := engine.TopN(engine.AggregateByKey(ds, year, dataset.KeyCountry, metric, engine.SortValueDesc), topNParam(r))
	if len(groups) == 0 {
		writeNoData(w, fmt.Sprintf("no %s data for %d", metric, year))
		return
	}

	var total float64
	for _, g := range groups {
		total += g.Value
	}
	entries := make([]ShareEntry, 0, len(groups))
	for _, g := range groups {
		share := 0.0
		if total > 0 {
			share = g.Value / total * 100
		}
		entries = append(entries, ShareEntry{Country: g.Key, Value: g.Value, Share: share})
	}
	writeJSON(w, http.StatusOK, ShareResponse{Year: year, Metric: metric, Entries: entries})
}

func (s *Server) regionsHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	metric, err := metricParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	groups := engine.AggregateByKey(ds, year, dataset.KeyRegion, metric, engine.SortKeyAsc)
	if len(groups) == 0 {
		writeNoData(w, fmt.Sprintf("no regional %s data for %d", metric, year))
		return
	}
	writeJSON(w, http.StatusOK, RankingResponse{Year: year, Metric: metric, Groups: groups})
}

type ChoroplethEntry struct {
	Country string  `json:"country"`
	Value   float64 `json:"value"`
	Color   string  `json:"color"`
}

type ChoroplethResponse struct {
	Year    int               `json:"year"`
	Metric  string            `json:"metric"`
	Theme   string            `json:"theme"`
	Min     float64           `json:"min"`
	Max     float64           `json:"max"`
	Entries []ChoroplethEntry `json:"entries"`
}

// choroplethHandler returns per-country values with colors mapped against
// the year slice's own range, ready to paint on a map.
func (s *Server) choroplethHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	metric, err := metricParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	th, err := s.themeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	groups := engine.AggregateByKey(ds, year, dataset.KeyCountry, metric, engine.SortKeyAsc)
	if len(groups) == 0 {
		writeNoData(w, fmt.Sprintf("no %s data for %d", metric, year))
		return
	}

	min, max := groups[0].Value, groups[0].Value
	for _, g := range groups[1:] {
		if g.Value < min {
			min = g.Value
		}
		if g.Value > max {
			max = g.Value
		}
	}

	entries := make([]ChoroplethEntry, 0, len(groups))
	for _, g := range groups {
		v := g.Value
		entries = append(entries, ChoroplethEntry{
			Country: g.Key,
			Value:   g.Value,
			Color:   th.Scale.Map(&v, min, max).Hex(),
		})
	}
	writeJSON(w, http.StatusOK, ChoroplethResponse{
		Year:    year,
		Metric:  metric,
		Theme:   th.Name,
		Min:     min,
		Max:     max,
		Entries: entries,
	})
}

type ThemeInfo struct {
	Name   string        `json:"name"`
	Panels []theme.Panel `json:"panels"`
	Stops  []ThemeStop   `json:"stops"`
}

type ThemeStop struct {
	Pos   float64 `json:"pos"`
	Color string  `json:"color"`
}

func (s *Server) themesHandler(w http.ResponseWriter, r *http.Request) {
	var out []ThemeInfo
	for _, name := range theme.Names() {
		t, _ := theme.Lookup(name)
		info := ThemeInfo{Name: t.Name, Panels: t.Panels}
		for _, stop := range t.Scale.Stops() {
			info.Stops = append(info.Stops, ThemeStop{Pos: stop.Pos, Color: stop.Color.Hex()})
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string][]ThemeInfo{"themes": out})
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w)
	if !ok {
		return
	}
	year, err := parseYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if len(ds.YearSlice(year)) == 0 {
		writeNoData(w, fmt.Sprintf("no data for %d", year))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=mortality_%d.csv", year))
	if err := dataset.WriteYearCSV(w, ds, year); err != nil {
		s.log.Error("failed to write export", "error", err, "year", year)
	}
}

func topNParam(r *http.Request) int {
	n := defaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return n
}
