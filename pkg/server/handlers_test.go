package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/vitalstats/lens/pkg/dataset"
	"github.com/vitalstats/lens/pkg/testutil"
	"github.com/vitalstats/lens/pkg/theme"
)

const handlerCSV = `country,year,region,crude_mortality,population,male_to_female_ratio,death_rate_per_100k_aged_5_14,death_rate_per_100k_aged_15_24
Lithuania,2019,Europe,22.5,1000000,3.5,1.2,3.4
Lithuania,2018,Europe,20.5,1000000,3.25,,
Japan,2019,Asia,15.3,2000000,2.1,0.5,2.0
Guyana,2019,,40.2,,,,
`

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mortality.csv")
	require.NoError(t, os.WriteFile(path, []byte(handlerCSV), 0o644))

	cfg := Config{
		ListenAddr: "127.0.0.1:0",
		ViewConfig: dataset.ViewConfig{
			Logger: testutil.NewLogger(),
			Source: dataset.FileSource(path),
		},
		VersionInfo: VersionInfo{Version: "test", Commit: "deadbeef", Date: "2026-01-01"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return s
}

func newReadyServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	s := newTestServer(t, mutate)
	require.NoError(t, s.View().Refresh(context.Background()))
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func requireAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code)
	require.Equal(t, code, decodeJSON[apiError](t, rec).Error)
}

func TestLens_Server_Readiness(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)

	require.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
	require.Equal(t, http.StatusServiceUnavailable, get(t, s, "/readyz").Code)
	requireAPIError(t, get(t, s, "/api/years"), http.StatusServiceUnavailable, "not_ready")

	require.NoError(t, s.View().Refresh(context.Background()))
	require.Equal(t, http.StatusOK, get(t, s, "/readyz").Code)
	require.Equal(t, http.StatusOK, get(t, s, "/api/years").Code)
}

func TestLens_Server_Version(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)
	rec := get(t, s, "/version")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeJSON[VersionInfo](t, rec)
	require.Equal(t, "test", info.Version)
	require.Equal(t, "deadbeef", info.Commit)
}

func TestLens_Server_RequestID(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)

	rec := get(t, s, "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	echo := httptest.NewRecorder()
	s.Handler().ServeHTTP(echo, req)
	require.Equal(t, "trace-me", echo.Header().Get("X-Request-ID"))
}

func TestLens_Server_Years(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)
	rec := get(t, s, "/api/years")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string][]int](t, rec)
	require.Equal(t, []int{2018, 2019}, body["years"])
}

func TestLens_Server_Countries(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)

	rec := get(t, s, "/api/countries")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[PaginatedResponse[string]](t, rec)
	require.Equal(t, []string{"Guyana", "Japan", "Lithuania"}, body.Items)
	require.Equal(t, 3, body.Total)

	rec = get(t, s, "/api/countries?limit=1&offset=1")
	page := decodeJSON[PaginatedResponse[string]](t, rec)
	require.Equal(t, []string{"Japan"}, page.Items)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 1, page.Limit)
	require.Equal(t, 1, page.Offset)
}

func TestLens_Server_Summary(t *testing.T) {
	t.Parallel()

	t.Run("full record with previous year", func(t *testing.T) {
		t.Parallel()

		s := newReadyServer(t, nil)
		rec := get(t, s, "/api/summary?country=Lithuania&year=2019")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeJSON[SummaryResponse](t, rec)
		require.Equal(t, "Lithuania", body.Country)
		require.Equal(t, 2019, body.Year)
		require.Equal(t, "Europe", body.Region)
		require.Equal(t, 22.5, body.CrudeMortality)
		require.NotNil(t, body.MaleFemaleRatio)
		require.Equal(t, 3.5, *body.MaleFemaleRatio)
		require.NotNil(t, body.EstimatedTotal)
		require.Equal(t, int64(225), *body.EstimatedTotal)
		require.NotNil(t, body.CrudeMortalityDelta)
		require.InDelta(t, 2.0, *body.CrudeMortalityDelta, 1e-9)
		require.NotNil(t, body.RatioDelta)
		require.InDelta(t, 0.25, *body.RatioDelta, 1e-9)
		require.NotNil(t, body.EstimatedTotalDelta)
		require.Equal(t, int64(20), *body.EstimatedTotalDelta)
		require.True(t, body.HasPreviousYear)
	})

	t.Run("sparse record serializes nulls", func(t *testing.T) {
		t.Parallel()

		s := newReadyServer(t, nil)
		rec := get(t, s, "/api/summary?country=Guyana&year=2019")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeJSON[SummaryResponse](t, rec)
		require.Equal(t, 40.2, body.CrudeMortality)
		require.Nil(t, body.MaleFemaleRatio)
		require.Nil(t, body.EstimatedTotal)
		require.Nil(t, body.CrudeMortalityDelta)
		require.False(t, body.HasPreviousYear)

		require.Contains(t, rec.Body.String(), `"estimated_total_suicides":null`)
	})

	t.Run("missing parameters", func(t *testing.T) {
		t.Parallel()

		s := newReadyServer(t, nil)
		requireAPIError(t, get(t, s, "/api/summary?country=Lithuania"), http.StatusBadRequest, "bad_request")
		requireAPIError(t, get(t, s, "/api/summary?year=2019"), http.StatusBadRequest, "bad_request")
		requireAPIError(t, get(t, s, "/api/summary?country=Lithuania&year=abc"), http.StatusBadRequest, "bad_request")
	})

	t.Run("unknown selection is no_data", func(t *testing.T) {
		t.Parallel()

		s := newReadyServer(t, nil)
		requireAPIError(t, get(t, s, "/api/summary?country=Atlantis&year=2019"), http.StatusNotFound, "no_data")
		requireAPIError(t, get(t, s, "/api/summary?country=Lithuania&year=1900"), http.StatusNotFound, "no_data")
	})
}

func TestLens_Server_AgeSeries(t *testing.T) {
	t.Parallel()

	t.Run("points sorted by value", func(t *testing.T) {
		t.Parallel()

		s := newReadyServer(t, nil)
		rec := get(t, s, "/api/age-series?country=Lithuania&year=2019")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeJSON[AgeSeriesResponse](t, rec)
		require.Equal(t, dataset.CohortBothSexes, body.Cohort)
		require.Len(t, body.Points, 2)
		require.Equal(t, "5–14", body.Points[0].Label)
		require.Equal(t, 1.2, body.Points[0].Value)
		require.Equal(t, "15–24", body.Points[1].Label)
		require.Equal(t, 3.4, body.Points[1].Value)
	})

	t.Run("record without age data returns empty array", func(t *testing.T) {
		t.Parallel()

		s := newReadyServer(t, nil)
		rec := get(t, s, "/api/age-series?country=Guyana&year=2019")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"points":[]`)
	})

	t.Run("unknown cohort rejected", func(t *testing.T) {
		t.Parallel()

		s := newReadyServer(t, nil)
		requireAPIError(t, get(t, s, "/api/age-series?country=Lithuania&year=2019&cohort=toddlers"), http.StatusBadRequest, "bad_request")
	})
}

func TestLens_Server_Trend(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)

	rec := get(t, s, "/api/trend?country=Lithuania")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[TrendResponse](t, rec)
	require.Equal(t, "crude_mortality", body.Metric)
	require.Equal(t, []TrendPoint{{Year: 2018, Value: 20.5}, {Year: 2019, Value: 22.5}}, body.Points)

	requireAPIError(t, get(t, s, "/api/trend?country=Lithuania&metric=shoe_size"), http.StatusBadRequest, "bad_request")
	requireAPIError(t, get(t, s, "/api/trend?country=Atlantis"), http.StatusNotFound, "no_data")
}

func TestLens_Server_Top(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)

	rec := get(t, s, "/api/top?year=2019")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[RankingResponse](t, rec)
	require.Len(t, body.Groups, 3)
	require.Equal(t, "Guyana", body.Groups[0].Key)
	require.Equal(t, "Lithuania", body.Groups[1].Key)
	require.Equal(t, "Japan", body.Groups[2].Key)

	rec = get(t, s, "/api/top?year=2019&n=1")
	require.Len(t, decodeJSON[RankingResponse](t, rec).Groups, 1)

	requireAPIError(t, get(t, s, "/api/top?year=1900"), http.StatusNotFound, "no_data")
}

func TestLens_Server_Share(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)
	rec := get(t, s, "/api/share?year=2019")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[ShareResponse](t, rec)
	require.Len(t, body.Entries, 3)
	var total float64
	for _, e := range body.Entries {
		total += e.Share
	}
	require.InDelta(t, 100.0, total, 1e-9)
	require.Equal(t, "Guyana", body.Entries[0].Country)
}

func TestLens_Server_Regions(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)
	rec := get(t, s, "/api/regions?year=2019")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[RankingResponse](t, rec)
	// Guyana carries no region, so only two groups, alphabetical.
	require.Len(t, body.Groups, 2)
	require.Equal(t, "Asia", body.Groups[0].Key)
	require.Equal(t, 15.3, body.Groups[0].Value)
	require.Equal(t, "Europe", body.Groups[1].Key)
	require.Equal(t, 22.5, body.Groups[1].Value)
}

func TestLens_Server_Choropleth(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)

	rec := get(t, s, "/api/choropleth?year=2019&theme=greys")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[ChoroplethResponse](t, rec)
	require.Equal(t, "greys", body.Theme)
	require.Equal(t, 15.3, body.Min)
	require.Equal(t, 40.2, body.Max)

	colors := map[string]string{}
	for _, e := range body.Entries {
		colors[e.Country] = e.Color
	}
	// greys runs white at min to black at max.
	require.Equal(t, "#FFFFFF", colors["Japan"])
	require.Equal(t, "#000000", colors["Guyana"])
	require.Regexp(t, `^#[0-9A-F]{6}$`, colors["Lithuania"])

	requireAPIError(t, get(t, s, "/api/choropleth?year=2019&theme=sepia"), http.StatusBadRequest, "bad_request")
}

func TestLens_Server_Themes(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)
	rec := get(t, s, "/api/themes")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string][]ThemeInfo](t, rec)
	require.Len(t, body["themes"], len(theme.Names()))
	for _, info := range body["themes"] {
		require.NotEmpty(t, info.Stops)
		require.Equal(t, 0.0, info.Stops[0].Pos)
		require.Equal(t, 1.0, info.Stops[len(info.Stops)-1].Pos)
	}
}

func TestLens_Server_Export(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, nil)

	rec := get(t, s, "/api/export?year=2019")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Equal(t, "attachment; filename=mortality_2019.csv", rec.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4) // header + three 2019 rows
	require.Contains(t, lines[0], "crude_mortality")
	require.Contains(t, rec.Body.String(), "Lithuania")
	require.NotContains(t, rec.Body.String(), "2018")

	requireAPIError(t, get(t, s, "/api/export?year=1900"), http.StatusNotFound, "no_data")
}

func TestLens_Server_RateLimit(t *testing.T) {
	t.Parallel()

	s := newReadyServer(t, func(cfg *Config) {
		cfg.RateLimitPerMinute = 1
		cfg.RateLimitBurst = 1
	})

	require.Equal(t, http.StatusOK, get(t, s, "/api/years").Code)

	rec := get(t, s, "/api/years")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "rate_limit_exceeded", decodeJSON[RateLimitError](t, rec).Error)

	// Health endpoints sit outside the limited /api group.
	require.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
}

func TestLens_Server_RateLimiterPerIP(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(rate.Every(time.Minute), 1)

	allowed, _ := rl.Allow("10.0.0.1")
	require.True(t, allowed)
	allowed, retryAfter := rl.Allow("10.0.0.1")
	require.False(t, allowed)
	require.Greater(t, retryAfter, time.Duration(0))

	allowed, _ = rl.Allow("10.0.0.2")
	require.True(t, allowed, "a different client has its own bucket")
}

func TestLens_Server_ClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4242"
	require.Equal(t, "192.0.2.10", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", clientIP(req))
}

func TestLens_Server_ConfigValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			ListenAddr: ":8080",
			ViewConfig: dataset.ViewConfig{
				Logger: testutil.NewLogger(),
				Source: dataset.FileSource("data.csv"),
			},
		}
	}

	t.Run("defaults fill in", func(t *testing.T) {
		t.Parallel()

		cfg := base()
		require.NoError(t, cfg.Validate())
		require.Equal(t, theme.Default().Name, cfg.DefaultTheme)
		require.Equal(t, 10*time.Second, cfg.ReadHeaderTimeout)
		require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("listen addr required", func(t *testing.T) {
		t.Parallel()

		cfg := base()
		cfg.ListenAddr = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown default theme rejected", func(t *testing.T) {
		t.Parallel()

		cfg := base()
		cfg.DefaultTheme = "sepia"
		require.Error(t, cfg.Validate())
	})
}

func TestLens_Server_Pagination(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c", "d"}

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		p := ParsePagination(req, 0)
		require.Equal(t, DefaultLimit, p.Limit)
		require.Equal(t, 0, p.Offset)
	})

	t.Run("limit is capped", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/?limit=%d", MaxLimit*10), nil)
		require.Equal(t, MaxLimit, ParsePagination(req, 0).Limit)
	})

	t.Run("window", func(t *testing.T) {
		t.Parallel()

		out := Paginate(items, PaginationParams{Limit: 2, Offset: 1})
		require.Equal(t, []string{"b", "c"}, out.Items)
		require.Equal(t, 4, out.Total)
	})

	t.Run("offset past the end", func(t *testing.T) {
		t.Parallel()

		out := Paginate(items, PaginationParams{Limit: 2, Offset: 10})
		require.Empty(t, out.Items)
		require.Equal(t, 4, out.Total)
	})
}
