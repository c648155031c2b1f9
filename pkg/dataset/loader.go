package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Source column names. The ratio column carries the full WHO name; the
// short alias is accepted for hand-built files.
const (
	colCountry    = "country"
	colYear       = "year"
	colCrude      = "crude_mortality"
	colPopulation = "population"
	colRatio      = "male_to_female_suicide_death_rate_ratio_age_standardized"
	colRatioShort = "male_to_female_ratio"
	colRegion     = "region"
	colSuicides   = "suicides_no"
	colIncidence  = "incidence_per_100k"
)

var ErrNoHeader = errors.New("dataset: missing header row")

// Load reads a delimited dataset. The header row drives column mapping, so
// column order does not matter. Rows with an absent country, year, or crude
// mortality are excluded here so the engine never sees them; optional
// numeric fields that are empty, unparseable, negative, or non-finite are
// treated as absent.
func Load(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, required := range []string{colCountry, colYear, colCrude} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("dataset: missing required column %q", required)
		}
	}

	schema := ParseSchema(header)

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		line++

		rec, ok := parseRow(row, idx, schema)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	return New(schema, records), nil
}

func parseRow(row []string, idx map[string]int, schema Schema) (Record, bool) {
	country := field(row, idx, colCountry)
	yearStr := field(row, idx, colYear)
	if country == "" || yearStr == "" {
		return Record{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Record{}, false
	}

	crude := optionalFloat(field(row, idx, colCrude))
	if crude == nil {
		return Record{}, false
	}

	rec := Record{
		Country:        country,
		Year:           year,
		Region:         field(row, idx, colRegion),
		CrudeMortality: *crude,
		Population:     optionalFloat(field(row, idx, colPopulation)),
	}

	rec.MaleFemaleRatio = optionalFloat(field(row, idx, colRatio))
	if rec.MaleFemaleRatio == nil {
		rec.MaleFemaleRatio = optionalFloat(field(row, idx, colRatioShort))
	}

	// Incidence is taken from the source when published, otherwise derived
	// from raw counts when both inputs are present.
	rec.IncidencePer100k = optionalFloat(field(row, idx, colIncidence))
	if rec.IncidencePer100k == nil && rec.Population != nil && *rec.Population > 0 {
		if suicides := optionalFloat(field(row, idx, colSuicides)); suicides != nil {
			v := *suicides / *rec.Population * 100000
			rec.IncidencePer100k = &v
		}
	}

	for _, col := range schema.AgeColumns {
		if v := optionalFloat(field(row, idx, col.Column)); v != nil {
			if rec.AgeRates == nil {
				rec.AgeRates = make(map[string]float64, len(schema.AgeColumns))
			}
			rec.AgeRates[col.Column] = *v
		}
	}

	return rec, true
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// optionalFloat parses a cell into a present value, or nil for anything
// the engine models as absent.
func optionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil
	}
	return &v
}
