package dataset

import "sort"

// Metric field names accepted by Record.Metric and the aggregation API.
const (
	FieldCrudeMortality  = "crude_mortality"
	FieldPopulation      = "population"
	FieldMaleFemaleRatio = "male_to_female_ratio"
	FieldIncidence       = "incidence_per_100k"
)

// Grouping key field names accepted by Record.Key.
const (
	KeyCountry = "country"
	KeyRegion  = "region"
)

// Record is one (country, year) observation. Optional fields use nil
// pointers or missing map keys to model absence; absent is never coerced
// to zero.
type Record struct {
	Country string
	Year    int
	Region  string // empty = absent

	// CrudeMortality is suicide deaths per 100,000 population. Rows
	// without it are dropped at load time, so it is always present,
	// finite and non-negative here.
	CrudeMortality float64

	Population       *float64
	MaleFemaleRatio  *float64 // age-standardized M:F death rate ratio
	IncidencePer100k *float64

	// AgeRates holds per-age-bucket rates keyed by source column name.
	// Only present values appear; see Schema for the parsed labels.
	AgeRates map[string]float64
}

// Metric returns the named numeric field, reporting absence explicitly.
// Age-bucket columns are addressable by their source column name.
func (r *Record) Metric(field string) (float64, bool) {
	switch field {
	case FieldCrudeMortality:
		return r.CrudeMortality, true
	case FieldPopulation:
		if r.Population == nil {
			return 0, false
		}
		return *r.Population, true
	case FieldMaleFemaleRatio:
		if r.MaleFemaleRatio == nil {
			return 0, false
		}
		return *r.MaleFemaleRatio, true
	case FieldIncidence:
		if r.IncidencePer100k == nil {
			return 0, false
		}
		return *r.IncidencePer100k, true
	}
	v, ok := r.AgeRates[field]
	return v, ok
}

// Key returns the named grouping key, reporting absence explicitly.
func (r *Record) Key(field string) (string, bool) {
	switch field {
	case KeyCountry:
		return r.Country, r.Country != ""
	case KeyRegion:
		return r.Region, r.Region != ""
	}
	return "", false
}

// Dataset is a read-only ordered collection of Records plus the schema
// parsed from the source header. It is immutable after load; duplicate
// (country, year) rows are kept as-is.
type Dataset struct {
	schema  Schema
	records []Record
}

func New(schema Schema, records []Record) *Dataset {
	return &Dataset{schema: schema, records: records}
}

func (d *Dataset) Schema() Schema { return d.schema }

func (d *Dataset) Len() int { return len(d.records) }

// Records returns the underlying rows. Callers must treat them as
// read-only.
func (d *Dataset) Records() []Record { return d.records }

// Find returns the first record for (country, year), or nil if the
// selection is empty.
func (d *Dataset) Find(country string, year int) *Record {
	for i := range d.records {
		if d.records[i].Country == country && d.records[i].Year == year {
			return &d.records[i]
		}
	}
	return nil
}

// CountryHistory returns all records for a country ordered by year
// ascending.
func (d *Dataset) CountryHistory(country string) []Record {
	var out []Record
	for i := range d.records {
		if d.records[i].Country == country {
			out = append(out, d.records[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// YearSlice returns all records for a year in source order.
func (d *Dataset) YearSlice(year int) []Record {
	var out []Record
	for i := range d.records {
		if d.records[i].Year == year {
			out = append(out, d.records[i])
		}
	}
	return out
}

// Years returns the distinct years present, ascending.
func (d *Dataset) Years() []int {
	seen := make(map[int]bool)
	var out []int
	for i := range d.records {
		if !seen[d.records[i].Year] {
			seen[d.records[i].Year] = true
			out = append(out, d.records[i].Year)
		}
	}
	sort.Ints(out)
	return out
}

// Countries returns the distinct countries present, alphabetical.
func (d *Dataset) Countries() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range d.records {
		if !seen[d.records[i].Country] {
			seen[d.records[i].Country] = true
			out = append(out, d.records[i].Country)
		}
	}
	sort.Strings(out)
	return out
}
