package engine

import (
	"sort"

	"github.com/vitalstats/lens/pkg/dataset"
)

// AgePoint is one labeled age bucket with its rate.
type AgePoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// AgeSeries reshapes a record's age-bucket columns for one cohort into an
// ordered (label, value) series. Buckets with absent values are dropped;
// every present bucket maps 1:1 to a point. An empty result means no data
// for the cohort, which callers must render as a placeholder rather than
// an error.
//
// The series is sorted ascending by value, not by age order. That ranks
// bars by magnitude and reproduces the observed charting behavior; see
// DESIGN.md before changing it to cohort order. Ties keep header order.
func AgeSeries(r *dataset.Record, schema dataset.Schema, cohort dataset.Cohort) []AgePoint {
	if r == nil {
		return nil
	}

	var points []AgePoint
	for _, col := range schema.CohortColumns(cohort) {
		if v, ok := r.AgeRates[col.Column]; ok {
			points = append(points, AgePoint{Label: col.Label, Value: v})
		}
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Value < points[j].Value })
	return points
}
