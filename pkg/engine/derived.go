// Package engine derives indicator metrics, reshaped series, rankings and
// color encodings from a loaded mortality dataset. Every function is pure
// and total: missing inputs produce an explicit unavailable result (nil),
// never an error and never a silent zero.
package engine

import (
	"math"

	"github.com/vitalstats/lens/pkg/dataset"
)

// EstimatedTotal estimates the absolute suicide count for a record:
// crude mortality (per 100k) times population, over 100k. The fractional
// part is truncated toward zero, not rounded; reported totals depend on
// keeping that policy. Returns nil when population is absent or either
// input is non-finite.
func EstimatedTotal(r *dataset.Record) *int64 {
	if r == nil || r.Population == nil {
		return nil
	}
	v := r.CrudeMortality * *r.Population / 100000
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n := int64(v)
	return &n
}

// MortalityDelta is the year-over-year change in crude mortality. Nil when
// the previous-year record is missing.
func MortalityDelta(cur, prev *dataset.Record) *float64 {
	if cur == nil || prev == nil {
		return nil
	}
	d := cur.CrudeMortality - prev.CrudeMortality
	return &d
}

// RatioDelta is the year-over-year change in the M:F death rate ratio. Nil
// when either side lacks the ratio.
func RatioDelta(cur, prev *dataset.Record) *float64 {
	if cur == nil || prev == nil || cur.MaleFemaleRatio == nil || prev.MaleFemaleRatio == nil {
		return nil
	}
	d := *cur.MaleFemaleRatio - *prev.MaleFemaleRatio
	return &d
}

// EstimatedTotalDelta is the difference of two integer estimates. Nil when
// either estimate is unavailable.
func EstimatedTotalDelta(cur, prev *dataset.Record) *int64 {
	c := EstimatedTotal(cur)
	p := EstimatedTotal(prev)
	if c == nil || p == nil {
		return nil
	}
	d := *c - *p
	return &d
}
