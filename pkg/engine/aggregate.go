package engine

import (
	"sort"

	"github.com/vitalstats/lens/pkg/dataset"
)

// SortMode selects how aggregated groups are ordered.
type SortMode int

const (
	// SortValueDesc orders groups by aggregated value descending, for
	// rankings. Ties keep first-seen group order.
	SortValueDesc SortMode = iota
	// SortKeyAsc orders groups alphabetically by key, for categorical
	// breakdowns.
	SortKeyAsc
)

// GroupValue is one aggregated group: the key, the mean of the metric over
// contributing rows, and how many rows contributed.
type GroupValue struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// AggregateByKey filters the dataset to a year, groups rows by a key field
// and reduces each group to the arithmetic mean of a metric field. Rows
// with an absent key or absent metric do not contribute; a group with no
// contributing rows is omitted rather than emitted as zero.
func AggregateByKey(ds *dataset.Dataset, year int, keyField, metricField string, mode SortMode) []GroupValue {
	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[string]*acc)
	var order []string

	records := ds.Records()
	for i := range records {
		r := &records[i]
		if r.Year != year {
			continue
		}
		key, ok := r.Key(keyField)
		if !ok {
			continue
		}
		v, ok := r.Metric(metricField)
		if !ok {
			continue
		}
		a, seen := sums[key]
		if !seen {
			a = &acc{}
			sums[key] = a
			order = append(order, key)
		}
		a.sum += v
		a.count++
	}

	groups := make([]GroupValue, 0, len(order))
	for _, key := range order {
		a := sums[key]
		groups = append(groups, GroupValue{Key: key, Value: a.sum / float64(a.count), Count: a.count})
	}

	switch mode {
	case SortKeyAsc:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	default:
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	}
	return groups
}

// TopN truncates a descending-sorted group list to at most n entries.
func TopN(groups []GroupValue, n int) []GroupValue {
	if n >= 0 && len(groups) > n {
		return groups[:n]
	}
	return groups
}
