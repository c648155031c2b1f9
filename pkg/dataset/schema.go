package dataset

import (
	"regexp"
	"strings"
)

// Cohort is the sex subgroup an age-bucket column applies to.
type Cohort string

const (
	CohortBothSexes Cohort = "both_sexes"
	CohortMale      Cohort = "male"
	CohortFemale    Cohort = "female"
)

// ageToken matches the age range embedded in a column name, e.g.
// "aged_15_19_years_old" or "aged_70+_year_olds" or plain "aged_5_14".
var ageToken = regexp.MustCompile(`aged_(\d+_\d+|\d+\+)`)

// AgeColumn describes one age-bucket column, parsed once at load time so
// queries never re-parse header names.
type AgeColumn struct {
	Column string // source column name
	Cohort Cohort
	Label  string // display label, e.g. "15–19" or "70+"
}

// Schema holds the age-bucket columns discovered in the source header, in
// header order.
type Schema struct {
	AgeColumns []AgeColumn
}

// ParseSchema discovers age-bucket columns in a header row. A column
// qualifies when its name carries an age-range token. Cohort is taken from
// the sex marker in the name; columns without a marker count as both-sexes,
// matching how unsexed age buckets are published.
func ParseSchema(headers []string) Schema {
	var s Schema
	for _, h := range headers {
		m := ageToken.FindStringSubmatch(h)
		if m == nil {
			continue
		}
		s.AgeColumns = append(s.AgeColumns, AgeColumn{
			Column: h,
			Cohort: cohortOf(h),
			Label:  ageLabel(m[1]),
		})
	}
	return s
}

// CohortColumns returns the age columns for a cohort, in header order.
func (s Schema) CohortColumns(c Cohort) []AgeColumn {
	var out []AgeColumn
	for _, col := range s.AgeColumns {
		if col.Cohort == c {
			out = append(out, col)
		}
	}
	return out
}

// IsAgeColumn reports whether a column name was discovered as an age
// bucket.
func (s Schema) IsAgeColumn(name string) bool {
	for _, col := range s.AgeColumns {
		if col.Column == name {
			return true
		}
	}
	return false
}

func cohortOf(name string) Cohort {
	switch {
	case strings.Contains(name, string(CohortBothSexes)):
		return CohortBothSexes
	// "female" must be checked before "male": the latter is a substring.
	case strings.Contains(name, string(CohortFemale)):
		return CohortFemale
	case strings.Contains(name, string(CohortMale)):
		return CohortMale
	default:
		return CohortBothSexes
	}
}

// ageLabel converts an age token to its display label: "15_19" → "15–19"
// (en-dash), "70+" → "70+".
func ageLabel(token string) string {
	return strings.ReplaceAll(token, "_", "–")
}
