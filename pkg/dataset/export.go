package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteYearCSV serializes the year slice back to CSV: a pass-through of
// the loaded rows, not a derived artifact. Absent values stay as empty
// cells.
func WriteYearCSV(w io.Writer, ds *Dataset, year int) error {
	cw := csv.NewWriter(w)

	header := []string{colCountry, colYear, colRegion, colCrude, colPopulation, colRatio, colIncidence}
	for _, col := range ds.Schema().AgeColumns {
		header = append(header, col.Column)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range ds.YearSlice(year) {
		row := []string{
			rec.Country,
			strconv.Itoa(rec.Year),
			rec.Region,
			formatFloat(rec.CrudeMortality),
			formatOptional(rec.Population),
			formatOptional(rec.MaleFemaleRatio),
			formatOptional(rec.IncidencePer100k),
		}
		for _, col := range ds.Schema().AgeColumns {
			if v, ok := rec.AgeRates[col.Column]; ok {
				row = append(row, formatFloat(v))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
