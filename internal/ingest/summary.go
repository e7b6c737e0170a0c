package ingest

import "github.com/montanaflynn/stats"

// SeriesSummary holds descriptive statistics for one plotted series.
type SeriesSummary struct {
	Key    string  `json:"key"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Summarize computes statistics over the numeric values of each series.
// Non-numeric cells are skipped.
func Summarize(r *Result) []SeriesSummary {
	series := r.Series()
	out := make([]SeriesSummary, 0, len(series))
	for _, key := range series {
		data := make(stats.Float64Data, 0, len(r.Rows))
		for _, row := range r.Rows {
			v, _ := row.Get(key)
			if f, ok := v.Float(); ok {
				data = append(data, f)
			}
		}
		if len(data) == 0 {
			continue
		}

		s := SeriesSummary{Key: key, Count: len(data)}
		s.Min, _ = stats.Min(data)
		s.Max, _ = stats.Max(data)
		s.Mean, _ = stats.Mean(data)
		s.Median, _ = stats.Median(data)
		out = append(out, s)
	}
	return out
}
