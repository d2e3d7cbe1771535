package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/san-kum/orbitsim/internal/experiment"
)

// ResultsToCSV writes one row per run: integrator, ticks, sim time,
// wall time and every metric, metric columns sorted by name.
func ResultsToCSV(w io.Writer, results []*experiment.Result) error {
	names := map[string]bool{}
	for _, r := range results {
		if r == nil {
			continue
		}
		for k := range r.Metrics {
			names[k] = true
		}
	}
	metricCols := make([]string, 0, len(names))
	for k := range names {
		metricCols = append(metricCols, k)
	}
	sort.Strings(metricCols)

	cw := csv.NewWriter(w)
	header := append([]string{"integrator", "ticks", "sim_time", "wall_seconds"}, metricCols...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		row := []string{
			r.Integrator,
			strconv.FormatUint(r.Ticks, 10),
			strconv.FormatFloat(r.SimTime, 'g', -1, 64),
			strconv.FormatFloat(r.Duration.Seconds(), 'g', 6, 64),
		}
		for _, k := range metricCols {
			row = append(row, strconv.FormatFloat(r.Metrics[k], 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
