package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/tncsim/core/metrics"
	"github.com/kilianp07/tncsim/core/timebin"
)

// WriteBinChart renders an HTML line chart of demand and fleet size per
// time bin.
func WriteBinChart(w io.Writer, runID string, bins []metrics.BinStats) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Fleet activity", Subtitle: "run " + runID}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Clock"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	xAxis := make([]string, 0, len(bins))
	trips := make([]opts.LineData, 0, len(bins))
	fleet := make([]opts.LineData, 0, len(bins))
	free := make([]opts.LineData, 0, len(bins))
	spawned := make([]opts.LineData, 0, len(bins))
	for _, b := range bins {
		xAxis = append(xAxis, timebin.FormatClock(b.Clock))
		trips = append(trips, opts.LineData{Value: b.Trips})
		fleet = append(fleet, opts.LineData{Value: b.FleetSize})
		free = append(free, opts.LineData{Value: b.FreeVehicles})
		spawned = append(spawned, opts.LineData{Value: b.Spawned})
	}
	line.SetXAxis(xAxis).
		AddSeries("Trips", trips).
		AddSeries("Fleet size", fleet).
		AddSeries("Free vehicles", free).
		AddSeries("Spawned", spawned)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
