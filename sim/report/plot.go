package report

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/capsim/capsim/sim"
	"github.com/capsim/capsim/sim/sensitivity"
)

// Chart size; the file format follows the extension of the output path
// (.png, .svg or .pdf).
var (
	ChartWidth  = 10 * vg.Inch
	ChartHeight = 6 * vg.Inch
)

var metricColors = [sim.NumMetrics]color.Color{
	sim.MetricPP:    color.RGBA{R: 0, G: 139, B: 139, A: 255},
	sim.MetricPA:    color.RGBA{R: 250, G: 128, B: 114, A: 255},
	sim.MetricPC:    color.RGBA{R: 128, G: 128, B: 0, A: 255},
	sim.MetricABS:   color.RGBA{R: 218, G: 165, B: 32, A: 255},
	sim.MetricTotal: color.RGBA{R: 139, G: 0, B: 0, A: 255},
}

var (
	minusColor = color.RGBA{R: 0xAA, G: 0x2B, B: 0x2B, A: 255}
	plusColor  = color.RGBA{R: 0x4F, G: 0x66, B: 0x40, A: 255}
	dashed     = []vg.Length{vg.Points(5), vg.Points(3)}
)

// ClipWindow intersects the plot window with the simulated horizon.
func ClipWindow(h, window sim.Horizon) sim.Horizon {
	return sim.NewHorizon(max(h.StartYear, window.StartYear), min(h.EndYear, window.EndYear))
}

// PlotClosedLoop draws the closed-loop rates of every metric with a marker
// and value label at the target year.
func PlotClosedLoop(path string, res *sim.Result, window sim.Horizon, targetYear int) error {
	window = ClipWindow(res.Inputs.Horizon, window)
	p := newPlot("Closed-loop rates [%]", "Year", "Closed-loop rate [%]")

	ymax := 0.0
	for _, m := range sim.Metrics {
		xys := yearSeries(window, func(y int) float64 { return res.ClosedLoop[y].Value(m) })
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("%s line: %w", m.Title(), err)
		}
		line.Color = metricColors[m]
		line.Width = vg.Points(1.5)
		if m == sim.MetricTotal {
			line.Dashes = dashed
		}
		p.Add(line)
		p.Legend.Add(m.Title(), line)
		for _, xy := range xys {
			ymax = math.Max(ymax, xy.Y)
		}

		if window.Contains(targetYear) {
			v := res.ClosedLoop[targetYear].Value(m)
			if err := addTargetMarker(p, float64(targetYear), v, metricColors[m]); err != nil {
				return err
			}
		}
	}
	p.X.Min, p.X.Max = float64(window.StartYear), float64(window.EndYear)
	p.Y.Min, p.Y.Max = 0, ymax+2
	return save(p, path)
}

// PlotDemandSupply draws polymer demand (dashed) against capped recycled
// supply, in tonnes.
func PlotDemandSupply(path string, res *sim.Result, window sim.Horizon) error {
	window = ClipWindow(res.Inputs.Horizon, window)
	p := newPlot("Plastic demand and recycled supply", "Year", "Mass [t]")
	for _, poly := range sim.Polymers {
		m := sim.MetricForPolymer(poly)
		demand, err := plotter.NewLine(yearSeries(window, func(y int) float64 { return res.ClosedLoop[y].Demand[poly] / 1e3 }))
		if err != nil {
			return err
		}
		demand.Color, demand.Dashes = metricColors[m], dashed
		supply, err := plotter.NewLine(yearSeries(window, func(y int) float64 { return res.ClosedLoop[y].Supply[poly] / 1e3 }))
		if err != nil {
			return err
		}
		supply.Color = metricColors[m]
		p.Add(demand, supply)
		p.Legend.Add(poly.Title()+" demand", demand)
		p.Legend.Add("recycled "+poly.Title()+" supply", supply)
	}
	return save(p, path)
}

// PlotRegistrations draws the registrations of every vehicle and their total.
func PlotRegistrations(path string, res *sim.Result, window sim.Horizon) error {
	title := fmt.Sprintf("Vehicle registrations with CAGR = %.2f%%", res.Inputs.CAGR)
	return plotPerVehicle(path, title, "Registrations", res, window, func(k sim.VehicleYear) float64 {
		return res.Registrations[k]
	})
}

// PlotFleet draws the fleet stock of every vehicle and their total.
func PlotFleet(path string, res *sim.Result, window sim.Horizon) error {
	return plotPerVehicle(path, "Vehicle fleet", "Vehicles", res, window, func(k sim.VehicleYear) float64 {
		return res.Fleet[k].Stock
	})
}

// PlotEndOfLife draws the exits of one vehicle and how they split into
// exports, unknown whereabouts and recycling.
func PlotEndOfLife(path string, res *sim.Result, vehicle sim.Vehicle, window sim.Horizon) error {
	window = ClipWindow(res.Inputs.Horizon, window)
	p := newPlot(fmt.Sprintf("End-of-life vehicle %d: %s", vehicle.ID, vehicle.Name), "Year", "Vehicles")
	series := []struct {
		label string
		value func(sim.FleetFlows) float64
	}{
		{"exiting fleet", func(f sim.FleetFlows) float64 { return f.Exits }},
		{"exports", func(f sim.FleetFlows) float64 { return f.Exports }},
		{"unknown whereabouts", func(f sim.FleetFlows) float64 { return f.Unknown }},
		{"entering ELV recycling", func(f sim.FleetFlows) float64 { return f.ToRecycling }},
	}
	colors := palette(len(series))
	for i, s := range series {
		line, err := plotter.NewLine(yearSeries(window, func(y int) float64 {
			return s.value(res.Fleet[sim.VehicleYear{Vehicle: vehicle.ID, Year: y}])
		}))
		if err != nil {
			return err
		}
		line.Color = colors[i]
		p.Add(line)
		p.Legend.Add(s.label, line)
	}
	return save(p, path)
}

// PlotEnvelope draws the baseline closed-loop rates with the min/max band of
// the sensitivity analysis around each metric.
func PlotEnvelope(path string, bands [sim.NumMetrics]sensitivity.Band, window sim.Horizon, s float64) error {
	p := newPlot(fmt.Sprintf("Closed-loop rates with ±%.0f%% parameter variation [%%]", s*100), "Year", "Closed-loop rate [%]")
	for _, b := range bands {
		var lower, upper, base plotter.XYs
		for i, y := range b.Years {
			if !window.Contains(y) {
				continue
			}
			x := float64(y)
			lower = append(lower, plotter.XY{X: x, Y: b.Min[i]})
			upper = append(upper, plotter.XY{X: x, Y: b.Max[i]})
			base = append(base, plotter.XY{X: x, Y: b.Baseline[i]})
		}
		if len(base) == 0 {
			continue
		}
		ring := append(plotter.XYs{}, upper...)
		for i := len(lower) - 1; i >= 0; i-- {
			ring = append(ring, lower[i])
		}
		band, err := plotter.NewPolygon(ring)
		if err != nil {
			return fmt.Errorf("%s band: %w", b.Metric.Title(), err)
		}
		band.Color = withAlpha(metricColors[b.Metric], 0x33)
		band.LineStyle.Width = 0
		line, err := plotter.NewLine(base)
		if err != nil {
			return err
		}
		line.Color = metricColors[b.Metric]
		line.Width = vg.Points(1.5)
		if b.Metric == sim.MetricTotal {
			line.Dashes = dashed
		}
		p.Add(band, line)
		p.Legend.Add(b.Metric.Title(), line)
	}
	p.Y.Min = 0
	return save(p, path)
}

// PlotTornado draws the ranked deviations of one metric as horizontal bars,
// the largest spread on top. Charts without ranked entries are skipped and
// report false.
func PlotTornado(path string, chart sensitivity.TornadoChart, s float64) (bool, error) {
	if chart.Undefined || len(chart.Ranked) == 0 {
		logrus.Debugf("tornado %d %s: nothing to plot", chart.Year, chart.Metric.Title())
		return false, nil
	}
	xlabel := fmt.Sprintf("Deviation of the polymer-specific closed-loop rate for %s [%%]", chart.Metric.Title())
	if chart.Metric == sim.MetricTotal {
		xlabel = "Deviation of the total closed-loop rate [%]"
	}
	p := newPlot(fmt.Sprintf("Sensitivity analysis for %d", chart.Year), xlabel, "")

	n := len(chart.Ranked)
	minus := make(plotter.Values, n)
	plus := make(plotter.Values, n)
	labels := make([]string, n)
	for i, d := range chart.Ranked {
		minus[i], plus[i], labels[i] = d.Minus, d.Plus, d.Label
	}
	width := vg.Points(14)
	for _, bars := range []struct {
		values plotter.Values
		color  color.Color
		label  string
	}{
		{minus, minusColor, fmt.Sprintf("parameter values -%.0f%%", s*100)},
		{plus, plusColor, fmt.Sprintf("parameter values +%.0f%%", s*100)},
	} {
		bc, err := plotter.NewBarChart(bars.values, width)
		if err != nil {
			return false, err
		}
		bc.Horizontal = true
		bc.Color = bars.color
		bc.LineStyle.Width = 0
		p.Add(bc)
		p.Legend.Add(bars.label, bc)
	}
	zero, err := plotter.NewLine(plotter.XYs{{X: 0, Y: -0.5}, {X: 0, Y: float64(n) - 0.5}})
	if err != nil {
		return false, err
	}
	zero.Color = color.Black
	p.Add(zero)
	p.NominalY(labels...)
	p.Legend.Top = false
	p.Legend.Left = true

	height := max(ChartHeight, vg.Length(n)*vg.Points(22))
	if err := p.Save(ChartWidth, height, path); err != nil {
		return false, fmt.Errorf("saving %s: %w", path, err)
	}
	return true, nil
}

// ScenarioSeries is one scenario's yearly values for a comparison chart.
type ScenarioSeries struct {
	Name   string
	Years  []int
	Values []float64
}

// PlotComparison draws one line per scenario, e.g. the total closed-loop
// rate of every scenario of a batch.
func PlotComparison(path, title string, series []ScenarioSeries) error {
	p := newPlot(title, "Year", "Closed-loop rate [%]")
	colors := palette(len(series))
	for i, s := range series {
		xys := make(plotter.XYs, len(s.Years))
		for k, y := range s.Years {
			xys[k] = plotter.XY{X: float64(y), Y: s.Values[k]}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	return save(p, path)
}

// ChartPath joins dir and name, prefixing name with the scenario id when
// several scenarios share an output directory.
func ChartPath(dir, prefix, name string) string {
	if prefix != "" {
		name = prefix + "_" + name
	}
	return filepath.Join(dir, name)
}

func plotPerVehicle(path, title, ylabel string, res *sim.Result, window sim.Horizon, value func(sim.VehicleYear) float64) error {
	window = ClipWindow(res.Inputs.Horizon, window)
	p := newPlot(title, "Year", ylabel)
	colors := palette(len(res.Inputs.Vehicles))
	total := make(plotter.XYs, window.Len())
	for i, v := range res.Inputs.Vehicles {
		xys := yearSeries(window, func(y int) float64 { return value(sim.VehicleYear{Vehicle: v.ID, Year: y}) })
		for k := range xys {
			total[k].X = xys[k].X
			total[k].Y += xys[k].Y
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
		line.Color = colors[i]
		p.Add(line)
		p.Legend.Add(v.Name, line)
	}
	line, err := plotter.NewLine(total)
	if err != nil {
		return err
	}
	line.Color, line.Dashes = metricColors[sim.MetricTotal], dashed
	p.Add(line)
	p.Legend.Add("total", line)
	p.Y.Min = 0
	return save(p, path)
}

func newPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())
	return p
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(ChartWidth, ChartHeight, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	logrus.Debugf("saved chart %s", path)
	return nil
}

func yearSeries(window sim.Horizon, value func(int) float64) plotter.XYs {
	xys := make(plotter.XYs, 0, window.Len())
	for _, y := range window.Years() {
		xys = append(xys, plotter.XY{X: float64(y), Y: value(y)})
	}
	return xys
}

func addTargetMarker(p *plot.Plot, x, y float64, c color.Color) error {
	pt := plotter.XYs{{X: x, Y: y}}
	sc, err := plotter.NewScatter(pt)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = c
	sc.GlyphStyle.Radius = vg.Points(3)
	sc.GlyphStyle.Shape = draw.CircleGlyph{}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pt, Labels: []string{fmt.Sprintf("%.2f", y)}})
	if err != nil {
		return err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].Color = c
	}
	labels.Offset = vg.Point{X: vg.Points(6), Y: vg.Points(4)}
	p.Add(sc, labels)
	return nil
}

// palette returns n evenly spaced hues.
func palette(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := range colors {
		r, g, b := hslToRGB(float64(i)/float64(max(n, 1)), 0.6, 0.4)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

func withAlpha(c color.Color, a uint8) color.Color {
	r, g, b, _ := c.RGBA()
	// premultiplied for color.RGBA
	scale := func(v uint32) uint8 { return uint8((v >> 8) * uint32(a) / 255) }
	return color.RGBA{R: scale(r), G: scale(g), B: scale(b), A: a}
}
