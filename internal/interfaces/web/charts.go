package web

import (
	"fmt"
	"math"
)

// Chart dimensions in SVG user units.
const (
	chartWidth   = 640
	chartHeight  = 260
	chartPadding = 32
	pieRadius    = 100
)

var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b"}

// BarDatum is one labelled bar value.
type BarDatum struct {
	Label string
	Value float64
}

// BarChart renders vertical bars around a zero baseline, so negative NPVs
// hang below it.
type BarChart struct {
	Title  string
	Data   []BarDatum
	Format func(float64) string
}

// Bar is the computed geometry of one bar.
type Bar struct {
	X, Y, Width, Height float64
	LabelX, ValueY      float64
	Label, Value        string
	Fill                string
}

// BarLayout is what the bar_chart template draws.
type BarLayout struct {
	Title         string
	Width, Height float64
	BaselineY     float64
	Bars          []Bar
}

// Layout computes bar positions. Values are scaled to the larger of the
// positive and negative extents.
func (c BarChart) Layout() BarLayout {
	out := BarLayout{Title: c.Title, Width: chartWidth, Height: chartHeight}
	format := c.Format
	if format == nil {
		format = Money
	}

	hi, lo := 0.0, 0.0
	for _, d := range c.Data {
		hi = math.Max(hi, d.Value)
		lo = math.Min(lo, d.Value)
	}
	plot := float64(chartHeight - 2*chartPadding)
	span := hi - lo
	scale := 0.0
	if span > 0 {
		scale = plot / span
	}
	out.BaselineY = chartPadding + hi*scale
	if span == 0 {
		out.BaselineY = chartHeight - chartPadding
	}
	if len(c.Data) == 0 {
		return out
	}

	slot := float64(chartWidth-2*chartPadding) / float64(len(c.Data))
	width := slot * 0.6
	for i, d := range c.Data {
		h := math.Abs(d.Value) * scale
		y := out.BaselineY - h
		valueY := y - 6
		fill := palette[0]
		if d.Value < 0 {
			y = out.BaselineY
			valueY = y + h + 14
			fill = palette[3]
		}
		x := chartPadding + float64(i)*slot + (slot-width)/2
		out.Bars = append(out.Bars, Bar{
			X: round1(x), Y: round1(y), Width: round1(width), Height: round1(h),
			LabelX: round1(x + width/2), ValueY: round1(valueY),
			Label: d.Label, Value: format(d.Value), Fill: fill,
		})
	}
	return out
}

// PieDatum is one labelled share; values need not sum to anything in
// particular.
type PieDatum struct {
	Label string
	Value float64
}

// PieChart renders shares of a whole.
type PieChart struct {
	Title string
	Data  []PieDatum
}

// Slice is one computed pie wedge. Full is set when a single wedge covers
// the whole circle, which an SVG arc cannot draw.
type Slice struct {
	Path    string
	Full    bool
	Fill    string
	Label   string
	Percent string
}

// PieLayout is what the pie_chart template draws.
type PieLayout struct {
	Title          string
	Size           float64
	CX, CY, Radius float64
	Slices         []Slice
}

// Layout computes wedge paths clockwise from twelve o'clock. Non-positive
// values are skipped.
func (c PieChart) Layout() PieLayout {
	size := float64(2*pieRadius + 2*chartPadding)
	out := PieLayout{Title: c.Title, Size: size, CX: size / 2, CY: size / 2, Radius: pieRadius}

	total := 0.0
	for _, d := range c.Data {
		if d.Value > 0 {
			total += d.Value
		}
	}
	if total == 0 {
		return out
	}

	angle := 0.0
	for i, d := range c.Data {
		if d.Value <= 0 {
			continue
		}
		frac := d.Value / total
		s := Slice{Fill: palette[i%len(palette)], Label: d.Label, Percent: Percent(frac)}
		if frac >= 1 {
			s.Full = true
			out.Slices = append(out.Slices, s)
			continue
		}
		next := angle + frac*2*math.Pi
		x0, y0 := out.point(angle)
		x1, y1 := out.point(next)
		large := 0
		if frac > 0.5 {
			large = 1
		}
		s.Path = fmt.Sprintf("M %.2f %.2f L %.2f %.2f A %.2f %.2f 0 %d 1 %.2f %.2f Z",
			out.CX, out.CY, x0, y0, out.Radius, out.Radius, large, x1, y1)
		out.Slices = append(out.Slices, s)
		angle = next
	}
	return out
}

func (l PieLayout) point(angle float64) (float64, float64) {
	return l.CX + l.Radius*math.Sin(angle), l.CY - l.Radius*math.Cos(angle)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
