package web

import (
	"html/template"
	"strconv"
)

// Components carry display values only. Page sections fill them from a
// dashboard and the templates in components.html render them.

// NumberInput is a labelled numeric field.
type NumberInput struct {
	Name  string
	Label string
	Value string
	Min   string
	Max   string
	Step  string
	Help  string
	Error string
}

// Slider is a range control with its current value echoed beside it.
type Slider struct {
	Name   string
	Label  string
	Value  string
	Min    string
	Max    string
	Step   string
	Suffix string
	Error  string
}

// Toggle is a checkbox. A hidden "false" precedes it so unchecking posts a
// value.
type Toggle struct {
	Name    string
	Label   string
	Checked bool
	Help    string
}

// SelectOption is one entry of a Select.
type SelectOption struct {
	Value    string
	Label    string
	Selected bool
}

// Select is a dropdown.
type Select struct {
	Name    string
	Label   string
	Options []SelectOption
	Error   string
}

// Table is a plain header + rows grid. Rows are already formatted.
type Table struct {
	Caption string
	Headers []string
	Rows    [][]string
}

// Tone colours a MetricCard.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneWarning  Tone = "warning"
)

// MetricCard shows a single headline number.
type MetricCard struct {
	Label string
	Value string
	Delta string
	Tone  Tone
}

// Note is a titled block of rendered markdown, collapsed unless Open.
type Note struct {
	Title string
	Body  template.HTML
	Open  bool
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
