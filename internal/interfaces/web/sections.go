package web

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/JohanRGustafsson/valuation-model/internal/application/session"
	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
)

// pageContext is what every page section is built from: the evaluated
// dashboard, the inline messages to show and the raw values of the last
// submission, so a rejected entry stays visible next to its message.
type pageContext struct {
	dash   *appvaluation.Dashboard
	errors session.FieldErrors
	raw    url.Values
	notes  notes
}

func (c *pageContext) form() session.Form { return c.dash.Form }

func (c *pageContext) value(field string) string {
	if c.errors.Field(field) != "" {
		if vals, ok := c.raw[field]; ok && len(vals) > 0 {
			return vals[len(vals)-1]
		}
	}
	v, _ := c.dash.Form.Get(field)
	return v
}

func (c *pageContext) number(field, label, min, max, step string) NumberInput {
	return NumberInput{
		Name: field, Label: label, Value: c.value(field),
		Min: min, Max: max, Step: step, Error: c.errors.Field(field),
	}
}

func (c *pageContext) slider(field, label, min, max, step string) Slider {
	return Slider{
		Name: field, Label: label, Value: c.value(field),
		Min: min, Max: max, Step: step, Suffix: "%", Error: c.errors.Field(field),
	}
}

func (c *pageContext) toggle(field, label, help string) Toggle {
	v, _ := c.dash.Form.Get(field)
	checked, _ := strconv.ParseBool(v)
	return Toggle{Name: field, Label: label, Checked: checked, Help: help}
}

func (c *pageContext) phaseSelect(field, label string, phases []domain.Phase) Select {
	current, _ := c.dash.Form.Get(field)
	s := Select{Name: field, Label: label, Error: c.errors.Field(field)}
	for _, p := range phases {
		s.Options = append(s.Options, SelectOption{Value: p.String(), Label: p.Label(), Selected: p.String() == current})
	}
	return s
}

func (c *pageContext) rankSelect(field, label string) Select {
	current, _ := c.dash.Form.Get(field)
	sched := c.dash.Schedule
	ranks := sched.Ranks()
	if n, err := strconv.Atoi(current); err == nil && n > ranks {
		ranks = n
	}
	s := Select{Name: field, Label: label, Error: c.errors.Field(field)}
	for rank := 1; rank <= ranks; rank++ {
		v := strconv.Itoa(rank)
		factor, _ := sched.Factor(rank)
		s.Options = append(s.Options, SelectOption{
			Value:    v,
			Label:    fmt.Sprintf("%s (%s of value)", sched.RankLabel(rank), Percent(factor)),
			Selected: v == current,
		})
	}
	return s
}

// screenError is the message for a screen whose inputs are fine field by
// field but could not be evaluated together.
func (c *pageContext) screenError(screen string) string {
	return c.errors.Field(screen)
}

// ─────────────────────────────────────────────────────────────────────────────
// NPV Calculator
// ─────────────────────────────────────────────────────────────────────────────

type phaseRow struct {
	Label        string
	Probability  Slider
	Cost         NumberInput
	TimeToMarket NumberInput
}

type npvPage struct {
	LaunchValue     NumberInput
	OrderOfEntry    Select
	DiscountRate    Slider
	IncludeRDCosts  Toggle
	ShowFormulas    Toggle
	ShowAssumptions Toggle
	Phases          []phaseRow

	Error       string
	Cards       []MetricCard
	Results     *Table
	Chart       *BarLayout
	Formulas    *Note
	Assumptions *Note
}

func buildNPVPage(c *pageContext) npvPage {
	f := c.form()
	p := npvPage{
		LaunchValue:     c.number("launch_value", "Launch Value ($M)", "0", "", "10"),
		OrderOfEntry:    c.rankSelect("order_of_entry", "Order of Entry"),
		DiscountRate:    c.slider("discount_rate", "Discount Rate", "0", "50", "0.5"),
		IncludeRDCosts:  c.toggle("include_rd_costs", "Include R&D costs", "Subtract remaining development spend from each phase value"),
		ShowFormulas:    c.toggle("show_formulas", "Show formulas", ""),
		ShowAssumptions: c.toggle("show_assumptions", "Show assumptions", ""),
		Error:           c.screenError("npv"),
	}
	for _, ph := range domain.DevelopmentPhases() {
		name := ph.String()
		p.Phases = append(p.Phases, phaseRow{
			Label:        ph.Label(),
			Probability:  c.slider("probability_"+name, "Success probability", "0", "100", "1"),
			Cost:         c.number("cost_"+name, "R&D cost ($M)", "0", "", "1"),
			TimeToMarket: c.number("time_to_market_"+name, "Years to market", "0", "30", "0.5"),
		})
	}

	if res := c.dash.NPV; res != nil {
		table := Table{Headers: []string{"Phase", "Time to Market", "Cumulative Probability", "Risk-adjusted Value", "R&D Costs", "NPV"}}
		var chart BarChart
		chart.Title = "NPV by development phase"
		for _, pv := range res.Phases {
			table.Rows = append(table.Rows, []string{
				pv.Phase.Label(), Years(pv.Periods), Percent(pv.CumulativeProbability),
				Money(pv.RiskAdjustedValue), Money(pv.DiscountedCosts), Money(pv.NPV),
			})
			chart.Data = append(chart.Data, BarDatum{Label: pv.Phase.Label(), Value: pv.NPV})
		}
		layout := chart.Layout()
		p.Results, p.Chart = &table, &layout

		first, _ := res.Valuation(domain.Preclinical)
		last, _ := res.Valuation(domain.Launched)
		p.Cards = []MetricCard{
			{Label: "NPV at Preclinical", Value: Money(first.NPV), Tone: toneOf(first.NPV)},
			{Label: "NPV at Launch", Value: Money(last.NPV), Tone: toneOf(last.NPV)},
			{Label: "Value created by reaching launch", Value: Money(last.NPV - first.NPV)},
			{Label: "Order-of-entry factor", Value: Percent(first.OrderFactor)},
		}
	}
	if f.ShowFormulas {
		n := c.notes.note("npv_formulas", "NPV formulas", true)
		p.Formulas = &n
	}
	if f.ShowAssumptions {
		n := c.notes.note("npv_assumptions", "Assumptions", true)
		p.Assumptions = &n
	}
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Deal Analysis
// ─────────────────────────────────────────────────────────────────────────────

type milestoneRow struct {
	Label  string
	Amount NumberInput
	Years  NumberInput
}

type dealPage struct {
	Stage        Select
	DealValue    NumberInput
	DesiredShare NumberInput
	Royalty      NumberInput
	Milestones   []milestoneRow

	Error      string
	Cards      []MetricCard
	Assessment *MetricCard
	Breakdown  *Table
	Ownership  *PieLayout
	Note       Note
}

func buildDealPage(c *pageContext) dealPage {
	p := dealPage{
		Stage:        c.phaseSelect("deal_stage", "Deal Stage", domain.Phases()),
		DealValue:    c.number("deal_value", "Deal Value ($M)", "0", "", "0.1"),
		DesiredShare: c.number("desired_share", "Partner's Desired Share (%)", "0", "100", "1"),
		Royalty:      c.number("royalty_rate", "Royalty Rate (%)", "0", "100", "0.5"),
		Error:        c.screenError("deal"),
		Note:         c.notes.note("deal", "Deal calculations", false),
	}
	for i := 0; i < session.MilestoneSlots; i++ {
		prefix := fmt.Sprintf("milestone_%d_", i+1)
		p.Milestones = append(p.Milestones, milestoneRow{
			Label:  fmt.Sprintf("Milestone %d", i+1),
			Amount: c.number(prefix+"amount", "Amount ($M)", "0", "", "1"),
			Years:  c.number(prefix+"years", "Paid in (years)", "0", "30", "0.5"),
		})
	}
	if c.dash.NPV == nil && p.Error == "" {
		p.Error = "Fix the NPV Calculator inputs to value this deal."
	}

	resp := c.dash.Deal
	if resp == nil {
		return p
	}
	d := resp.Deal
	p.Cards = []MetricCard{
		{Label: "Asset Value at " + d.Stage.Label(), Value: Money(d.StageValue)},
		{Label: "Value per 1% Ownership", Value: MoneyPrecise(d.ValuePerPercent)},
		{Label: "Total Deal Value", Value: Money(d.TotalDealValue)},
		{Label: "Partner Share", Value: d.Split.Licensee.StringFixed(1) + "%"},
		{Label: "Company Share", Value: d.Split.Licensor.StringFixed(1) + "%"},
	}
	if resp.RequiredDealValue != nil && resp.DesiredSharePct != nil {
		p.Cards = append(p.Cards, MetricCard{
			Label: fmt.Sprintf("Required Deal Value for %s%%", formatFloat(*resp.DesiredSharePct)),
			Value: Money(*resp.RequiredDealValue),
		})
	}

	tone := TonePositive
	if d.Fairness != domain.FairValue {
		tone = ToneWarning
	}
	p.Assessment = &MetricCard{
		Label: "Deal Assessment",
		Value: d.Fairness.Label(),
		Delta: Percent(d.FairnessRatio) + " of asset value",
		Tone:  tone,
	}

	table := Table{Headers: []string{"Component", "Present Value"}}
	table.Rows = append(table.Rows, []string{"Upfront", Money(d.Upfront)})
	for _, m := range d.Milestones {
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("%s (%s, year %s)", m.Label, Money(m.Amount), formatFloat(m.Years)),
			Money(m.PresentValue),
		})
	}
	table.Rows = append(table.Rows,
		[]string{"Royalties", Money(d.RoyaltyValue)},
		[]string{"Total", Money(d.TotalDealValue)},
	)
	p.Breakdown = &table

	licensee, _ := d.Split.Licensee.Float64()
	licensor, _ := d.Split.Licensor.Float64()
	pie := PieChart{
		Title: "Ownership Structure",
		Data:  []PieDatum{{Label: "Partner", Value: licensee}, {Label: "Company", Value: licensor}},
	}.Layout()
	p.Ownership = &pie
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Strategic Decision
// ─────────────────────────────────────────────────────────────────────────────

type strategyPage struct {
	Stage      Select
	OutLicense Slider

	Error          string
	Cards          []MetricCard
	Comparison     *Table
	Chart          *BarLayout
	Recommendation *MetricCard
	Note           Note
}

func buildStrategyPage(c *pageContext) strategyPage {
	p := strategyPage{
		Stage:      c.phaseSelect("strategy_stage", "Current Stage", domain.Phases()),
		OutLicense: c.slider("out_license_pct", "Share Out-Licensed", "0", "100", "1"),
		Error:      c.screenError("strategy"),
		Note:       c.notes.note("strategy", "How the options are valued", false),
	}
	if c.dash.NPV == nil && p.Error == "" {
		p.Error = "Fix the NPV Calculator inputs to compare options."
	}
	dec := c.dash.Strategy
	if dec == nil {
		return p
	}

	next := "None"
	if dec.NextPhase != nil {
		next = dec.NextPhase.Label()
	}
	p.Cards = []MetricCard{
		{Label: "Value at " + dec.Stage.Label(), Value: Money(dec.CurrentValue)},
		{Label: "Value at Next Phase (" + next + ")", Value: Money(dec.NextPhaseValue)},
		{Label: "Probability of Advancing", Value: Percent(dec.SuccessProbability)},
	}
	p.Comparison = &Table{
		Headers: []string{"Option", "Value"},
		Rows: [][]string{
			{"Continue Development", Money(dec.ContinueValue)},
			{fmt.Sprintf("Out-License Now: deal value (%s%%)", formatFloat(dec.OutLicensePercent)), Money(dec.DealValue)},
			{"Out-License Now: retained value", Money(dec.RetainedValue)},
			{"Out-License Now: total", Money(dec.OutLicenseNowValue)},
			{"Difference", Money(dec.ValueDifference)},
		},
	}
	chart := BarChart{
		Title: "Strategic options",
		Data: []BarDatum{
			{Label: "Continue Development", Value: dec.ContinueValue},
			{Label: "Out-License Now", Value: dec.OutLicenseNowValue},
		},
	}.Layout()
	p.Chart = &chart

	tone := ToneNeutral
	switch dec.Recommendation {
	case domain.ContinueDevelopment:
		tone = TonePositive
	case domain.OutLicenseNow:
		tone = ToneWarning
	}
	p.Recommendation = &MetricCard{
		Label: "Recommendation",
		Value: string(dec.Recommendation),
		Delta: Money(dec.ValueDifference) + " difference",
		Tone:  tone,
	}
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Launch Price
// ─────────────────────────────────────────────────────────────────────────────

type launchPricePage struct {
	MarketValue       NumberInput
	OrderOfEntry      Select
	EstimatedPatients NumberInput
	DiagnosedPatients NumberInput
	TreatedPatients   NumberInput
	Adoption          Slider
	Elasticity        NumberInput

	Error       string
	Penetration []MetricCard
	Prices      []MetricCard
	Chart       *BarLayout
	Note        Note
}

func buildLaunchPricePage(c *pageContext) launchPricePage {
	p := launchPricePage{
		MarketValue:       c.number("market_value", "Market Value ($M)", "0", "", "10"),
		OrderOfEntry:      c.rankSelect("launch_order_of_entry", "Order of Entry"),
		EstimatedPatients: c.number("estimated_patients", "Estimated Patients", "1", "", "1000"),
		DiagnosedPatients: c.number("diagnosed_patients", "Diagnosed Patients", "0", "", "1000"),
		TreatedPatients:   c.number("treated_patients", "Treated Patients", "0", "", "1000"),
		Adoption:          c.slider("adoption_rate", "Adoption Rate", "0", "100", "1"),
		Elasticity:        c.number("elasticity", "Price Elasticity", "0.1", "10", "0.1"),
		Error:             c.screenError("launch_price"),
		Note:              c.notes.note("launch_price", "Pricing formulas", false),
	}

	if est := c.dash.Penetration; est != nil {
		p.Penetration = []MetricCard{
			{Label: "Treatment Rate", Value: Percent(est.TreatmentRate)},
			{Label: "Estimated Penetration", Value: Percent(est.Penetration)},
			{Label: "Patients Reached", Value: Count(est.EffectivePatients)},
		}
	}
	res := c.dash.LaunchPrice
	if res == nil {
		return p
	}
	p.Prices = []MetricCard{
		{Label: "Adjusted Market Value", Value: Money(res.AdjustedMarketValue), Delta: Percent(res.OrderFactor) + " order factor"},
		{Label: "Value-based Price", Value: Price(res.ValueBasedPrice)},
		{Label: "General Price", Value: Price(res.GeneralPrice)},
		{Label: "Adoption-based Price", Value: Price(res.AdoptionPrice), Delta: Count(res.AdoptionPatients) + " patients"},
		{Label: "Recommended Price", Value: Price(res.RecommendedPrice), Tone: TonePositive},
		{Label: "Projected Revenue", Value: Money(res.ProjectedRevenue), Delta: Percent(res.AchievedPenetration) + " penetration"},
	}
	chart := BarChart{
		Title:  "Price comparison",
		Format: Price,
		Data: []BarDatum{
			{Label: "Value-based", Value: res.ValueBasedPrice},
			{Label: "General", Value: res.GeneralPrice},
			{Label: "Adoption-based", Value: res.AdoptionPrice},
			{Label: "Recommended", Value: res.RecommendedPrice},
		},
	}.Layout()
	p.Chart = &chart
	return p
}

func toneOf(v float64) Tone {
	switch {
	case v > 0:
		return TonePositive
	case v < 0:
		return ToneNegative
	}
	return ToneNeutral
}
