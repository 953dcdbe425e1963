package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/oracle-monitor/pkg/reconciler"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

// MaxEntries is the maximum number of member lines rendered per section
const MaxEntries = 10

// Colors keyed by whether the report carries issues
const (
	ColorOK     = 0x00ff00
	ColorIssues = 0xff6b6b
)

// Section names, in report order
const (
	SectionRegressed  = "❌ Validators with Increased Misses"
	SectionLowBalance = "💸 Low Feeder Balance"
	SectionNoFeeder   = "⚠️ No Feeder Configured"
	SectionStable     = "✅ Stable Validators"
	SectionRates      = "💱 Exchange Rates"
	SectionPower      = "⚡ Vote Power"
	SectionSummary    = "📊 Summary"
)

const defaultTitle = "🔍 Symphony Oracle Validator Monitor Report"

// Section is one named block of a report
type Section struct {
	Name   string   `json:"name"`
	Lines  []string `json:"lines"`
	Total  int      `json:"total"` // member count before capping
	Inline bool     `json:"inline"`
}

// Omitted returns the number of members not rendered as lines
func (s Section) Omitted() int {
	if n := s.Total - len(s.Lines); n > 0 {
		return n
	}
	return 0
}

// Text renders the section body
func (s Section) Text() string {
	text := strings.Join(s.Lines, "\n")
	if n := s.Omitted(); n > 0 {
		text += fmt.Sprintf("\n… and %d more (%d total)", n, s.Total)
	}
	if text == "" {
		return "None"
	}
	return text
}

// Report is a transport-agnostic rendering of a reconciliation result
type Report struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	HasIssues   bool      `json:"has_issues"`
	Color       int       `json:"color"`
	GeneratedAt time.Time `json:"generated_at"`
	CapturedAt  time.Time `json:"captured_at"`
	Sections    []Section `json:"sections"`
}

// Section returns the named section, if present
func (r *Report) Section(name string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Options tweak report rendering
type Options struct {
	Title               string
	LowBalanceThreshold uint64
	Now                 func() time.Time
}

// Build renders a reconciled result. Results tagged NoBaseline must not be
// passed here; the caller suppresses them.
func Build(res *reconciler.Result, rates types.ExchangeRateTable, opts Options) *Report {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	title := opts.Title
	if title == "" {
		title = defaultTitle
	}

	r := &Report{
		ID:          uuid.New().String(),
		Title:       title,
		HasIssues:   res.HasIssues(),
		Color:       ColorOK,
		GeneratedAt: now().UTC(),
		CapturedAt:  res.CapturedAt,
	}
	if r.HasIssues {
		r.Color = ColorIssues
	}

	if len(res.Regressed) > 0 {
		r.Sections = append(r.Sections, regressedSection(res.Regressed))
	}
	if len(res.LowBalance) > 0 {
		r.Sections = append(r.Sections, lowBalanceSection(res.LowBalance, opts.LowBalanceThreshold))
	}
	if len(res.NoFeeder) > 0 {
		r.Sections = append(r.Sections, noFeederSection(res.NoFeeder))
	}
	r.Sections = append(r.Sections, stableSection(res))
	if len(rates) > 0 {
		r.Sections = append(r.Sections, ratesSection(rates))
	}
	r.Sections = append(r.Sections, powerSection(res.Power))
	r.Sections = append(r.Sections, summarySection(res))

	return r
}

func regressedSection(items []reconciler.Regressed) Section {
	s := Section{Name: SectionRegressed, Total: len(items)}
	for _, v := range capped(items) {
		s.Lines = append(s.Lines, fmt.Sprintf("• **%s** (%s)\n  Misses: %s → %s (+%s)",
			v.Moniker, FormatMLD(v.VotingPower),
			FormatCount(v.Previous), FormatCount(v.Current), FormatCount(v.Delta)))
	}
	return s
}

func lowBalanceSection(items []reconciler.LowBalance, threshold uint64) Section {
	s := Section{Name: SectionLowBalance, Total: len(items)}
	for _, v := range capped(items) {
		s.Lines = append(s.Lines, fmt.Sprintf("• **%s**: %s (< %s)\n  Feeder: `%s`",
			v.Moniker, FormatMLD(v.Balance), FormatMLD(threshold), v.FeederAddress))
	}
	return s
}

func noFeederSection(items []reconciler.NoFeeder) Section {
	s := Section{Name: SectionNoFeeder, Total: len(items)}
	for _, v := range capped(items) {
		s.Lines = append(s.Lines, fmt.Sprintf("• **%s** (%s)", v.Moniker, FormatMLD(v.VotingPower)))
	}
	return s
}

func stableSection(res *reconciler.Result) Section {
	line := fmt.Sprintf("%d validators with no new misses", len(res.Stable))
	if !res.HasIssues() {
		line = fmt.Sprintf("All %d monitored validators are stable", len(res.Stable))
	}
	return Section{Name: SectionStable, Lines: []string{line}, Total: 1}
}

func ratesSection(rates types.ExchangeRateTable) Section {
	denoms := rates.SortedDenoms()
	s := Section{Name: SectionRates, Total: len(denoms), Inline: true}
	for _, denom := range capped(denoms) {
		s.Lines = append(s.Lines, fmt.Sprintf("%s: %s", denom, rates[denom].StringFixed(4)))
	}
	return s
}

func powerSection(p reconciler.PowerStats) Section {
	lines := []string{
		fmt.Sprintf("Regressed: %s (%s)", FormatPct(p.Regressed.Pct), FormatMLD(p.Regressed.Sum)),
		fmt.Sprintf("Stable: %s (%s)", FormatPct(p.Stable.Pct), FormatMLD(p.Stable.Sum)),
		fmt.Sprintf("No feeder: %s (%s)", FormatPct(p.NoFeeder.Pct), FormatMLD(p.NoFeeder.Sum)),
		fmt.Sprintf("Total: %s", FormatMLD(p.Total)),
	}
	return Section{Name: SectionPower, Lines: lines, Total: len(lines), Inline: true}
}

func summarySection(res *reconciler.Result) Section {
	lines := []string{
		fmt.Sprintf("Total Validators: %d", res.Validators),
		fmt.Sprintf("Monitored: %d", len(res.Regressed)+len(res.Stable)),
		fmt.Sprintf("Increased: %d | Stable: %d | Low balance: %d | No feeder: %d",
			len(res.Regressed), len(res.Stable), len(res.LowBalance), len(res.NoFeeder)),
	}
	if res.MissingMisses > 0 {
		lines = append(lines, fmt.Sprintf("Miss data unavailable: %d", res.MissingMisses))
	}
	if res.FeederUnknown > 0 {
		lines = append(lines, fmt.Sprintf("Feeder status unknown: %d", res.FeederUnknown))
	}
	if res.BalanceUnknown > 0 {
		lines = append(lines, fmt.Sprintf("Feeder balance unknown: %d", res.BalanceUnknown))
	}
	return Section{Name: SectionSummary, Lines: lines, Total: len(lines)}
}

func capped[T any](items []T) []T {
	if len(items) > MaxEntries {
		return items[:MaxEntries]
	}
	return items
}
