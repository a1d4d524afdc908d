package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackzampolin/bankads/internal/ledger"
	"github.com/jackzampolin/bankads/internal/tableau"
)

// Outcome is what happened to one discovered creative.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeEmptyText      Outcome = "empty_text"
	OutcomeDownloadFailed Outcome = "download_failed"
	OutcomeClassifyFailed Outcome = "classify_failed"
)

// ItemResult is the outcome of one creative.
type ItemResult struct {
	AdvertiserID string
	Bank         string
	URL          string
	Path         string
	Outcome      Outcome
	Text         string
	Category     string
	Cached       bool
	Err          error
}

func (it ItemResult) ledgerItem() ledger.Item {
	li := ledger.Item{
		AdvertiserID: it.AdvertiserID,
		Bank:         it.Bank,
		URL:          it.URL,
		Path:         it.Path,
		Outcome:      string(it.Outcome),
		Category:     it.Category,
		Cached:       it.Cached,
	}
	if it.Err != nil {
		li.Error = it.Err.Error()
	}
	return li
}

// AdvertiserReport summarizes one advertiser.
type AdvertiserReport struct {
	ID           string
	Bank         string
	Discovered   int
	DiscoveryErr error
	Outcomes     map[Outcome]int
}

// Report describes a finished (or failed) run.
type Report struct {
	RunID       string
	Mode        Mode
	ReportDate  string
	StartedAt   time.Time
	Duration    time.Duration
	Advertisers []AdvertiserReport
	Items       []ItemResult
	Rows        int

	CSVPath       string
	AnalyticsPath string
	Datasource    *tableau.Datasource
	Message       string
}

// Count returns how many items ended with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

// DiscoveryFailures returns the advertisers whose discovery failed.
func (r *Report) DiscoveryFailures() []AdvertiserReport {
	var failed []AdvertiserReport
	for _, a := range r.Advertisers {
		if a.DiscoveryErr != nil {
			failed = append(failed, a)
		}
	}
	return failed
}

// String renders a short multi-line summary for terminals and logs.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s) for %s: %d rows in %s\n", r.RunID, r.Mode, r.ReportDate, r.Rows, r.Duration.Round(time.Millisecond))
	for _, a := range r.Advertisers {
		if a.DiscoveryErr != nil {
			fmt.Fprintf(&b, "  %s %s: discovery failed: %v\n", a.Bank, a.ID, a.DiscoveryErr)
			continue
		}
		outcomes := make([]string, 0, len(a.Outcomes))
		for o, n := range a.Outcomes {
			outcomes = append(outcomes, fmt.Sprintf("%s=%d", o, n))
		}
		sort.Strings(outcomes)
		fmt.Fprintf(&b, "  %s %s: %d creatives %s\n", a.Bank, a.ID, a.Discovered, strings.Join(outcomes, " "))
	}
	return strings.TrimRight(b.String(), "\n")
}
