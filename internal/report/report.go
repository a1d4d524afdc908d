// Package report builds the category leaderboard message posted after a refresh.
package report

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/bankads/internal/export"
)

const otherCategory = "Other"

const headline = ":bar_chart: *Tableau Bank Ads – Data Refresh* :white_check_mark:"

// Leader is the bank with the most creatives in one category.
type Leader struct {
	Category string
	Bank     string
	Count    int
	Total    int
	Share    int // percent, rounded half away from zero
}

// Leaderboard computes, for each category in order, the leading bank and its share of
// the category. Rows with categories outside the list are ignored. Categories with no
// rows and the Other category are omitted. Ties go to the alphabetically first bank.
func Leaderboard(rows []export.Row, categories []string) []Leader {
	counts := make(map[string]map[string]int, len(categories))
	for _, r := range rows {
		typ := strings.TrimSpace(r.Type)
		if !slices.Contains(categories, typ) {
			continue
		}
		bank := strings.TrimSpace(r.Bank)
		if counts[typ] == nil {
			counts[typ] = make(map[string]int)
		}
		counts[typ][bank]++
	}

	var leaders []Leader
	for _, cat := range categories {
		if cat == otherCategory {
			continue
		}
		byBank := counts[cat]
		if len(byBank) == 0 {
			continue
		}
		banks := make([]string, 0, len(byBank))
		total := 0
		for bank, n := range byBank {
			banks = append(banks, bank)
			total += n
		}
		sort.Strings(banks)

		best := banks[0]
		for _, bank := range banks[1:] {
			if byBank[bank] > byBank[best] {
				best = bank
			}
		}
		leaders = append(leaders, Leader{
			Category: cat,
			Bank:     best,
			Count:    byBank[best],
			Total:    total,
			Share:    int(math.Round(float64(byBank[best]) * 100 / float64(total))),
		})
	}
	return leaders
}

// Summary renders the refresh message for rows: a header with the period, row and
// bank counts, followed by the leaderboard as a fixed-width code block.
func Summary(rows []export.Row, categories []string) string {
	var kept []export.Row
	banks := make(map[string]struct{})
	for _, r := range rows {
		if !slices.Contains(categories, strings.TrimSpace(r.Type)) {
			continue
		}
		kept = append(kept, r)
		banks[strings.TrimSpace(r.Bank)] = struct{}{}
	}

	period := ""
	if len(kept) > 0 {
		period = kept[0].Date
	}

	header := []string{
		headline,
		fmt.Sprintf("Period: %s | Rows: %d | Banks: %d", period, len(kept), len(banks)),
		"",
		"Category leaders (share of category)",
		"",
	}
	return strings.Join(header, "\n") + renderTable(Leaderboard(kept, categories))
}

func renderTable(leaders []Leader) string {
	// fmt pads by runes, so widths are measured in runes too.
	w1, w2 := len("Product"), len("Leader Bank")
	for _, l := range leaders {
		w1 = max(w1, utf8.RuneCountInString(l.Category))
		w2 = max(w2, utf8.RuneCountInString(l.Bank))
	}

	lines := []string{
		fmt.Sprintf("%-*s  %-*s  Share", w1, "Product", w2, "Leader Bank"),
		strings.Repeat("-", w1+2+w2+2+len("Share")),
	}
	for _, l := range leaders {
		lines = append(lines, fmt.Sprintf("%-*s  %-*s  %5s", w1, l.Category, w2, l.Bank, fmt.Sprintf("%d%%", l.Share)))
	}
	return "```\n" + strings.Join(lines, "\n") + "\n```"
}

// Fallback is the message sent when a refresh has no saved rows to summarize.
func Fallback(start, end string) string {
	return "📊 *Tableau Bank Ads – Data Refresh* ✅\n" +
		fmt.Sprintf("Period: %s → %s\n", start, end) +
		"Status: ✅ Published successfully"
}
