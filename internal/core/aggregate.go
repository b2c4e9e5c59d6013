package core

import (
	"hash/fnv"
	"sort"
	"time"
)

// The aggregation functions in this file are pure: they take the full
// normalized transaction set delivered by a snapshot and recompute every
// derived view from scratch. Nothing here keeps state between calls, so a
// later snapshot that removes records cannot leave stale residue behind.
// All monetary outputs are unrounded; rounding belongs to the display
// boundary (FormatAmount).

// Bucket selects the time partition for the running-balance series.
type Bucket int

const (
	BucketDay Bucket = iota
	BucketMonth
)

// TodayLabel marks the synthetic closing point of a balance series.
const TodayLabel = "Today"

// NoTopCategory is the sentinel name reported when no expense transactions
// exist. Callers must check for it before formatting the value as currency.
const NoTopCategory = "N/A"

type (
	// BalancePoint is one point of the running-balance chart.
	BalancePoint struct {
		Label   string  `json:"label"`
		Balance float64 `json:"balance"`
	}

	// MonthlyBucket carries the income and expense totals of one calendar
	// month. Expense is reported as a positive magnitude.
	MonthlyBucket struct {
		Label   string  `json:"month"`
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
	}

	// CategorySlice is one entry of the category expense breakdown.
	CategorySlice struct {
		Name  string  `json:"name"`
		Total float64 `json:"total"`
		Color string  `json:"color"`
	}

	// MetricsSummary bundles the headline analytics numbers.
	MetricsSummary struct {
		TopCategory       CategorySlice `json:"topCategory"`
		YTDIncome         float64       `json:"ytdIncome"`
		YTDExpense        float64       `json:"ytdExpense"`
		AvgMonthlyIncome  float64       `json:"avgMonthlyIncome"`
		AvgMonthlyExpense float64       `json:"avgMonthlyExpense"`
		SavingsRate       float64       `json:"savingsRatePercent"`
		TotalTransactions int           `json:"totalTransactions"`
	}
)

// Window selects the month range of a rollup. The two supported policies are
// explicit modes, chosen by the consuming view, never inferred.
type Window struct {
	trailing bool
	months   int
}

// CalendarYearWindow covers January of the current year through the current
// month.
func CalendarYearWindow() Window {
	return Window{}
}

// TrailingWindow covers the current month and the months-1 before it.
// A non-positive count degrades to the current month alone.
func TrailingWindow(months int) Window {
	if months < 1 {
		months = 1
	}
	return Window{trailing: true, months: months}
}

// span returns the first month of the window and the number of months.
func (w Window) span(now time.Time) (time.Time, int) {
	if w.trailing {
		start := monthStart(now).AddDate(0, -(w.months - 1), 0)
		return start, w.months
	}
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), int(now.Month())
}

// BalanceSeries computes the running-balance chart: transactions sorted
// ascending by occurrence time, a cumulative sum collapsed to one point per
// bucket (carrying the balance as of the bucket's last transaction), and a
// synthetic closing point labeled "Today". An empty set yields a single zero
// point so consumers never see an empty series.
func BalanceSeries(txs []Transaction, bucket Bucket, now time.Time) []BalancePoint {
	if len(txs) == 0 {
		return []BalancePoint{{Label: TodayLabel, Balance: 0}}
	}

	ordered := SortedByOccurredAsc(txs)

	var (
		points  []BalancePoint
		running float64
	)
	for _, t := range ordered {
		running += t.Amount
		label := bucketLabel(t.OccurredAt, bucket)
		if n := len(points); n > 0 && points[n-1].Label == label {
			points[n-1].Balance = running
			continue
		}
		points = append(points, BalancePoint{Label: label, Balance: running})
	}

	return append(points, BalancePoint{Label: TodayLabel, Balance: running})
}

// MonthlyRollup partitions transactions into calendar-month buckets inside
// the window. Months without activity still appear as zero buckets, so the
// chart has no gaps.
func MonthlyRollup(txs []Transaction, w Window, now time.Time) []MonthlyBucket {
	start, count := w.span(now)

	buckets := make([]MonthlyBucket, count)
	index := make(map[string]int, count)
	for i := 0; i < count; i++ {
		m := start.AddDate(0, i, 0)
		key := m.Format("2006-01")
		buckets[i] = MonthlyBucket{Label: m.Format("Jan 2006")}
		index[key] = i
	}

	for _, t := range txs {
		i, ok := index[t.OccurredAt.Format("2006-01")]
		if !ok {
			continue
		}
		switch {
		case t.Amount > 0:
			buckets[i].Income += t.Amount
		case t.Amount < 0:
			buckets[i].Expense += -t.Amount
		}
	}

	return buckets
}

// CategoryBreakdown groups expense transactions by category, sums absolute
// amounts, sorts descending, and truncates to the top n entries. Colors are
// assigned per category name, stable across calls and sessions.
func CategoryBreakdown(txs []Transaction, topN int) []CategorySlice {
	slices := categoryTotals(txs)
	if topN > 0 && len(slices) > topN {
		slices = slices[:topN]
	}
	return slices
}

// TopCategory returns the single largest expense category over the
// untruncated breakdown, or the NoTopCategory sentinel when no expense
// transactions exist.
func TopCategory(txs []Transaction) CategorySlice {
	slices := categoryTotals(txs)
	if len(slices) == 0 {
		return CategorySlice{Name: NoTopCategory}
	}
	return slices[0]
}

// categoryTotals is the untruncated, descending category expense breakdown.
// Ties break by name so the ordering is deterministic.
func categoryTotals(txs []Transaction) []CategorySlice {
	totals := make(map[string]float64)
	for _, t := range txs {
		if t.IsExpense() {
			totals[t.Category] += -t.Amount
		}
	}

	slices := make([]CategorySlice, 0, len(totals))
	for name, total := range totals {
		slices = append(slices, CategorySlice{Name: name, Total: total, Color: CategoryColor(name)})
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Total != slices[j].Total {
			return slices[i].Total > slices[j].Total
		}
		return slices[i].Name < slices[j].Name
	})
	return slices
}

// Summarize derives the headline metrics from the full transaction set.
// Year-to-date covers the start of the current calendar year through now.
func Summarize(txs []Transaction, now time.Time) MetricsSummary {
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	var (
		income, expense float64
		activeMonths    = make(map[time.Month]bool)
	)
	for _, t := range txs {
		if t.OccurredAt.Before(yearStart) || t.OccurredAt.After(now) {
			continue
		}
		activeMonths[t.OccurredAt.Month()] = true
		switch {
		case t.Amount > 0:
			income += t.Amount
		case t.Amount < 0:
			expense += -t.Amount
		}
	}

	// Divisor floored at one so a quiet January cannot divide by zero.
	months := len(activeMonths)
	if months < 1 {
		months = 1
	}

	var savingsRate float64
	if income > 0 {
		savingsRate = (income - expense) / income * 100
	}

	return MetricsSummary{
		TopCategory:       TopCategory(txs),
		YTDIncome:         income,
		YTDExpense:        expense,
		AvgMonthlyIncome:  income / float64(months),
		AvgMonthlyExpense: expense / float64(months),
		SavingsRate:       savingsRate,
		TotalTransactions: len(txs),
	}
}

// MonthTotals sums income and expense for the calendar month containing now.
// Expense is a positive magnitude.
func MonthTotals(txs []Transaction, now time.Time) (income, expense float64) {
	for _, t := range txs {
		if t.OccurredAt.Year() != now.Year() || t.OccurredAt.Month() != now.Month() {
			continue
		}
		switch {
		case t.Amount > 0:
			income += t.Amount
		case t.Amount < 0:
			expense += -t.Amount
		}
	}
	return income, expense
}

// Balance is the sum of all transaction amounts.
func Balance(txs []Transaction) float64 {
	var total float64
	for _, t := range txs {
		total += t.Amount
	}
	return total
}

// SortedByOccurredAsc returns a copy sorted ascending by occurrence time.
// The sort is stable so same-instant records keep their delivery order.
func SortedByOccurredAsc(txs []Transaction) []Transaction {
	ordered := append([]Transaction(nil), txs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
	})
	return ordered
}

// SortedByOccurredDesc returns a copy sorted newest first.
func SortedByOccurredDesc(txs []Transaction) []Transaction {
	ordered := append([]Transaction(nil), txs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[j].OccurredAt.Before(ordered[i].OccurredAt)
	})
	return ordered
}

// categoryPalette is the fixed chart palette. Assignment is by stable hash
// of the category name, so the same category keeps its color across renders
// and sessions.
var categoryPalette = []string{
	"#10b981",
	"#3b82f6",
	"#f59e0b",
	"#ef4444",
	"#8b5cf6",
	"#14b8a6",
	"#f97316",
	"#ec4899",
}

// CategoryColor returns the palette color assigned to a category name.
func CategoryColor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return categoryPalette[h.Sum32()%uint32(len(categoryPalette))]
}

func bucketLabel(ts time.Time, bucket Bucket) string {
	if bucket == BucketMonth {
		return ts.Format("Jan 2006")
	}
	return ts.Format("Jan 2")
}

func monthStart(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, ts.Location())
}
