package core

import (
	"math"
	"testing"
	"time"
)

func tx(amount float64, category string, occurred time.Time) Transaction {
	return Transaction{Amount: amount, Category: category, OccurredAt: occurred}
}

func day(month time.Month, d int) time.Time {
	return time.Date(2025, month, d, 0, 0, 0, 0, time.UTC)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBalanceSeriesEmptySet(t *testing.T) {
	points := BalanceSeries(nil, BucketDay, testNow)
	if len(points) != 1 {
		t.Fatalf("empty set must yield exactly one point, got %d", len(points))
	}
	if points[0].Label != TodayLabel || points[0].Balance != 0 {
		t.Fatalf("expected zero Today point, got %+v", points[0])
	}
}

func TestBalanceSeries(t *testing.T) {
	txs := []Transaction{
		// Deliberately out of order: the series must sort ascending itself.
		tx(-89.32, "Food", day(time.January, 4)),
		tx(5000, "Salary", day(time.January, 2)),
		tx(-15.99, "Entertainment", day(time.January, 4)),
		tx(1200, "Freelance", day(time.January, 10)),
	}

	points := BalanceSeries(txs, BucketDay, testNow)

	wantLabels := []string{"Jan 2", "Jan 4", "Jan 10", TodayLabel}
	if len(points) != len(wantLabels) {
		t.Fatalf("got %d points, want %d: %+v", len(points), len(wantLabels), points)
	}
	for i, want := range wantLabels {
		if points[i].Label != want {
			t.Fatalf("point %d label = %q, want %q", i, points[i].Label, want)
		}
	}

	// Two same-day transactions collapse to one point carrying the balance
	// as of the last one.
	if !almostEqual(points[1].Balance, 5000-89.32-15.99) {
		t.Fatalf("Jan 4 balance = %v", points[1].Balance)
	}

	// The closing point equals the sum of all amounts.
	total := Balance(txs)
	if !almostEqual(points[len(points)-1].Balance, total) {
		t.Fatalf("final balance = %v, want %v", points[len(points)-1].Balance, total)
	}
}

func TestBalanceSeriesMonthBuckets(t *testing.T) {
	txs := []Transaction{
		tx(100, "", day(time.January, 2)),
		tx(-30, "", day(time.January, 28)),
		tx(50, "", day(time.March, 5)),
	}
	points := BalanceSeries(txs, BucketMonth, testNow)
	wantLabels := []string{"Jan 2025", "Mar 2025", TodayLabel}
	if len(points) != 3 {
		t.Fatalf("got %d points: %+v", len(points), points)
	}
	for i, want := range wantLabels {
		if points[i].Label != want {
			t.Fatalf("point %d label = %q, want %q", i, points[i].Label, want)
		}
	}
	if !almostEqual(points[0].Balance, 70) {
		t.Fatalf("January balance = %v, want 70", points[0].Balance)
	}
}

func TestMonthlyRollupCalendarYear(t *testing.T) {
	txs := []Transaction{
		tx(5000, "Salary", day(time.January, 2)),
		tx(-89.32, "Food", day(time.January, 4)),
		tx(-45, "Transport", day(time.March, 20)),
		tx(900, "Freelance", day(time.December, 1)), // outside window (after now)
	}
	now := day(time.June, 15)

	buckets := MonthlyRollup(txs, CalendarYearWindow(), now)
	if len(buckets) != 6 {
		t.Fatalf("calendar-year window through June must have 6 buckets, got %d", len(buckets))
	}
	if buckets[0].Label != "Jan 2025" || buckets[5].Label != "Jun 2025" {
		t.Fatalf("unexpected bucket labels: %q .. %q", buckets[0].Label, buckets[5].Label)
	}
	if !almostEqual(buckets[0].Income, 5000) || !almostEqual(buckets[0].Expense, 89.32) {
		t.Fatalf("January bucket = %+v", buckets[0])
	}
	// Zero-activity months still appear.
	if buckets[1].Income != 0 || buckets[1].Expense != 0 {
		t.Fatalf("February bucket should be zero, got %+v", buckets[1])
	}
	if !almostEqual(buckets[2].Expense, 45) {
		t.Fatalf("March bucket = %+v", buckets[2])
	}
}

func TestMonthlyRollupTrailingWindow(t *testing.T) {
	now := day(time.June, 15)
	txs := []Transaction{
		tx(-10, "Food", day(time.January, 10)), // before window
		tx(-20, "Food", day(time.April, 10)),
		tx(300, "Salary", day(time.June, 1)),
	}

	buckets := MonthlyRollup(txs, TrailingWindow(3), now)
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(buckets))
	}
	if buckets[0].Label != "Apr 2025" || buckets[2].Label != "Jun 2025" {
		t.Fatalf("unexpected labels: %+v", buckets)
	}
	if !almostEqual(buckets[0].Expense, 20) || !almostEqual(buckets[2].Income, 300) {
		t.Fatalf("unexpected totals: %+v", buckets)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	txs := []Transaction{
		tx(-50, "Food", day(time.January, 1)),
		tx(-39.32, "Food", day(time.January, 2)),
		tx(-15.99, "Entertainment", day(time.January, 3)),
		tx(-200, "Rent", day(time.January, 4)),
		tx(-5, "Transport", day(time.January, 5)),
		tx(-3, "Coffee", day(time.January, 6)),
		tx(5000, "Salary", day(time.January, 7)), // income excluded
		tx(0, "Void", day(time.January, 8)),      // zero excluded
	}

	full := CategoryBreakdown(txs, 0)
	if len(full) != 5 {
		t.Fatalf("got %d slices, want 5: %+v", len(full), full)
	}
	if full[0].Name != "Rent" || full[1].Name != "Food" {
		t.Fatalf("descending order violated: %+v", full)
	}

	// Untruncated totals equal the sum of absolute expense amounts.
	var sliceSum, expenseSum float64
	for _, s := range full {
		sliceSum += s.Total
	}
	for _, txn := range txs {
		if txn.IsExpense() {
			expenseSum += -txn.Amount
		}
	}
	if !almostEqual(sliceSum, expenseSum) {
		t.Fatalf("slice sum %v != expense sum %v", sliceSum, expenseSum)
	}

	top3 := CategoryBreakdown(txs, 3)
	if len(top3) != 3 {
		t.Fatalf("top-3 returned %d slices", len(top3))
	}
	if top3[0] != full[0] || top3[2] != full[2] {
		t.Fatalf("truncation must preserve order: %+v", top3)
	}
}

func TestCategoryColorStable(t *testing.T) {
	first := CategoryColor("Food")
	for i := 0; i < 5; i++ {
		if CategoryColor("Food") != first {
			t.Fatalf("color for the same name must be stable")
		}
	}
	found := false
	for _, c := range categoryPalette {
		if c == first {
			found = true
		}
	}
	if !found {
		t.Fatalf("color %q not in palette", first)
	}
}

func TestSummarizeBasicRollup(t *testing.T) {
	txs := []Transaction{
		tx(5000, "Salary", day(time.January, 2)),
		tx(-89.32, "Food", day(time.January, 4)),
		tx(-15.99, "Entertainment", day(time.January, 4)),
	}
	now := day(time.June, 15)

	s := Summarize(txs, now)
	if !almostEqual(s.YTDIncome, 5000) {
		t.Fatalf("ytd income = %v", s.YTDIncome)
	}
	if !almostEqual(s.YTDExpense, 105.31) {
		t.Fatalf("ytd expense = %v", s.YTDExpense)
	}
	if s.TopCategory.Name != "Food" || !almostEqual(s.TopCategory.Total, 89.32) {
		t.Fatalf("top category = %+v", s.TopCategory)
	}
	wantRate := (5000 - 105.31) / 5000 * 100
	if !almostEqual(s.SavingsRate, wantRate) {
		t.Fatalf("savings rate = %v, want %v", s.SavingsRate, wantRate)
	}
	if s.TotalTransactions != 3 {
		t.Fatalf("total transactions = %d", s.TotalTransactions)
	}
	// One active month, so the averages equal the totals.
	if !almostEqual(s.AvgMonthlyIncome, 5000) || !almostEqual(s.AvgMonthlyExpense, 105.31) {
		t.Fatalf("averages = %v / %v", s.AvgMonthlyIncome, s.AvgMonthlyExpense)
	}
}

func TestSummarizeSavingsRateBoundaries(t *testing.T) {
	now := day(time.June, 15)

	cases := []struct {
		name string
		txs  []Transaction
		want float64
	}{
		{"no income", []Transaction{tx(-100, "Food", day(time.January, 1))}, 0},
		{"empty set", nil, 0},
		{"income equals expense", []Transaction{
			tx(500, "Salary", day(time.January, 1)),
			tx(-500, "Rent", day(time.January, 2)),
		}, 0},
		{"no expense", []Transaction{tx(500, "Salary", day(time.January, 1))}, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Summarize(tc.txs, now)
			if math.IsNaN(s.SavingsRate) || math.IsInf(s.SavingsRate, 0) {
				t.Fatalf("savings rate must be finite, got %v", s.SavingsRate)
			}
			if !almostEqual(s.SavingsRate, tc.want) {
				t.Fatalf("savings rate = %v, want %v", s.SavingsRate, tc.want)
			}
		})
	}
}

func TestSummarizeAveragesUseDistinctActiveMonths(t *testing.T) {
	now := day(time.June, 15)
	txs := []Transaction{
		tx(1000, "Salary", day(time.January, 5)),
		tx(1000, "Salary", day(time.January, 20)),
		tx(1000, "Salary", day(time.March, 5)),
		tx(-300, "Rent", day(time.March, 6)),
	}

	s := Summarize(txs, now)
	// Two distinct active months (January, March).
	if !almostEqual(s.AvgMonthlyIncome, 1500) {
		t.Fatalf("avg monthly income = %v, want 1500", s.AvgMonthlyIncome)
	}
	if !almostEqual(s.AvgMonthlyExpense, 150) {
		t.Fatalf("avg monthly expense = %v, want 150", s.AvgMonthlyExpense)
	}
}

func TestSummarizeNoExpensesSentinel(t *testing.T) {
	s := Summarize([]Transaction{tx(100, "Salary", day(time.January, 1))}, day(time.June, 15))
	if s.TopCategory.Name != NoTopCategory || s.TopCategory.Total != 0 {
		t.Fatalf("expected sentinel top category, got %+v", s.TopCategory)
	}
}

func TestSummarizeIgnoresOtherYears(t *testing.T) {
	txs := []Transaction{
		tx(100, "Salary", day(time.January, 1)),
		tx(999, "Salary", time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)),
	}
	s := Summarize(txs, day(time.June, 15))
	if !almostEqual(s.YTDIncome, 100) {
		t.Fatalf("ytd income = %v, want 100", s.YTDIncome)
	}
}

func TestAggregationIdempotent(t *testing.T) {
	txs := []Transaction{
		tx(5000, "Salary", day(time.January, 2)),
		tx(-89.32, "Food", day(time.January, 4)),
		tx(-15.99, "Entertainment", day(time.January, 4)),
	}
	now := day(time.June, 15)

	first := Summarize(txs, now)
	second := Summarize(txs, now)
	if first != second {
		t.Fatalf("summaries differ across identical inputs:\n%+v\n%+v", first, second)
	}

	b1 := BalanceSeries(txs, BucketDay, now)
	b2 := BalanceSeries(txs, BucketDay, now)
	if len(b1) != len(b2) {
		t.Fatalf("series lengths differ")
	}
	for i := range b1 {
		if b1[i] != b2[i] {
			t.Fatalf("series point %d differs: %+v vs %+v", i, b1[i], b2[i])
		}
	}
	// The input slice must be untouched (sorting works on a copy).
	if txs[0].Category != "Salary" || txs[0].OccurredAt != day(time.January, 2) {
		t.Fatalf("input slice mutated: %+v", txs[0])
	}
}

func TestMonthTotals(t *testing.T) {
	now := day(time.June, 15)
	txs := []Transaction{
		tx(2000, "Salary", day(time.June, 1)),
		tx(-120, "Food", day(time.June, 10)),
		tx(-999, "Food", day(time.May, 10)),
	}
	income, expense := MonthTotals(txs, now)
	if !almostEqual(income, 2000) || !almostEqual(expense, 120) {
		t.Fatalf("month totals = %v / %v", income, expense)
	}
}
