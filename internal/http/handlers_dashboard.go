package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
)

type dashboardResponse struct {
	Balance          float64               `json:"balance"`
	BalanceFormatted string                `json:"balanceFormatted"`
	MonthIncome      float64               `json:"monthIncome"`
	MonthExpense     float64               `json:"monthExpense"`
	MonthIncomeFmt   string                `json:"monthIncomeFormatted"`
	MonthExpenseFmt  string                `json:"monthExpenseFormatted"`
	Currency         string                `json:"currency"`
	Series           []core.BalancePoint   `json:"series"`
	Recent           []transactionResponse `json:"recent"`
}

type summaryResponse struct {
	core.MetricsSummary
	TopCategoryFormatted string `json:"topCategoryFormatted"`
	YTDIncomeFormatted   string `json:"ytdIncomeFormatted"`
	YTDExpenseFormatted  string `json:"ytdExpenseFormatted"`
}

type analyticsResponse struct {
	Window    string               `json:"window"`
	Months    []core.MonthlyBucket `json:"months"`
	Breakdown []core.CategorySlice `json:"breakdown"`
	Summary   summaryResponse      `json:"summary"`
	Currency  string               `json:"currency"`
}

const recentLimit = 10

var (
	errInvalidWindow = errors.New("window must be 'year' or 'trailing'")
	errInvalidMonths = errors.New("months must be between 1 and 120")
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	key := owner + ":dashboard"

	if payload, ok := s.dashboardCache.Get(key); ok {
		writeJSON(w, http.StatusOK, payload)
		return
	}

	txs, err := s.loadTransactions(r.Context(), owner)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	currency := s.profiles.ResolveCurrency(r.Context(), owner)
	payload := s.buildDashboard(txs, currency, time.Now())

	s.dashboardCache.Set(key, payload)
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) buildDashboard(txs []core.Transaction, currency core.Currency, now time.Time) dashboardResponse {
	balance := core.Balance(txs)
	income, expense := core.MonthTotals(txs, now)

	recent := core.SortedByOccurredDesc(txs)
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	return dashboardResponse{
		Balance:          balance,
		BalanceFormatted: core.FormatAmount(balance, currency).WithSymbol,
		MonthIncome:      income,
		MonthExpense:     expense,
		MonthIncomeFmt:   core.FormatAmount(income, currency).WithSymbol,
		MonthExpenseFmt:  core.FormatAmount(expense, currency).WithSymbol,
		Currency:         string(currency),
		Series:           core.BalanceSeries(txs, core.BucketDay, now),
		Recent:           transactionResponses(recent),
	}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	window, months, err := parseWindow(r, s.trailingMonths)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	key := owner + ":analytics:" + window + ":" + strconv.Itoa(months)
	if payload, ok := s.analyticsCache.Get(key); ok {
		writeJSON(w, http.StatusOK, payload)
		return
	}

	txs, err := s.loadTransactions(r.Context(), owner)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	currency := s.profiles.ResolveCurrency(r.Context(), owner)
	payload := s.buildAnalytics(txs, window, months, currency, time.Now())

	s.analyticsCache.Set(key, payload)
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) buildAnalytics(txs []core.Transaction, window string, months int, currency core.Currency, now time.Time) analyticsResponse {
	var w core.Window
	if window == "trailing" {
		w = core.TrailingWindow(months)
	} else {
		w = core.CalendarYearWindow()
	}

	summary := core.Summarize(txs, now)

	// The sentinel category has no amount worth rendering.
	topFormatted := summary.TopCategory.Name
	if summary.TopCategory.Name != core.NoTopCategory {
		topFormatted = core.FormatAmount(summary.TopCategory.Total, currency).WithSymbol
	}

	return analyticsResponse{
		Window:    window,
		Months:    core.MonthlyRollup(txs, w, now),
		Breakdown: core.CategoryBreakdown(txs, s.topCategories),
		Summary: summaryResponse{
			MetricsSummary:       summary,
			TopCategoryFormatted: topFormatted,
			YTDIncomeFormatted:   core.FormatAmount(summary.YTDIncome, currency).WithSymbol,
			YTDExpenseFormatted:  core.FormatAmount(summary.YTDExpense, currency).WithSymbol,
		},
		Currency: string(currency),
	}
}

// parseWindow validates the window selector. The default is the calendar
// year; "trailing" takes an optional month count.
func parseWindow(r *http.Request, defaultMonths int) (string, int, error) {
	window := strings.TrimSpace(r.URL.Query().Get("window"))
	if window == "" {
		window = "year"
	}
	if window != "year" && window != "trailing" {
		return "", 0, errInvalidWindow
	}

	months := defaultMonths
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 120 {
			return "", 0, errInvalidMonths
		}
		months = n
	}
	return window, months, nil
}

// handleStream pushes the dashboard payload over Server-Sent Events,
// recomputed on every snapshot the store delivers.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Snapshots arrive on store goroutines; the channel serializes them
	// onto this handler's goroutine. A full buffer drops the older
	// snapshot since only the latest state matters.
	snapshots := make(chan []core.RawRecord, 1)
	deliver := func(records []core.RawRecord) {
		for {
			select {
			case snapshots <- records:
				return
			default:
				select {
				case <-snapshots:
				default:
				}
			}
		}
	}

	cancelTx, err := s.txSubscriber.Listen(r.Context(), owner, deliver)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	defer cancelTx()

	// Category changes also wake the stream so the client re-renders;
	// the payload is recomputed from a fresh transaction read.
	catEvents := make(chan struct{}, 1)
	cancelCats, err := s.catSubscriber.Listen(r.Context(), owner, func([]core.RawRecord) {
		select {
		case catEvents <- struct{}{}:
		default:
		}
	})
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	defer cancelCats()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	currency := s.profiles.ResolveCurrency(r.Context(), owner)
	s.logger.InfoContext(r.Context(), "Stream opened", log.FieldOwnerID, owner)

	push := func(txs []core.Transaction) bool {
		payload := s.buildDashboard(txs, currency, time.Now())
		data, err := json.Marshal(payload)
		if err != nil {
			return true
		}
		if _, err := w.Write([]byte("event: dashboard\ndata: " + string(data) + "\n\n")); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.InfoContext(r.Context(), "Stream closed", log.FieldOwnerID, owner)
			return
		case records := <-snapshots:
			if !push(core.NormalizeTransactions(records, time.Now())) {
				return
			}
		case <-catEvents:
			txs, err := s.loadTransactions(r.Context(), owner)
			if err != nil {
				continue
			}
			if !push(txs) {
				return
			}
		}
	}
}
