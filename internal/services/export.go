package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/carlinf/finance-tracker/internal/core"
)

// utf8BOM makes spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var exportHeader = []string{"Date", "Description", "Category", "Type", "Amount"}

// WriteTransactionsCSV streams transactions as a CSV document to w.
func WriteTransactionsCSV(w io.Writer, txs []core.Transaction) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		row := []string{
			tx.OccurredAt.Format("2006-01-02"),
			tx.Description,
			tx.Category,
			tx.Kind(),
			strconv.FormatFloat(tx.Amount, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names the download after the day it was generated.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("transactions-%s.csv", now.Format("2006-01-02"))
}
