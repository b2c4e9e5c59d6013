package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// NormalizeTransaction turns a raw store document into a canonical
// Transaction. It is total: any input shape yields a usable record, with
// defaults filled in for absent or malformed fields. Legacy documents carry
// optional names, missing categories, and three different date encodings;
// none of that may leak past this boundary.
//
// Date resolution order: occurredAt/date field, then createdAt, then now.
// An unparseable value counts as absent and falls through to the next rule.
func NormalizeTransaction(raw RawRecord, now time.Time) Transaction {
	t := Transaction{
		ID:          stringField(raw, "id"),
		OwnerID:     firstStringField(raw, "ownerId", "userId"),
		Amount:      amountField(raw, "amount"),
		Category:    UncategorizedLabel,
		Description: UnnamedTransactionLabel,
		StoredType:  stringField(raw, "type"),
	}

	if c := firstStringField(raw, "category"); c != "" {
		t.Category = c
	}
	if d := firstStringField(raw, "description", "name"); d != "" {
		t.Description = d
	}

	created, _ := timeField(raw, "createdAt")
	updated, _ := timeField(raw, "updatedAt")
	t.CreatedAt = created
	t.UpdatedAt = updated

	if occurred, ok := recordTime(raw); ok {
		t.OccurredAt = occurred
	} else if !created.IsZero() {
		t.OccurredAt = created
	} else {
		t.OccurredAt = now
	}

	return t
}

// NormalizeTransactions normalizes a full snapshot in delivery order.
func NormalizeTransactions(raws []RawRecord, now time.Time) []Transaction {
	txs := make([]Transaction, 0, len(raws))
	for _, raw := range raws {
		txs = append(txs, NormalizeTransaction(raw, now))
	}
	return txs
}

// NormalizeCategory turns a raw category document into a canonical Category.
// Malformed legacy records get a placeholder name; a type outside the known
// enum is dropped, which makes the category match both transaction types.
func NormalizeCategory(raw RawRecord) Category {
	c := Category{
		ID:      stringField(raw, "id"),
		OwnerID: firstStringField(raw, "ownerId", "userId"),
		Name:    UnnamedCategoryLabel,
		Color:   stringField(raw, "color"),
	}
	if n := firstStringField(raw, "name"); n != "" {
		c.Name = n
	}
	if typ := strings.ToLower(stringField(raw, "type")); typ == TypeIncome || typ == TypeExpense {
		c.Type = typ
	}
	c.CreatedAt, _ = timeField(raw, "createdAt")
	c.UpdatedAt, _ = timeField(raw, "updatedAt")
	return c
}

// NormalizeCategories normalizes a full snapshot in delivery order.
func NormalizeCategories(raws []RawRecord) []Category {
	cats := make([]Category, 0, len(raws))
	for _, raw := range raws {
		cats = append(cats, NormalizeCategory(raw))
	}
	return cats
}

// NormalizeProfile turns a raw profile document into a UserProfile with the
// documented defaults: USD currency, notifications on.
func NormalizeProfile(ownerID string, raw RawRecord) UserProfile {
	p := UserProfile{
		OwnerID:            ownerID,
		Currency:           ParseCurrency(stringField(raw, "currency")),
		EmailNotifications: true,
	}
	if v, ok := raw["emailNotifications"].(bool); ok {
		p.EmailNotifications = v
	}
	p.CreatedAt, _ = timeField(raw, "createdAt")
	p.UpdatedAt, _ = timeField(raw, "updatedAt")
	return p
}

// RecordTime extracts the timestamp a raw transaction is attributed to,
// for client-side ordering of an unordered snapshot. Records without any
// usable timestamp report ok=false and are expected to sort as epoch.
func RecordTime(raw RawRecord) (time.Time, bool) {
	if ts, ok := recordTime(raw); ok {
		return ts, true
	}
	if created, ok := timeField(raw, "createdAt"); ok {
		return created, true
	}
	return time.Time{}, false
}

func recordTime(raw RawRecord) (time.Time, bool) {
	if ts, ok := timeField(raw, "occurredAt"); ok {
		return ts, true
	}
	return timeField(raw, "date")
}

func stringField(raw RawRecord, key string) string {
	if v, ok := raw[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstStringField(raw RawRecord, keys ...string) string {
	for _, key := range keys {
		if v := stringField(raw, key); v != "" {
			return v
		}
	}
	return ""
}

// amountField coerces the value under key to a number. Anything that cannot
// be coerced becomes 0, which keeps the record visible in raw listings while
// excluding it from income and expense totals.
func amountField(raw RawRecord, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

// timeField reads a timestamp in any of the encodings found in legacy data:
// a native time value, an RFC 3339 or plain date string, or epoch
// milliseconds. Unparseable values count as absent.
func timeField(raw RawRecord, key string) (time.Time, bool) {
	switch v := raw[key].(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v, true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	case int64:
		if v > 0 {
			return time.UnixMilli(v).UTC(), true
		}
	case float64:
		if v > 0 {
			return time.UnixMilli(int64(v)).UTC(), true
		}
	}
	return time.Time{}, false
}
