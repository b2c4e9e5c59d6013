package core

import (
	"errors"
	"strings"
	"time"
)

// Transaction types as stored in records and used for category filtering.
// Classification of a transaction itself is derived from the amount's sign,
// never from the stored type string (see Transaction.Kind).
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Defaults filled in by the normalizer for absent or malformed fields.
const (
	UncategorizedLabel      = "Uncategorized"
	UnnamedTransactionLabel = "Unnamed Transaction"
	UnnamedCategoryLabel    = "Unnamed Category"
)

type (
	// RawRecord is a document as the backing store delivers it: string keys,
	// loosely typed values, any field possibly absent or malformed. Raw
	// records never cross into the aggregation engine; they go through the
	// normalizer first.
	RawRecord map[string]any

	// Transaction is the canonical, fully-typed record the aggregation
	// engine operates on. Every field has a defined value.
	Transaction struct {
		ID          string
		OwnerID     string
		Amount      float64
		Category    string
		Description string
		// StoredType is the type string persisted alongside the amount.
		// It is kept for round-tripping only; it may disagree with the
		// amount's sign in legacy records and must never drive logic.
		StoredType string
		OccurredAt time.Time
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// Category is a user-defined transaction label.
	Category struct {
		ID      string
		OwnerID string
		Name    string
		// Type is "income", "expense", or empty. An empty type makes the
		// category applicable to both transaction types.
		Type      string
		Color     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// UserProfile holds per-user display preferences. At most one profile
	// exists per owner.
	UserProfile struct {
		OwnerID            string
		Currency           Currency
		EmailNotifications bool
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyName        = errors.New("empty category name")
	ErrInvalidType      = errors.New("type must be income or expense")
)

// Kind classifies the transaction by the sign of its amount. A zero amount
// belongs to neither side and returns "".
func (t Transaction) Kind() string {
	switch {
	case t.Amount > 0:
		return TypeIncome
	case t.Amount < 0:
		return TypeExpense
	default:
		return ""
	}
}

// IsIncome reports whether the transaction counts toward income totals.
func (t Transaction) IsIncome() bool { return t.Amount > 0 }

// IsExpense reports whether the transaction counts toward expense totals.
func (t Transaction) IsExpense() bool { return t.Amount < 0 }

// ValidateTransactionInput checks user-submitted transaction fields before
// any write is attempted. Amount arrives unsigned; typ selects the sign.
func ValidateTransactionInput(description string, amount float64, typ string, occurredAt time.Time) error {
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if typ != TypeIncome && typ != TypeExpense {
		return ErrInvalidType
	}
	if occurredAt.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks a user-submitted category.
func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Type != "" && c.Type != TypeIncome && c.Type != TypeExpense {
		return ErrInvalidType
	}
	return nil
}

// SignedAmount applies the transaction type convention to an unsigned form
// amount: income is stored positive, expense negative.
func SignedAmount(amount float64, typ string) float64 {
	if typ == TypeExpense {
		return -amount
	}
	return amount
}
