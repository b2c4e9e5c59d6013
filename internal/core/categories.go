package core

// Default category taxonomies, served when a user has defined no categories
// of their own. The order is curated (common categories first), not
// alphabetical, and is part of the UI contract.
var (
	defaultExpenseCategories = []string{
		"Food",
		"Transportation",
		"Entertainment",
		"Utilities",
		"Shopping",
		"Health",
		"Other",
	}

	defaultIncomeCategories = []string{
		"Salary",
		"Freelance",
		"Investments",
		"Gifts",
		"Other",
	}
)

// DefaultCategories returns the fallback category names for the given
// transaction type, in display order. Any value outside the income/expense
// enum gets the union of both lists, mirroring how an untyped category
// applies to both sides.
func DefaultCategories(typ string) []string {
	switch typ {
	case TypeIncome:
		return append([]string(nil), defaultIncomeCategories...)
	case TypeExpense:
		return append([]string(nil), defaultExpenseCategories...)
	default:
		merged := append([]string(nil), defaultIncomeCategories...)
		return append(merged, defaultExpenseCategories...)
	}
}

// FilterCategoriesByType keeps the categories applicable to the given
// transaction type. A category without a type matches every type, and any
// typ outside the income/expense enum (including "") means no filtering,
// matching DefaultCategories.
func FilterCategoriesByType(cats []Category, typ string) []Category {
	if typ != TypeIncome && typ != TypeExpense {
		return cats
	}
	filtered := make([]Category, 0, len(cats))
	for _, c := range cats {
		if c.Type == "" || c.Type == typ {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// CategoryNamesFor resolves the category names offered when entering a
// transaction of the given type. Defaults are all-or-nothing per user: as
// soon as the user has defined any category at all, regardless of its type,
// no defaults are mixed in.
func CategoryNamesFor(userCats []Category, typ string) []string {
	if len(userCats) == 0 {
		return DefaultCategories(typ)
	}
	filtered := FilterCategoriesByType(userCats, typ)
	names := make([]string, 0, len(filtered))
	for _, c := range filtered {
		names = append(names, c.Name)
	}
	return names
}
