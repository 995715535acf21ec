package ledger

import (
	"strings"

	"finance-tracker/internal/models"
)

// Placeholder categories that accept a free-text override.
const (
	OtherIncome  = "Other Income"
	OtherExpense = "Other Expense"
)

// IncomeCategories and ExpenseCategories are offered by the transaction form.
// Any other non-blank category is accepted as well.
var (
	IncomeCategories = []string{"Salary", "Freelance", "Investments", "Gifts", OtherIncome}

	ExpenseCategories = []string{
		"Food", "Transport", "Housing", "Utilities", "Entertainment",
		"Healthcare", "Shopping", "Education", OtherExpense,
	}
)

// Categories returns the catalogue for t.
func Categories(t models.TransactionType) []string {
	if t == models.TypeIncome {
		return IncomeCategories
	}
	return ExpenseCategories
}

const maxCategoryLength = 100

// ResolveCategory picks the stored category: the custom value replaces an
// "Other" placeholder when it is not blank.
func ResolveCategory(category, custom string) (string, error) {
	category = strings.TrimSpace(category)
	custom = strings.TrimSpace(custom)

	if (category == OtherIncome || category == OtherExpense) && custom != "" {
		category = custom
	}
	if category == "" {
		return "", models.Invalid("category", "category is required")
	}
	if len([]rune(category)) > maxCategoryLength {
		return "", models.Invalid("category", "category must be at most %d characters", maxCategoryLength)
	}
	return category, nil
}
