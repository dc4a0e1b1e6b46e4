package coa

import "github.com/erpcore/books/internal/ledger"

// CategoryDef describes one curated subclassification of an account type.
type CategoryDef struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Reserved bool   `json:"reserved"`
}

var curated = map[ledger.AccountType][]CategoryDef{
	ledger.AccountTypeAsset: {
		{Code: "current_asset", Label: "Current Asset"},
		{Code: "cash", Label: "Cash"},
		{Code: "bank", Label: "Bank"},
		{Code: "receivable", Label: "Receivable"},
		{Code: "inventory", Label: "Inventory"},
		{Code: "fixed_asset", Label: "Fixed Asset"},
		{Code: "investment", Label: "Investment"},
	},
	ledger.AccountTypeLiability: {
		{Code: "current_liability", Label: "Current Liability"},
		{Code: "payable", Label: "Payable"},
		{Code: "tax_payable", Label: "Tax Payable", Reserved: true},
		{Code: "loan", Label: "Loan"},
		{Code: "credit_card", Label: "Credit Card"},
		{Code: "long_term_liability", Label: "Long Term Liability"},
	},
	ledger.AccountTypeEquity: {
		{Code: "capital", Label: "Capital"},
		{Code: "retained_earnings", Label: "Retained Earnings", Reserved: true},
		{Code: "reserves", Label: "Reserves"},
	},
	ledger.AccountTypeRevenue: {
		{Code: "sales", Label: "Sales"},
		{Code: "service_income", Label: "Service Income"},
		{Code: "interest", Label: "Interest"},
		{Code: "other_income", Label: "Other Income"},
	},
	ledger.AccountTypeExpense: {
		{Code: "cost_of_sales", Label: "Cost of Sales"},
		{Code: "payroll", Label: "Payroll"},
		{Code: "rent", Label: "Rent"},
		{Code: "utilities", Label: "Utilities"},
		{Code: "depreciation", Label: "Depreciation"},
		{Code: "operating", Label: "Operating"},
		{Code: "general", Label: "General"},
	},
}

// ValidCategory reports whether category is curated for the given type.
func ValidCategory(t ledger.AccountType, category string) bool {
	for _, c := range curated[t] {
		if c.Code == category {
			return true
		}
	}
	return false
}

// ReservedCategory reports whether category is reserved for system accounts.
func ReservedCategory(t ledger.AccountType, category string) bool {
	for _, c := range curated[t] {
		if c.Code == category && c.Reserved {
			return true
		}
	}
	return false
}

// CategoriesFor returns the curated categories for a type, or all categories
// grouped in type order when t is nil.
func CategoriesFor(t *ledger.AccountType) []CategoryDef {
	if t == nil {
		out := make([]CategoryDef, 0)
		for _, typ := range accountTypeOrder {
			out = append(out, curated[typ]...)
		}
		return out
	}
	return curated[*t]
}

var accountTypeOrder = []ledger.AccountType{
	ledger.AccountTypeAsset,
	ledger.AccountTypeLiability,
	ledger.AccountTypeEquity,
	ledger.AccountTypeRevenue,
	ledger.AccountTypeExpense,
}
