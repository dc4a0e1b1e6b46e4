package coa

import "github.com/erpcore/books/internal/ledger"

// templateAccount is one row of the standard chart template. Parent refers to
// the code of another template row.
type templateAccount struct {
	Code     string
	Name     string
	Type     ledger.AccountType
	Category string
	IsGroup  bool
	Parent   string
	System   bool
}

// standardChart is the default chart of accounts seeded for a new ledger.
// Group codes follow the conventional 1000/2000/... numbering.
var standardChart = []templateAccount{
	{Code: "1000", Name: "Assets", Type: ledger.AccountTypeAsset, Category: "current_asset", IsGroup: true},
	{Code: "1100", Name: "Current Assets", Type: ledger.AccountTypeAsset, Category: "current_asset", IsGroup: true, Parent: "1000"},
	{Code: "1101", Name: "Cash", Type: ledger.AccountTypeAsset, Category: "cash", Parent: "1100"},
	{Code: "1102", Name: "Bank", Type: ledger.AccountTypeAsset, Category: "bank", Parent: "1100"},
	{Code: "1110", Name: "Accounts Receivable", Type: ledger.AccountTypeAsset, Category: "receivable", Parent: "1100"},
	{Code: "1120", Name: "Inventory", Type: ledger.AccountTypeAsset, Category: "inventory", Parent: "1100"},
	{Code: "1200", Name: "Fixed Assets", Type: ledger.AccountTypeAsset, Category: "fixed_asset", IsGroup: true, Parent: "1000"},
	{Code: "1201", Name: "Plant and Machinery", Type: ledger.AccountTypeAsset, Category: "fixed_asset", Parent: "1200"},

	{Code: "2000", Name: "Liabilities", Type: ledger.AccountTypeLiability, Category: "current_liability", IsGroup: true},
	{Code: "2101", Name: "Accounts Payable", Type: ledger.AccountTypeLiability, Category: "payable", Parent: "2000"},
	{Code: "2201", Name: "Sales Tax Payable", Type: ledger.AccountTypeLiability, Category: "tax_payable", Parent: "2000", System: true},

	{Code: "3000", Name: "Equity", Type: ledger.AccountTypeEquity, Category: "capital", IsGroup: true},
	{Code: "3101", Name: "Owner Capital", Type: ledger.AccountTypeEquity, Category: "capital", Parent: "3000"},
	{Code: "3201", Name: "Retained Earnings", Type: ledger.AccountTypeEquity, Category: "retained_earnings", Parent: "3000", System: true},

	{Code: "4000", Name: "Revenue", Type: ledger.AccountTypeRevenue, Category: "sales", IsGroup: true},
	{Code: "4101", Name: "Sales Revenue", Type: ledger.AccountTypeRevenue, Category: "sales", Parent: "4000"},
	{Code: "4201", Name: "Other Income", Type: ledger.AccountTypeRevenue, Category: "other_income", Parent: "4000"},

	{Code: "5000", Name: "Expenses", Type: ledger.AccountTypeExpense, Category: "operating", IsGroup: true},
	{Code: "5101", Name: "Cost of Sales", Type: ledger.AccountTypeExpense, Category: "cost_of_sales", Parent: "5000"},
	{Code: "5201", Name: "Salaries Expense", Type: ledger.AccountTypeExpense, Category: "payroll", Parent: "5000"},
	{Code: "5301", Name: "Rent Expense", Type: ledger.AccountTypeExpense, Category: "rent", Parent: "5000"},
	{Code: "5401", Name: "Utilities Expense", Type: ledger.AccountTypeExpense, Category: "utilities", Parent: "5000"},
}
