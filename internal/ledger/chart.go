package ledger

// ChartEntry represents a predefined account in the default personal chart.
type ChartEntry struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ParentID    string      `json:"parent_id,omitempty"`
	Type        AccountType `json:"type"`
	IsGroup     bool        `json:"is_group"`
	Description string      `json:"description"`
	IsSystem    bool        `json:"is_system"`
}

// OpeningAccountID is the equity account that seeds opening balances.
const OpeningAccountID = "~opening"

// SystemAccounts are created by the first migration.
var SystemAccounts = []ChartEntry{
	{ID: OpeningAccountID, Name: "Opening Balances", Type: TypeEquity, IsSystem: true, Description: "Counterparty of the synthetic transfer that establishes a starting balance"},
}

// DefaultChart is a small category tree for personal bookkeeping. Real
// accounts are left to the user since they need a currency.
var DefaultChart = []ChartEntry{
	{ID: "income", Name: "Income", Type: TypeIncome, IsGroup: true, Description: "All income categories"},
	{ID: "income:salary", Name: "Salary", ParentID: "income", Type: TypeIncome},
	{ID: "income:other", Name: "Other Income", ParentID: "income", Type: TypeIncome},

	{ID: "expenses", Name: "Expenses", Type: TypeExpense, IsGroup: true, Description: "All spending categories"},
	{ID: "expenses:housing", Name: "Housing", ParentID: "expenses", Type: TypeExpense},
	{ID: "expenses:food", Name: "Food", ParentID: "expenses", Type: TypeExpense, IsGroup: true},
	{ID: "expenses:food:groceries", Name: "Groceries", ParentID: "expenses:food", Type: TypeExpense},
	{ID: "expenses:food:dining", Name: "Dining Out", ParentID: "expenses:food", Type: TypeExpense},
	{ID: "expenses:transport", Name: "Transport", ParentID: "expenses", Type: TypeExpense},
	{ID: "expenses:health", Name: "Health", ParentID: "expenses", Type: TypeExpense},
	{ID: "expenses:leisure", Name: "Leisure", ParentID: "expenses", Type: TypeExpense},
	{ID: "expenses:other", Name: "Other Expenses", ParentID: "expenses", Type: TypeExpense},
}

// Account builds the account row for a chart entry.
func (c ChartEntry) Account() Account {
	return Account{
		ID:       c.ID,
		Name:     c.Name,
		ParentID: c.ParentID,
		Class:    ClassForType(c.Type),
		Type:     c.Type,
		IsGroup:  c.IsGroup,
		IsActive: true,
	}
}
