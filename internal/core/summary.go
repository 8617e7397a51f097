package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthlyReport is the spend summary of one user for one month.
type MonthlyReport struct {
	UserID     int64
	Period     Period
	Total      Money
	ByCategory []CategoryAmount
	Budgets    []Budget
}

// ExceededBudget is a budget whose month ended up over its limit.
type ExceededBudget struct {
	Category string
	Period   Period
	Spent    Money
	Budget   Money
}

// OverallReport is the all-time summary of one user.
type OverallReport struct {
	User       User
	Total      Money
	ByCategory []CategoryAmount
	Exceeded   []ExceededBudget
}
