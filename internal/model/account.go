package model

// DefaultCurrency is used when an account is created without one.
const DefaultCurrency = "DKK"

// Account is a bank account that transactions are imported into.
type Account struct {
	ID            int64
	Name          string
	AccountNumber string // empty = none
	Currency      string
}

// Category is a node in the category tree. ParentID nil = top-level.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
}
