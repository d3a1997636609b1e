package wbw

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type loginRequest struct {
	User userCredentials `json:"user"`
}

type userCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Errors *apiErrors `json:"errors,omitempty"`
}

// apiErrors is WBW's error bag: field name to list of messages.
type apiErrors map[string][]string

func (e apiErrors) Message() string {
	var parts []string
	for field, msgs := range e {
		parts = append(parts, field+": "+strings.Join(msgs, ", "))
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, "; ")
}

type paginationResponse[T any] struct {
	Data []T `json:"data"`
}

type noPaginationResponse[T any] struct {
	Data []T `json:"data"`
}

type listItem struct {
	List List `json:"list"`
}

// List is one shared-expense list.
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type memberItem struct {
	Member Member `json:"member"`
}

// Member is one member of a list.
type Member struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

type balanceItem struct {
	Balance Balance `json:"balance"`
}

// Balance couples a list with our own member record in it.
type Balance struct {
	List   List   `json:"list"`
	Member Member `json:"member"`
	Amount Amount `json:"amount"`
}

// Amount is a money value in minor units.
type Amount struct {
	Currency   string `json:"currency"`
	Fractional int    `json:"fractional"`
}

// EurAmount builds a euro amount from cents.
func EurAmount(cents int) Amount {
	return Amount{Currency: "EUR", Fractional: cents}
}

type expenseWrapper struct {
	Expense Expense `json:"expense"`
}

// Expense is a new expense posting. Shares must sum to the expense amount.
type Expense struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	PayedByID       string  `json:"payed_by_id"`
	PayedOn         string  `json:"payed_on"`
	SourceAmount    Amount  `json:"source_amount"`
	Amount          Amount  `json:"amount"`
	ExchangeRate    int     `json:"exchange_rate"`
	SharesAttribute []Share `json:"shares_attributes"`
}

// Share is one member's part of an expense.
type Share struct {
	ID           string    `json:"id"`
	MemberID     string    `json:"member_id"`
	SourceAmount Amount    `json:"source_amount"`
	Amount       Amount    `json:"amount"`
	Meta         ShareMeta `json:"meta"`
}

// ShareMeta describes how a share was derived.
type ShareMeta struct {
	Type       string `json:"type"`
	Multiplier int    `json:"multiplier"`
}

type expenseResponse struct {
	Expense *ExpenseResult `json:"expense,omitempty"`
	Errors  *apiErrors     `json:"errors,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ExpenseResult is the accepted expense as WBW stored it.
type ExpenseResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	ListID  string `json:"list_id"`
	Status  string `json:"status"`
	PayedOn string `json:"payed_on"`
	Amount  Amount `json:"amount"`
}

// NewExpense builds an expense paid by payerMemberID today, split evenly over
// the given member ids (the payer included if listed). Rounding remainders go
// to the first shares so the split always sums to the total.
func NewExpense(name, payerMemberID string, totalCents int, memberIDs []string) Expense {
	shares := make([]Share, 0, len(memberIDs))
	if len(memberIDs) > 0 {
		base := totalCents / len(memberIDs)
		remainder := totalCents % len(memberIDs)
		for i, memberID := range memberIDs {
			cents := base
			if i < remainder {
				cents++
			}
			shares = append(shares, Share{
				ID:           uuid.New().String(),
				MemberID:     memberID,
				SourceAmount: EurAmount(cents),
				Amount:       EurAmount(cents),
				Meta:         ShareMeta{Type: "factor", Multiplier: 1},
			})
		}
	}
	return Expense{
		ID:              uuid.New().String(),
		Name:            name,
		PayedByID:       payerMemberID,
		PayedOn:         time.Now().Format("2006-01-02"),
		SourceAmount:    EurAmount(totalCents),
		Amount:          EurAmount(totalCents),
		ExchangeRate:    1,
		SharesAttribute: shares,
	}
}
