package payment

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency the QR image API is used with.
const DefaultCurrency = "CZK"

// Account is the payee bank account shown to guests.
type Account struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
	Currency      string `json:"currency"`
}

// ErrIncompleteAccount is returned when no payee account is configured.
var ErrIncompleteAccount = errors.New("payment: bank account not configured")

// Request describes one QR payment.
type Request struct {
	AccountNumber  string
	BankCode       string
	Amount         decimal.Decimal
	Currency       string
	VariableSymbol string
	Message        string
}

// NewRequest builds a request paying amount to acct; message is
// sanitised.
func NewRequest(acct Account, amount decimal.Decimal, vs, message string) (Request, error) {
	if strings.TrimSpace(acct.AccountNumber) == "" || strings.TrimSpace(acct.BankCode) == "" {
		return Request{}, ErrIncompleteAccount
	}
	currency := acct.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return Request{
		AccountNumber:  acct.AccountNumber,
		BankCode:       acct.BankCode,
		Amount:         amount,
		Currency:       currency,
		VariableSymbol: vs,
		Message:        SanitizeMessage(message),
	}, nil
}

// Query renders the request as the image API's query string. Parameter
// order is fixed: accountNumber, bankCode, amount, currency, vs, message.
func (r Request) Query() string {
	currency := r.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	pairs := [][2]string{
		{"accountNumber", r.AccountNumber},
		{"bankCode", r.BankCode},
		{"amount", r.Amount.StringFixed(2)},
		{"currency", currency},
		{"vs", r.VariableSymbol},
		{"message", r.Message},
	}
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	return b.String()
}

// ImageURL is the full image API URL for the request.
func (r Request) ImageURL(base string) string {
	return fmt.Sprintf("%s?%s", strings.TrimRight(base, "?"), r.Query())
}
