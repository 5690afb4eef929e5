// Package template renders message texts by substituting {{name}} tokens.
package template

import (
	"strconv"
	"strings"
	"time"
)

// Vars holds the substitution values for one message. Unset fields leave
// their tokens untouched, which lets validation catch a template/data
// mismatch downstream instead of silently sending an empty value.
type Vars struct {
	CreditNumber  string
	Amount        float64
	Currency      string
	RemainingDays *int
	AuctionDate   *time.Time
	CompanyName   string
}

// Render substitutes every known {{token}} in the template. Amounts are
// rendered without trailing zeros ("500", not "500.00"); auction dates are
// date-only (YYYY-MM-DD).
func Render(tmpl string, vars Vars) string {
	if tmpl == "" {
		return ""
	}

	replacements := []string{
		"{{creditNumber}}", vars.CreditNumber,
		"{{amount}}", FormatAmount(vars.Amount),
		"{{currency}}", vars.Currency,
	}
	if vars.CompanyName != "" {
		replacements = append(replacements, "{{companyName}}", vars.CompanyName)
	}
	if vars.RemainingDays != nil {
		replacements = append(replacements, "{{remainingDays}}", strconv.Itoa(*vars.RemainingDays))
	}
	if vars.AuctionDate != nil {
		replacements = append(replacements, "{{auctionDate}}", vars.AuctionDate.Format(time.DateOnly))
	}

	return strings.NewReplacer(replacements...).Replace(tmpl)
}

// FormatAmount renders a monetary amount with the shortest exact decimal
// representation: 500 -> "500", 500.5 -> "500.5".
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
