package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary values are kept at full precision while calculations run and are
// rounded to 2 places half-up only when a value is persisted or returned.
const Places = 2

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
)

// ValidationError reports a rejected monetary input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Round applies the boundary rounding rule: 2 fractional digits, half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// FromFloat converts a float input without premature rounding.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Parse converts a string input to a decimal.
func Parse(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "not a valid decimal"}
	}
	return d, nil
}

// RequireNonNegative rejects negative values (retention percentage, budgets).
func RequireNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

// RequirePositive rejects zero and negative values (rates, quantities,
// bill amounts, payment amounts, release amounts).
func RequirePositive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return &ValidationError{Field: field, Reason: "must be greater than zero"}
	}
	return nil
}

// SafeDiv divides a by b, returning zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// Percentage returns value × pct / 100 at full precision.
func Percentage(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct).Div(Hundred)
}

// WorkOrderValues holds the derived figures of a work order. The formula
// shapes are fixed: base = rate × quantity, retention = base × pct/100,
// net = base − retention.
type WorkOrderValues struct {
	BaseAmount      decimal.Decimal
	RetentionAmount decimal.Decimal
	NetValue        decimal.Decimal
}

// CalculateWorkOrderValues derives the work order figures, rounding each
// result once at the boundary.
func CalculateWorkOrderValues(rate, quantity, retentionPct decimal.Decimal) (*WorkOrderValues, error) {
	if err := RequirePositive("rate", rate); err != nil {
		return nil, err
	}
	if err := RequirePositive("quantity", quantity); err != nil {
		return nil, err
	}
	if err := RequireNonNegative("retention_percentage", retentionPct); err != nil {
		return nil, err
	}

	base := rate.Mul(quantity)
	retention := Percentage(base, retentionPct)
	net := base.Sub(retention)

	return &WorkOrderValues{
		BaseAmount:      Round(base),
		RetentionAmount: Round(retention),
		NetValue:        Round(net),
	}, nil
}

// CertificateValues holds the derived figures of a payment certificate. The
// formula shapes are fixed: taxable = bill − retention_current,
// net_payable = taxable + cgst + sgst.
type CertificateValues struct {
	RetentionCurrent decimal.Decimal
	TaxableAmount    decimal.Decimal
	CGSTAmount       decimal.Decimal
	SGSTAmount       decimal.Decimal
	NetPayable       decimal.Decimal
}

// CalculateCertificateValues derives the certificate figures. CGST and SGST
// each take half of the GST rate applied to the taxable amount.
func CalculateCertificateValues(billAmount, retentionPct, gstRate decimal.Decimal) (*CertificateValues, error) {
	if err := RequirePositive("current_bill_amount", billAmount); err != nil {
		return nil, err
	}
	if err := RequireNonNegative("retention_percentage", retentionPct); err != nil {
		return nil, err
	}
	if err := RequireNonNegative("gst_rate", gstRate); err != nil {
		return nil, err
	}

	retention := Percentage(billAmount, retentionPct)
	taxable := billAmount.Sub(retention)
	half := SafeDiv(gstRate, decimal.NewFromInt(2))
	cgst := Percentage(taxable, half)
	sgst := Percentage(taxable, half)
	net := taxable.Add(cgst).Add(sgst)

	return &CertificateValues{
		RetentionCurrent: Round(retention),
		TaxableAmount:    Round(taxable),
		CGSTAmount:       Round(cgst),
		SGSTAmount:       Round(sgst),
		NetPayable:       Round(net),
	}, nil
}
