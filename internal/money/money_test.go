package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, "10.13", Round(dec("10.125")).StringFixed(2))
	assert.Equal(t, "10.12", Round(dec("10.124")).StringFixed(2))
	assert.Equal(t, "0.01", Round(dec("0.005")).StringFixed(2))
}

func TestSafeDiv(t *testing.T) {
	assert.True(t, SafeDiv(dec("10"), decimal.Zero).IsZero())
	assert.Equal(t, "2.5", SafeDiv(dec("5"), dec("2")).String())
}

func TestRequirePositive(t *testing.T) {
	assert.NoError(t, RequirePositive("rate", dec("0.01")))

	err := RequirePositive("rate", decimal.Zero)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rate", verr.Field)

	assert.Error(t, RequirePositive("amount", dec("-5")))
}

func TestRequireNonNegative(t *testing.T) {
	assert.NoError(t, RequireNonNegative("retention_percentage", decimal.Zero))
	assert.Error(t, RequireNonNegative("retention_percentage", dec("-0.01")))
}

func TestCalculateWorkOrderValues(t *testing.T) {
	vals, err := CalculateWorkOrderValues(dec("100"), dec("10"), dec("5"))
	require.NoError(t, err)
	assert.Equal(t, "1000.00", vals.BaseAmount.StringFixed(2))
	assert.Equal(t, "50.00", vals.RetentionAmount.StringFixed(2))
	assert.Equal(t, "950.00", vals.NetValue.StringFixed(2))
}

func TestCalculateWorkOrderValuesRoundsAtBoundaryOnly(t *testing.T) {
	// 33.335 × 3 = 100.005; rounding intermediates first would give 100.01
	// via a different path than rounding the exact product.
	vals, err := CalculateWorkOrderValues(dec("33.335"), dec("3"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "100.01", vals.BaseAmount.StringFixed(2))
	assert.Equal(t, "100.01", vals.NetValue.StringFixed(2))
}

func TestCalculateWorkOrderValuesRejectsInvalidInputs(t *testing.T) {
	_, err := CalculateWorkOrderValues(decimal.Zero, dec("10"), dec("5"))
	assert.Error(t, err)

	_, err = CalculateWorkOrderValues(dec("100"), dec("-1"), dec("5"))
	assert.Error(t, err)

	_, err = CalculateWorkOrderValues(dec("100"), dec("10"), dec("-5"))
	assert.Error(t, err)
}

func TestCalculateCertificateValues(t *testing.T) {
	vals, err := CalculateCertificateValues(dec("1000"), dec("5.6"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "56.00", vals.RetentionCurrent.StringFixed(2))
	assert.Equal(t, "944.00", vals.TaxableAmount.StringFixed(2))
	assert.Equal(t, "0.00", vals.CGSTAmount.StringFixed(2))
	assert.Equal(t, "944.00", vals.NetPayable.StringFixed(2))
}

func TestCalculateCertificateValuesWithGST(t *testing.T) {
	vals, err := CalculateCertificateValues(dec("1000"), dec("10"), dec("18"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", vals.RetentionCurrent.StringFixed(2))
	assert.Equal(t, "900.00", vals.TaxableAmount.StringFixed(2))
	assert.Equal(t, "81.00", vals.CGSTAmount.StringFixed(2))
	assert.Equal(t, "81.00", vals.SGSTAmount.StringFixed(2))
	assert.Equal(t, "1062.00", vals.NetPayable.StringFixed(2))
}

func TestCalculateCertificateValuesRejectsZeroBill(t *testing.T) {
	_, err := CalculateCertificateValues(decimal.Zero, dec("5"), decimal.Zero)
	assert.Error(t, err)
}
