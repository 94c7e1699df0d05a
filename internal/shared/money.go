package shared

import (
	"errors"
	"math"
)

// MaxFeeAmount caps official fees and game fee overrides.
const MaxFeeAmount = 999999.99

var (
	// ErrFeeOutOfRange indicates a fee outside [0, MaxFeeAmount].
	ErrFeeOutOfRange = errors.New("fee amount out of range")
	// ErrFeePrecision indicates more than two decimal places.
	ErrFeePrecision = errors.New("fee amount limited to two decimal places")
	// ErrBillAmountTooSmall indicates a charge below one cent.
	ErrBillAmountTooSmall = errors.New("bill amount must be at least 0.01")
)

// ValidateFee checks an official fee amount.
func ValidateFee(amount float64) error {
	if amount < 0 || amount > MaxFeeAmount {
		return ErrFeeOutOfRange
	}
	if !twoDecimalPlaces(amount) {
		return ErrFeePrecision
	}
	return nil
}

// ValidateBillAmount checks a billing charge.
func ValidateBillAmount(amount float64) error {
	if amount < 0.01 {
		return ErrBillAmountTooSmall
	}
	if !twoDecimalPlaces(amount) {
		return ErrFeePrecision
	}
	return nil
}

func twoDecimalPlaces(amount float64) bool {
	cents := amount * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}
