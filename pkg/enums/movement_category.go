package enums

import "fmt"

// MovementCategory classifies a stock movement by what caused it.
type MovementCategory string

const (
	MovementSale       MovementCategory = "sale"
	MovementAdjustment MovementCategory = "adjustment"
	MovementCorrection MovementCategory = "correction"
	MovementReceiving  MovementCategory = "receiving"
	MovementReturn     MovementCategory = "return"
)

var validMovementCategories = []MovementCategory{
	MovementSale,
	MovementAdjustment,
	MovementCorrection,
	MovementReceiving,
	MovementReturn,
}

// String implements fmt.Stringer.
func (m MovementCategory) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementCategory.
func (m MovementCategory) IsValid() bool {
	for _, candidate := range validMovementCategories {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementCategory converts raw input into a MovementCategory.
func ParseMovementCategory(value string) (MovementCategory, error) {
	for _, candidate := range validMovementCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement category %q", value)
}
