package enums

import (
	"fmt"
	"strings"
)

// CardCondition is the graded condition of a physical card.
type CardCondition string

const (
	CardConditionNearMint  CardCondition = "NM"
	CardConditionExcellent CardCondition = "EX"
	CardConditionGood      CardCondition = "GD"
	CardConditionLight     CardCondition = "LP"
	CardConditionPlayed    CardCondition = "PL"
	CardConditionPoor      CardCondition = "PO"
)

var validCardConditions = []CardCondition{
	CardConditionNearMint,
	CardConditionExcellent,
	CardConditionGood,
	CardConditionLight,
	CardConditionPlayed,
	CardConditionPoor,
}

// String implements fmt.Stringer.
func (c CardCondition) String() string {
	return string(c)
}

// IsValid reports whether the condition is one of the graded values.
func (c CardCondition) IsValid() bool {
	for _, candidate := range validCardConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCardCondition converts raw input (case-insensitive) into a CardCondition.
func ParseCardCondition(value string) (CardCondition, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCardConditions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid card condition %q", value)
}
