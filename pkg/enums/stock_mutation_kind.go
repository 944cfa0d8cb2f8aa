package enums

import "fmt"

// StockMutationKind labels which ledger operation produced a mutation row.
type StockMutationKind string

const (
	StockMutationReceive   StockMutationKind = "receive"
	StockMutationConsume   StockMutationKind = "consume"
	StockMutationAdjustIn  StockMutationKind = "adjust_in"
	StockMutationAdjustOut StockMutationKind = "adjust_out"
)

var validStockMutationKinds = []StockMutationKind{
	StockMutationReceive,
	StockMutationConsume,
	StockMutationAdjustIn,
	StockMutationAdjustOut,
}

// String implements fmt.Stringer.
func (k StockMutationKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches a known mutation kind.
func (k StockMutationKind) IsValid() bool {
	for _, candidate := range validStockMutationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// IsInbound reports whether the kind adds stock.
func (k StockMutationKind) IsInbound() bool {
	return k == StockMutationReceive || k == StockMutationAdjustIn
}

// ParseStockMutationKind converts raw input into StockMutationKind.
func ParseStockMutationKind(value string) (StockMutationKind, error) {
	for _, candidate := range validStockMutationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock mutation kind %q", value)
}
