package enums

import "testing"

func TestParseCardCondition(t *testing.T) {
	for _, raw := range []string{"NM", "nm", " ex ", "GD", "lp", "PL", "po"} {
		got, err := ParseCardCondition(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if !got.IsValid() {
			t.Fatalf("parsed %q should be valid", raw)
		}
	}
	if _, err := ParseCardCondition("MINT"); err == nil {
		t.Fatal("expected error for unknown condition")
	}
	if CardCondition("XX").IsValid() {
		t.Fatal("unknown condition must not be valid")
	}
}

func TestStockMutationKind(t *testing.T) {
	if !StockMutationReceive.IsInbound() || !StockMutationAdjustIn.IsInbound() {
		t.Fatal("receive and adjust_in add stock")
	}
	if StockMutationConsume.IsInbound() || StockMutationAdjustOut.IsInbound() {
		t.Fatal("consume and adjust_out remove stock")
	}
	if _, err := ParseStockMutationKind("teleport"); err == nil {
		t.Fatal("expected invalid kind error")
	}
	if k, err := ParseStockMutationKind("adjust_out"); err != nil || k != StockMutationAdjustOut {
		t.Fatalf("unexpected parse result %q %v", k, err)
	}
}
