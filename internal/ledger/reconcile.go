package ledger

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/buyback-backend/pkg/db"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/enums"
)

// KeyReport compares a balance against what its lots and mutations imply.
type KeyReport struct {
	Key           models.StockKey `json:"key"`
	Received      int64           `json:"received"`
	Remaining     int64           `json:"remaining"`
	Consumed      int64           `json:"consumed"`
	OnHand        int64           `json:"on_hand"`
	Theoretical   int64           `json:"theoretical"`
	Drift         int64           `json:"drift"`
	MutationDrift int64           `json:"mutation_drift"`
	HasBalance    bool            `json:"has_balance"`
}

// Drifting reports whether any figure disagrees with the balance.
func (r KeyReport) Drifting() bool {
	return r.Drift != 0 || r.MutationDrift != 0 || !r.HasBalance
}

// Report is one reconciliation pass over every stocking key.
type Report struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Keys        []KeyReport `json:"keys"`
	Drifting    int         `json:"drifting"`
}

// DriftingKeys returns only the rows that need investigation.
func (r *Report) DriftingKeys() []KeyReport {
	var out []KeyReport
	for _, key := range r.Keys {
		if key.Drifting() {
			out = append(out, key)
		}
	}
	return out
}

// Reconcile reads balances, lot totals and mutation totals from one snapshot.
func (s *service) Reconcile(ctx context.Context) (*Report, error) {
	var (
		balances  []models.StockBalance
		lots      []lotTotals
		mutations []mutationTotals
	)
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		if err := db.SetReadSnapshot(tx); err != nil {
			return err
		}
		repo := newRepository(tx)

		var err error
		if balances, err = repo.allBalances(ctx); err != nil {
			return err
		}
		if lots, err = repo.lotTotals(ctx); err != nil {
			return err
		}
		mutations, err = repo.mutationTotals(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	rows := make(map[models.StockKey]*KeyReport, len(balances))
	row := func(key models.StockKey) *KeyReport {
		if existing, ok := rows[key]; ok {
			return existing
		}
		created := &KeyReport{Key: key}
		rows[key] = created
		return created
	}

	for _, balance := range balances {
		r := row(balance.Key())
		r.OnHand = int64(balance.QtyOnHand)
		r.HasBalance = true
	}
	for _, totals := range lots {
		r := row(totals.key())
		r.Received = totals.Received
		r.Remaining = totals.Remaining
	}
	for _, totals := range mutations {
		r := row(totals.key())
		r.Theoretical = totals.Theoretical
		r.Consumed = totals.Consumed
	}

	report := &Report{GeneratedAt: s.now().UTC(), Keys: make([]KeyReport, 0, len(rows))}
	for _, r := range rows {
		r.Drift = r.OnHand - r.Remaining
		r.MutationDrift = r.OnHand - r.Theoretical
		if r.Drifting() {
			report.Drifting++
		}
		report.Keys = append(report.Keys, *r)
	}
	sort.Slice(report.Keys, func(i, j int) bool {
		return lessKey(report.Keys[i].Key, report.Keys[j].Key)
	})
	return report, nil
}

func groupedKey(itemID int64, isFoil bool, condition, language string) models.StockKey {
	return models.StockKey{
		ItemID:    itemID,
		IsFoil:    isFoil,
		Condition: enums.CardCondition(condition),
		Language:  language,
	}
}

func lessKey(a, b models.StockKey) bool {
	if a.ItemID != b.ItemID {
		return a.ItemID < b.ItemID
	}
	if a.IsFoil != b.IsFoil {
		return !a.IsFoil
	}
	if a.Condition != b.Condition {
		return a.Condition < b.Condition
	}
	return a.Language < b.Language
}
