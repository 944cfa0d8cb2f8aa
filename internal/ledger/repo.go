package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/buyback-backend/internal/repo"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
	"github.com/angelmondragon/buyback-backend/pkg/pagination"
)

// errLotChanged means a guarded lot decrement matched no row. Under the balance
// lock this cannot happen, so the transaction is replayed.
var errLotChanged = errors.New("stock lot changed during consume")

// repository owns every write to the ledger tables. It is unexported so that
// balances can only move through Service.
type repository struct {
	repo.Base
}

func newRepository(db *gorm.DB) *repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) ensureBalance(ctx context.Context, key models.StockKey, now time.Time) error {
	balance := &models.StockBalance{
		ID:        uuid.Must(uuid.NewV7()),
		ItemID:    key.ItemID,
		IsFoil:    key.IsFoil,
		Condition: key.Condition,
		Language:  key.Language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(balance).Error
}

func (r *repository) lockBalance(ctx context.Context, key models.StockKey) (*models.StockBalance, error) {
	var balance models.StockBalance
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(key.Scope()).
		Take(&balance).Error
	if err != nil {
		return nil, balanceLookupError(key, err)
	}
	return &balance, nil
}

func (r *repository) findBalance(ctx context.Context, key models.StockKey) (*models.StockBalance, error) {
	var balance models.StockBalance
	if err := r.DB(ctx).Scopes(key.Scope()).Take(&balance).Error; err != nil {
		return nil, balanceLookupError(key, err)
	}
	return &balance, nil
}

func balanceLookupError(key models.StockKey, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no stock balance for %s", key))
	}
	return err
}

// openLots returns the key's lots with stock left, oldest first.
func (r *repository) openLots(ctx context.Context, key models.StockKey) ([]models.StockLot, error) {
	var lots []models.StockLot
	err := r.DB(ctx).
		Scopes(key.Scope()).
		Where("qty_remaining > 0").
		Order("source_date ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&lots).Error
	return lots, err
}

func (r *repository) listLots(ctx context.Context, key models.StockKey, includeDepleted bool) ([]models.StockLot, error) {
	query := r.DB(ctx).Scopes(key.Scope())
	if !includeDepleted {
		query = query.Where("qty_remaining > 0")
	}
	var lots []models.StockLot
	err := query.Order("source_date ASC").Order("created_at ASC").Order("id ASC").Find(&lots).Error
	return lots, err
}

func (r *repository) createLot(ctx context.Context, lot *models.StockLot) error {
	return r.DB(ctx).Create(lot).Error
}

func (r *repository) decrementLot(ctx context.Context, lotID uuid.UUID, qty int) error {
	res := r.DB(ctx).
		Model(&models.StockLot{}).
		Where("id = ? AND qty_remaining >= ?", lotID, qty).
		UpdateColumn("qty_remaining", gorm.Expr("qty_remaining - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errLotChanged
	}
	return nil
}

func (r *repository) sumRemaining(ctx context.Context, key models.StockKey) (int64, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.StockLot{}).
		Scopes(key.Scope()).
		Select("COALESCE(SUM(qty_remaining), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) saveBalance(ctx context.Context, balance *models.StockBalance) error {
	return r.DB(ctx).
		Model(&models.StockBalance{}).
		Where("id = ?", balance.ID).
		Updates(map[string]any{
			"qty_on_hand":   balance.QtyOnHand,
			"avg_unit_cost": balance.AvgUnitCost,
			"updated_at":    balance.UpdatedAt,
		}).Error
}

func (r *repository) appendMutation(ctx context.Context, mutation *models.StockMutation) error {
	return r.DB(ctx).Create(mutation).Error
}

func (r *repository) listMutations(ctx context.Context, key models.StockKey, cursor *pagination.Cursor, limit int) ([]models.StockMutation, error) {
	query := r.DB(ctx).Scopes(key.Scope())
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var mutations []models.StockMutation
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&mutations).Error
	return mutations, err
}

type lotTotals struct {
	ItemID    int64  `gorm:"column:item_id"`
	IsFoil    bool   `gorm:"column:is_foil"`
	Condition string `gorm:"column:card_condition"`
	Language  string `gorm:"column:language"`
	Received  int64  `gorm:"column:received"`
	Remaining int64  `gorm:"column:remaining"`
}

func (t lotTotals) key() models.StockKey {
	return groupedKey(t.ItemID, t.IsFoil, t.Condition, t.Language)
}

type mutationTotals struct {
	ItemID      int64  `gorm:"column:item_id"`
	IsFoil      bool   `gorm:"column:is_foil"`
	Condition   string `gorm:"column:card_condition"`
	Language    string `gorm:"column:language"`
	Theoretical int64  `gorm:"column:theoretical"`
	Consumed    int64  `gorm:"column:consumed"`
}

func (t mutationTotals) key() models.StockKey {
	return groupedKey(t.ItemID, t.IsFoil, t.Condition, t.Language)
}

const keyGroup = "item_id, is_foil, card_condition, language"

func (r *repository) allBalances(ctx context.Context) ([]models.StockBalance, error) {
	var balances []models.StockBalance
	err := r.DB(ctx).
		Order("item_id ASC").
		Order("is_foil ASC").
		Order("card_condition ASC").
		Order("language ASC").
		Find(&balances).Error
	return balances, err
}

func (r *repository) lotTotals(ctx context.Context) ([]lotTotals, error) {
	var rows []lotTotals
	err := r.DB(ctx).
		Model(&models.StockLot{}).
		Select(keyGroup + ", COALESCE(SUM(qty_in), 0) AS received, COALESCE(SUM(qty_remaining), 0) AS remaining").
		Group(keyGroup).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) mutationTotals(ctx context.Context) ([]mutationTotals, error) {
	var rows []mutationTotals
	err := r.DB(ctx).
		Model(&models.StockMutation{}).
		Select(keyGroup + ", COALESCE(SUM(delta), 0) AS theoretical, " +
			"COALESCE(SUM(CASE WHEN delta < 0 THEN -delta ELSE 0 END), 0) AS consumed").
		Group(keyGroup).
		Scan(&rows).Error
	return rows, err
}

// weightedAverage is the remaining-quantity weighted unit cost of open lots,
// invalid when nothing is on hand.
func weightedAverage(lots []models.StockLot) (int, decimal.NullDecimal) {
	remaining := 0
	cost := decimal.Zero
	for _, lot := range lots {
		if lot.QtyRemaining <= 0 {
			continue
		}
		remaining += lot.QtyRemaining
		cost = cost.Add(lot.UnitCost.Mul(decimal.NewFromInt(int64(lot.QtyRemaining))))
	}
	if remaining == 0 {
		return 0, decimal.NullDecimal{}
	}
	return remaining, decimal.NewNullDecimal(cost.Div(decimal.NewFromInt(int64(remaining))).Round(4))
}
