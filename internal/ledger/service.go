package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/buyback-backend/pkg/db"
	"github.com/angelmondragon/buyback-backend/pkg/db/models"
	"github.com/angelmondragon/buyback-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buyback-backend/pkg/errors"
	"github.com/angelmondragon/buyback-backend/pkg/logger"
	"github.com/angelmondragon/buyback-backend/pkg/metrics"
	"github.com/angelmondragon/buyback-backend/pkg/pagination"
)

const (
	opReceive = "receive"
	opConsume = "consume"
	opAdjust  = "adjust"

	defaultMaxAttempts    = 5
	defaultRetryBaseDelay = 25 * time.Millisecond
	defaultRetryMaxDelay  = 500 * time.Millisecond

	maxLanguageLength = 8

	adjustBatchPrefix = "ADJ-"
	adjustBatchLayout = "20060102"
)

// Service is the FIFO cost-lot inventory ledger.
type Service interface {
	Receive(ctx context.Context, input ReceiveInput) (*models.StockBalance, error)
	Consume(ctx context.Context, input ConsumeInput) (*models.StockBalance, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.StockBalance, error)
	GetBalance(ctx context.Context, key models.StockKey) (*models.StockBalance, error)
	OnHand(ctx context.Context, key models.StockKey) (int, error)
	ListLots(ctx context.Context, key models.StockKey, includeDepleted bool) ([]models.StockLot, error)
	ListMutations(ctx context.Context, key models.StockKey, params pagination.Params) (*MutationPage, error)
	Reconcile(ctx context.Context) (*Report, error)
}

// Store is the transactional datasource the ledger runs on.
type Store interface {
	db.TxRunner
	DB() *gorm.DB
}

// ReceiveInput opens a new lot.
type ReceiveInput struct {
	Key        models.StockKey `json:"key"`
	Qty        int             `json:"qty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	SourceCode string          `json:"source_code"`
	SourceDate time.Time       `json:"source_date"`
	Location   *string         `json:"location,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// ConsumeInput removes stock oldest lot first. Reference is typically an order number.
type ConsumeInput struct {
	Key       models.StockKey `json:"key"`
	Qty       int             `json:"qty"`
	Reason    string          `json:"reason"`
	Reference *string         `json:"reference,omitempty"`
}

// AdjustInput is a manual correction; positive deltas open a lot at the current average cost.
type AdjustInput struct {
	Key    models.StockKey `json:"key"`
	Delta  int             `json:"delta"`
	Reason string          `json:"reason"`
}

// ServiceParams wires the ledger.
type ServiceParams struct {
	Store          Store
	Logger         *logger.Logger
	Metrics        *metrics.LedgerMetrics
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	LockTimeout    time.Duration
	Now            func() time.Time
}

type service struct {
	store          Store
	logg           *logger.Logger
	metrics        *metrics.LedgerMetrics
	maxAttempts    int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	lockTimeout    time.Duration
	now            func() time.Time
}

// NewService builds the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("ledger store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		store:          params.Store,
		logg:           params.Logger,
		metrics:        params.Metrics,
		maxAttempts:    params.MaxAttempts,
		retryBaseDelay: params.RetryBaseDelay,
		retryMaxDelay:  params.RetryMaxDelay,
		lockTimeout:    params.LockTimeout,
		now:            params.Now,
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempts
	}
	if svc.retryBaseDelay <= 0 {
		svc.retryBaseDelay = defaultRetryBaseDelay
	}
	if svc.retryMaxDelay <= 0 {
		svc.retryMaxDelay = defaultRetryMaxDelay
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Receive(ctx context.Context, input ReceiveInput) (*models.StockBalance, error) {
	key, err := normalizeKey(input.Key)
	if err != nil {
		return nil, err
	}
	if input.Qty <= 0 {
		return nil, validationError("qty must be positive")
	}
	if input.UnitCost.IsNegative() {
		return nil, validationError("unit_cost must not be negative")
	}
	sourceCode := strings.TrimSpace(input.SourceCode)
	if sourceCode == "" {
		return nil, validationError("source_code is required")
	}
	if input.SourceDate.IsZero() {
		return nil, validationError("source_date is required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "received " + sourceCode
	}

	return s.run(ctx, opReceive, key, func(ctx context.Context, repo *repository, now time.Time) (*models.StockBalance, error) {
		if err := repo.ensureBalance(ctx, key, now); err != nil {
			return nil, err
		}
		balance, err := repo.lockBalance(ctx, key)
		if err != nil {
			return nil, err
		}
		return s.openLot(ctx, repo, balance, lotSpec{
			qty:        input.Qty,
			unitCost:   input.UnitCost,
			sourceCode: sourceCode,
			sourceDate: input.SourceDate.UTC(),
			location:   input.Location,
			kind:       enums.StockMutationReceive,
			reason:     reason,
		}, now)
	})
}

func (s *service) Consume(ctx context.Context, input ConsumeInput) (*models.StockBalance, error) {
	key, err := normalizeKey(input.Key)
	if err != nil {
		return nil, err
	}
	if input.Qty <= 0 {
		return nil, validationError("qty must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, validationError("reason is required")
	}

	return s.run(ctx, opConsume, key, func(ctx context.Context, repo *repository, now time.Time) (*models.StockBalance, error) {
		balance, err := repo.lockBalance(ctx, key)
		if err != nil {
			return nil, err
		}
		return s.drainLots(ctx, repo, balance, input.Qty, enums.StockMutationConsume, reason, input.Reference, now)
	})
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.StockBalance, error) {
	key, err := normalizeKey(input.Key)
	if err != nil {
		return nil, err
	}
	if input.Delta == 0 {
		return nil, validationError("delta must not be zero")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, validationError("reason is required")
	}

	return s.run(ctx, opAdjust, key, func(ctx context.Context, repo *repository, now time.Time) (*models.StockBalance, error) {
		if input.Delta < 0 {
			balance, err := repo.lockBalance(ctx, key)
			if err != nil {
				return nil, err
			}
			return s.drainLots(ctx, repo, balance, -input.Delta, enums.StockMutationAdjustOut, reason, nil, now)
		}

		if err := repo.ensureBalance(ctx, key, now); err != nil {
			return nil, err
		}
		balance, err := repo.lockBalance(ctx, key)
		if err != nil {
			return nil, err
		}
		unitCost := decimal.Zero
		if balance.QtyOnHand > 0 && balance.AvgUnitCost.Valid {
			unitCost = balance.AvgUnitCost.Decimal
		}
		today := now.UTC().Truncate(24 * time.Hour)
		return s.openLot(ctx, repo, balance, lotSpec{
			qty:        input.Delta,
			unitCost:   unitCost,
			sourceCode: AdjustmentBatchCode(today),
			sourceDate: today,
			kind:       enums.StockMutationAdjustIn,
			reason:     reason,
		}, now)
	})
}

// AdjustmentBatchCode is the synthetic daily source code for manual adjustments.
func AdjustmentBatchCode(day time.Time) string {
	return adjustBatchPrefix + day.UTC().Format(adjustBatchLayout)
}

func (s *service) GetBalance(ctx context.Context, key models.StockKey) (*models.StockBalance, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	return newRepository(s.store.DB()).findBalance(ctx, key)
}

// OnHand returns the on-hand quantity, zero when the key was never received.
func (s *service) OnHand(ctx context.Context, key models.StockKey) (int, error) {
	balance, err := s.GetBalance(ctx, key)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.QtyOnHand, nil
}

func (s *service) ListLots(ctx context.Context, key models.StockKey, includeDepleted bool) ([]models.StockLot, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	return newRepository(s.store.DB()).listLots(ctx, key, includeDepleted)
}

// MutationPage is one newest-first page of a key's audit log.
type MutationPage struct {
	Mutations  []models.StockMutation `json:"mutations"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

func (s *service) ListMutations(ctx context.Context, key models.StockKey, params pagination.Params) (*MutationPage, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := newRepository(s.store.DB()).listMutations(ctx, key, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, err
	}
	page := &MutationPage{Mutations: rows}
	if len(rows) > limit {
		last := rows[limit-1]
		page.Mutations = rows[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

type lotSpec struct {
	qty        int
	unitCost   decimal.Decimal
	sourceCode string
	sourceDate time.Time
	location   *string
	kind       enums.StockMutationKind
	reason     string
}

func (s *service) openLot(ctx context.Context, repo *repository, balance *models.StockBalance, spec lotSpec, now time.Time) (*models.StockBalance, error) {
	key := balance.Key()
	lot := &models.StockLot{
		ID:           uuid.Must(uuid.NewV7()),
		ItemID:       key.ItemID,
		IsFoil:       key.IsFoil,
		Condition:    key.Condition,
		Language:     key.Language,
		QtyIn:        spec.qty,
		QtyRemaining: spec.qty,
		UnitCost:     spec.unitCost,
		SourceCode:   spec.sourceCode,
		SourceDate:   spec.sourceDate,
		Location:     spec.location,
		CreatedAt:    now,
	}
	if err := repo.createLot(ctx, lot); err != nil {
		return nil, err
	}
	lots, err := repo.openLots(ctx, key)
	if err != nil {
		return nil, err
	}
	reference := spec.sourceCode
	return s.settle(ctx, repo, balance, lots, spec.qty, spec.kind, spec.reason, &reference, now)
}

func (s *service) drainLots(ctx context.Context, repo *repository, balance *models.StockBalance, qty int, kind enums.StockMutationKind, reason string, reference *string, now time.Time) (*models.StockBalance, error) {
	lots, err := repo.openLots(ctx, balance.Key())
	if err != nil {
		return nil, err
	}
	have := 0
	for _, lot := range lots {
		have += lot.QtyRemaining
	}
	if have < qty {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("have %d, need %d", have, qty)).
			WithDetails(map[string]int{"have": have, "need": qty})
	}

	need := qty
	for i := range lots {
		if need == 0 {
			break
		}
		take := min(lots[i].QtyRemaining, need)
		if err := repo.decrementLot(ctx, lots[i].ID, take); err != nil {
			return nil, err
		}
		lots[i].QtyRemaining -= take
		need -= take
	}
	return s.settle(ctx, repo, balance, lots, -qty, kind, reason, reference, now)
}

// settle applies delta to the balance, verifies it still matches the lots and
// appends the audit record.
func (s *service) settle(ctx context.Context, repo *repository, balance *models.StockBalance, lots []models.StockLot, delta int, kind enums.StockMutationKind, reason string, reference *string, now time.Time) (*models.StockBalance, error) {
	key := balance.Key()
	_, avg := weightedAverage(lots)
	balance.QtyOnHand += delta
	balance.AvgUnitCost = avg
	balance.UpdatedAt = now

	remaining, err := repo.sumRemaining(ctx, key)
	if err != nil {
		return nil, err
	}
	if int64(balance.QtyOnHand) != remaining {
		return nil, pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("ledger invariant violated for %s: on hand %d, lots remaining %d", key, balance.QtyOnHand, remaining)).
			WithDetails(map[string]int64{"on_hand": int64(balance.QtyOnHand), "lots_remaining": remaining})
	}

	if err := repo.saveBalance(ctx, balance); err != nil {
		return nil, err
	}
	mutation := &models.StockMutation{
		ID:        uuid.Must(uuid.NewV7()),
		ItemID:    key.ItemID,
		IsFoil:    key.IsFoil,
		Condition: key.Condition,
		Language:  key.Language,
		Delta:     delta,
		Kind:      kind,
		Reason:    reason,
		Reference: reference,
		CreatedAt: now,
	}
	if err := repo.appendMutation(ctx, mutation); err != nil {
		return nil, err
	}
	return balance, nil
}

type txFunc func(ctx context.Context, repo *repository, now time.Time) (*models.StockBalance, error)

// run executes fn in one transaction, replaying the whole transaction on
// transient store conflicts.
func (s *service) run(ctx context.Context, op string, key models.StockKey, fn txFunc) (*models.StockBalance, error) {
	start := time.Now()
	ctx = s.logg.WithOperation(ctx, op)
	ctx = s.logg.WithFields(ctx, key.Fields())

	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1),
		retry.WithCappedDuration(s.retryMaxDelay, retry.NewExponential(s.retryBaseDelay)))

	attempt := 0
	var result *models.StockBalance
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.IncRetry(op)
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "retrying ledger transaction")
		}
		err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
			if err := db.SetLockTimeout(tx, s.lockTimeout); err != nil {
				return err
			}
			balance, err := fn(ctx, newRepository(tx), s.now().UTC())
			if err != nil {
				return err
			}
			result = balance
			return nil
		})
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	err = classify(err)
	s.metrics.ObserveOperation(op, outcomeFor(err), time.Since(start))
	if err != nil {
		s.logFailure(ctx, err)
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "qty_on_hand", result.QtyOnHand), "ledger operation committed")
	return result, nil
}

func (s *service) logFailure(ctx context.Context, err error) {
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeInsufficientStock:
		s.logg.Info(s.logg.WithField(ctx, "error", err.Error()), "ledger operation rejected")
	case pkgerrors.CodeConflict:
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "ledger operation gave up after conflicts")
	default:
		s.logg.Error(s.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err)), "ledger operation failed", err)
	}
}

func isTransient(err error) bool {
	return err != nil && (db.IsRetryable(err) || errors.Is(err, errLotChanged))
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ledger transaction conflicted; retry the whole operation")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "ledger transaction did not complete")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ledger operation failed")
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeValidation:
		return metrics.OutcomeValidation
	case pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case pkgerrors.CodeInsufficientStock:
		return metrics.OutcomeInsufficientStock
	case pkgerrors.CodeConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}

func validationError(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}

// normalizeKey validates a stocking key and canonicalises its language code.
func normalizeKey(key models.StockKey) (models.StockKey, error) {
	if key.ItemID <= 0 {
		return key, validationError("item_id must be positive")
	}
	condition, err := enums.ParseCardCondition(string(key.Condition))
	if err != nil {
		return key, validationError(err.Error())
	}
	key.Condition = condition
	key.Language = strings.ToUpper(strings.TrimSpace(key.Language))
	if key.Language == "" {
		return key, validationError("language is required")
	}
	if len(key.Language) > maxLanguageLength {
		return key, validationError("language code is too long")
	}
	return key, nil
}
