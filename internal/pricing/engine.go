package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/buyback-backend/pkg/enums"
)

// Reason explains why a quote was or was not allowed.
type Reason string

const (
	ReasonOK                      Reason = "ok"
	ReasonNoTrend                 Reason = "no_trend"
	ReasonUnknownCondition        Reason = "unknown_condition"
	ReasonConditionNotPurchasable Reason = "condition_not_purchasable"
	ReasonOverstock               Reason = "overstock"
	ReasonBelowConditionMinimum   Reason = "below_condition_minimum"
	ReasonBelowFloor              Reason = "below_floor"
)

// Context carries optional demand signals. Nil fields are neutral.
type Context struct {
	DemandRank   *int             `json:"demand_rank,omitempty"`
	VolumeMetric *decimal.Decimal `json:"volume_metric,omitempty"`
	RecentSales  *int             `json:"recent_sales,omitempty"`
	Notable      bool             `json:"notable,omitempty"`
	LowStock     bool             `json:"low_stock,omitempty"`
	OwnQty       *int             `json:"own_qty,omitempty"`
}

// Input is a single quote request.
type Input struct {
	Trend     decimal.NullDecimal
	FoilTrend decimal.NullDecimal
	IsFoil    bool
	Condition enums.CardCondition
	Context   Context
}

// PayoutQuote is the engine output. Unit is zero whenever Allowed is false.
type PayoutQuote struct {
	Unit      decimal.Decimal     `json:"unit"`
	Pct       decimal.Decimal     `json:"pct"`
	UsedTrend decimal.NullDecimal `json:"used_trend"`
	Allowed   bool                `json:"allowed"`
	Reason    Reason              `json:"reason"`
}

// Engine evaluates a fixed Policy. It is safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine validates the policy and takes a private copy of it.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: policy.clone()}, nil
}

// MustDefaultEngine builds an engine over DefaultPolicy.
func MustDefaultEngine() *Engine {
	engine, err := NewEngine(DefaultPolicy())
	if err != nil {
		panic(err)
	}
	return engine
}

// Policy returns a copy of the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy.clone()
}

// Quote prices one card. It never fails; bad or missing input yields a disallowed quote.
func (e *Engine) Quote(in Input) PayoutQuote {
	p := e.policy

	raw, ok := selectRaw(in)
	if !ok {
		return disallow(decimal.NullDecimal{}, decimal.Zero, ReasonNoTrend)
	}

	used := raw
	if in.IsFoil {
		factor := p.FoilDiscount.AtOrBelowFactor
		if raw.GreaterThan(p.FoilDiscount.Threshold) {
			factor = p.FoilDiscount.AboveFactor
		}
		used = raw.Mul(factor)
	}
	usedTrend := decimal.NewNullDecimal(used)

	rule, known := p.Conditions[in.Condition]
	if !known {
		return disallow(usedTrend, decimal.Zero, ReasonUnknownCondition)
	}
	if !rule.Purchasable {
		return disallow(usedTrend, decimal.Zero, ReasonConditionNotPurchasable)
	}

	if in.Context.OwnQty != nil && *in.Context.OwnQty >= p.overstockCap(raw) {
		return disallow(usedTrend, decimal.Zero, ReasonOverstock)
	}

	minimum := rule.MinTrend
	if p.demandBoost(in.Context) {
		minimum = decimal.Zero
	}
	if used.LessThan(minimum) {
		return disallow(usedTrend, decimal.Zero, ReasonBelowConditionMinimum)
	}

	pct := p.basePct(used)
	pct = p.applyBumps(pct, in.Context)
	if pct.GreaterThan(p.MaxPct) {
		pct = p.MaxPct
	}

	unit := used.Mul(pct).Mul(rule.Multiplier).Round(p.Precision)
	if unit.LessThan(p.Floor) {
		return disallow(usedTrend, pct, ReasonBelowFloor)
	}

	return PayoutQuote{
		Unit:      unit,
		Pct:       pct,
		UsedTrend: usedTrend,
		Allowed:   true,
		Reason:    ReasonOK,
	}
}

func selectRaw(in Input) (decimal.Decimal, bool) {
	if in.IsFoil && present(in.FoilTrend) {
		return in.FoilTrend.Decimal, true
	}
	if present(in.Trend) {
		return in.Trend.Decimal, true
	}
	return decimal.Zero, false
}

func present(v decimal.NullDecimal) bool {
	return v.Valid && v.Decimal.IsPositive()
}

func disallow(used decimal.NullDecimal, pct decimal.Decimal, reason Reason) PayoutQuote {
	return PayoutQuote{
		Unit:      decimal.Zero,
		Pct:       pct,
		UsedTrend: used,
		Allowed:   false,
		Reason:    reason,
	}
}

func (p Policy) overstockCap(raw decimal.Decimal) int {
	for _, tier := range p.OverstockTiers {
		if raw.GreaterThanOrEqual(tier.MinRaw) {
			return tier.Cap
		}
	}
	return p.OverstockTiers[len(p.OverstockTiers)-1].Cap
}

func (p Policy) demandBoost(ctx Context) bool {
	if ctx.DemandRank != nil && *ctx.DemandRank < p.Demand.RankBelow {
		return true
	}
	return ctx.VolumeMetric != nil && ctx.VolumeMetric.GreaterThan(p.Demand.VolumeAbove)
}

func (p Policy) basePct(used decimal.Decimal) decimal.Decimal {
	for _, tier := range p.BaseTiers {
		if used.GreaterThan(tier.Above) {
			return tier.Pct
		}
	}
	return p.FallbackPct
}

func (p Policy) applyBumps(pct decimal.Decimal, ctx Context) decimal.Decimal {
	for _, bump := range p.Bumps {
		if bump.matches(ctx) {
			pct = decimal.Max(pct, bump.Pct)
		}
	}
	// low stock steps up from the highest fixed bump
	if ctx.LowStock && ctx.DemandRank != nil && *ctx.DemandRank < p.LowStock.RankBelow {
		pct = decimal.Max(pct, decimal.Min(pct.Add(p.LowStock.Step), p.LowStock.Ceiling))
	}
	return pct
}

func (b Bump) matches(ctx Context) bool {
	if !b.hasCriteria() {
		return false
	}
	if b.RankBelow != nil && (ctx.DemandRank == nil || *ctx.DemandRank >= *b.RankBelow) {
		return false
	}
	if b.VolumeAbove != nil && (ctx.VolumeMetric == nil || !ctx.VolumeMetric.GreaterThan(*b.VolumeAbove)) {
		return false
	}
	if b.RecentSalesAbove != nil && (ctx.RecentSales == nil || *ctx.RecentSales <= *b.RecentSalesAbove) {
		return false
	}
	if b.RequireNotable && !ctx.Notable {
		return false
	}
	return true
}
