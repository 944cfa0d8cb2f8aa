package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/buyback-backend/pkg/enums"
)

// ConditionRule is the per-condition multiplier and minimum used trend.
type ConditionRule struct {
	Multiplier  decimal.Decimal `json:"multiplier"`
	MinTrend    decimal.Decimal `json:"min_trend"`
	Purchasable bool            `json:"purchasable"`
}

// OverstockTier caps how many copies we hold once the raw trend reaches MinRaw.
type OverstockTier struct {
	MinRaw decimal.Decimal `json:"min_raw"`
	Cap    int             `json:"cap"`
}

// PctTier assigns a base payout percentage when the used trend is strictly above Above.
type PctTier struct {
	Above decimal.Decimal `json:"above"`
	Pct   decimal.Decimal `json:"pct"`
}

// FoilDiscount haircuts foil trends; trends above Threshold take AboveFactor.
type FoilDiscount struct {
	Threshold       decimal.Decimal `json:"threshold"`
	AboveFactor     decimal.Decimal `json:"above_factor"`
	AtOrBelowFactor decimal.Decimal `json:"at_or_below_factor"`
}

// DemandWaiver drops the condition minimum for high-demand items.
type DemandWaiver struct {
	RankBelow   int             `json:"rank_below"`
	VolumeAbove decimal.Decimal `json:"volume_above"`
}

// Bump raises the payout percentage to Pct when every configured criterion holds.
type Bump struct {
	Name             string           `json:"name"`
	RankBelow        *int             `json:"rank_below,omitempty"`
	VolumeAbove      *decimal.Decimal `json:"volume_above,omitempty"`
	RecentSalesAbove *int             `json:"recent_sales_above,omitempty"`
	RequireNotable   bool             `json:"require_notable,omitempty"`
	Pct              decimal.Decimal  `json:"pct"`
}

func (b Bump) hasCriteria() bool {
	return b.RankBelow != nil || b.VolumeAbove != nil || b.RecentSalesAbove != nil || b.RequireNotable
}

// LowStockBump nudges pct by Step (never past Ceiling) for scarce, ranked items.
type LowStockBump struct {
	RankBelow int             `json:"rank_below"`
	Step      decimal.Decimal `json:"step"`
	Ceiling   decimal.Decimal `json:"ceiling"`
}

// Policy is the complete payout rule table. Engines copy it on construction,
// so a Policy value can be tweaked for experiments without touching live engines.
type Policy struct {
	FoilDiscount   FoilDiscount                          `json:"foil_discount"`
	Conditions     map[enums.CardCondition]ConditionRule `json:"conditions"`
	OverstockTiers []OverstockTier                       `json:"overstock_tiers"`
	Demand         DemandWaiver                          `json:"demand"`
	BaseTiers      []PctTier                             `json:"base_tiers"`
	FallbackPct    decimal.Decimal                       `json:"fallback_pct"`
	Bumps          []Bump                                `json:"bumps"`
	LowStock       LowStockBump                          `json:"low_stock"`
	MaxPct         decimal.Decimal                       `json:"max_pct"`
	Floor          decimal.Decimal                       `json:"floor"`
	Precision      int32                                 `json:"precision"`
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func intPtr(v int) *int { return &v }

func decPtr(value string) *decimal.Decimal {
	v := d(value)
	return &v
}

// DefaultPolicy returns the production buyback table.
func DefaultPolicy() Policy {
	return Policy{
		FoilDiscount: FoilDiscount{
			Threshold:       d("50"),
			AboveFactor:     d("0.90"),
			AtOrBelowFactor: d("0.95"),
		},
		Conditions: map[enums.CardCondition]ConditionRule{
			enums.CardConditionNearMint:  {Multiplier: d("1.0"), MinTrend: d("0.75"), Purchasable: true},
			enums.CardConditionExcellent: {Multiplier: d("1.0"), MinTrend: d("0.75"), Purchasable: true},
			enums.CardConditionGood:      {Multiplier: d("0.9"), MinTrend: d("3.0"), Purchasable: true},
			enums.CardConditionLight:     {Multiplier: d("0.8"), MinTrend: d("10.0"), Purchasable: true},
			enums.CardConditionPlayed:    {Purchasable: false},
			enums.CardConditionPoor:      {Purchasable: false},
		},
		OverstockTiers: []OverstockTier{
			{MinRaw: d("100"), Cap: 4},
			{MinRaw: d("10"), Cap: 8},
			{MinRaw: d("0"), Cap: 12},
		},
		Demand: DemandWaiver{RankBelow: 250, VolumeAbove: d("0.3")},
		BaseTiers: []PctTier{
			{Above: d("75"), Pct: d("0.75")},
			{Above: d("3"), Pct: d("0.70")},
			{Above: d("0.75"), Pct: d("0.65")},
		},
		FallbackPct: d("0.65"),
		Bumps: []Bump{
			{Name: "rank_top_200", RankBelow: intPtr(200), Pct: d("0.90")},
			{Name: "rank_top_500", RankBelow: intPtr(500), Pct: d("0.80")},
			{Name: "volume_high", VolumeAbove: decPtr("3"), Pct: d("0.85")},
			{Name: "volume_moderate", VolumeAbove: decPtr("0.3"), Pct: d("0.80")},
			{Name: "notable", RequireNotable: true, Pct: d("0.85")},
			{Name: "recent_sales", RecentSalesAbove: intPtr(3), Pct: d("0.88")},
			{Name: "volume_and_rank", VolumeAbove: decPtr("1"), RankBelow: intPtr(250), Pct: d("0.90")},
		},
		LowStock:  LowStockBump{RankBelow: 500, Step: d("0.02"), Ceiling: d("0.92")},
		MaxPct:    d("0.95"),
		Floor:     d("0.35"),
		Precision: 2,
	}
}

// LoadPolicyFile reads a JSON policy override from disk.
func LoadPolicyFile(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read pricing policy %q: %w", path, err)
	}
	var policy Policy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("decode pricing policy %q: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate checks the policy is internally consistent.
func (p Policy) Validate() error {
	one := decimal.NewFromInt(1)
	if len(p.Conditions) == 0 {
		return fmt.Errorf("pricing policy: at least one condition rule is required")
	}
	for cond, rule := range p.Conditions {
		if !cond.IsValid() {
			return fmt.Errorf("pricing policy: unknown condition %q", cond)
		}
		if !rule.Purchasable {
			continue
		}
		if !rule.Multiplier.IsPositive() || rule.Multiplier.GreaterThan(one) {
			return fmt.Errorf("pricing policy: condition %s multiplier must be in (0,1]", cond)
		}
		if rule.MinTrend.IsNegative() {
			return fmt.Errorf("pricing policy: condition %s minimum must not be negative", cond)
		}
	}
	if len(p.OverstockTiers) == 0 {
		return fmt.Errorf("pricing policy: overstock tiers are required")
	}
	for _, tier := range p.OverstockTiers {
		if tier.Cap <= 0 {
			return fmt.Errorf("pricing policy: overstock cap must be positive")
		}
	}
	if !validPct(p.FallbackPct) || !validPct(p.MaxPct) {
		return fmt.Errorf("pricing policy: fallback and max pct must be in (0,1]")
	}
	for _, tier := range p.BaseTiers {
		if !validPct(tier.Pct) {
			return fmt.Errorf("pricing policy: base tier pct must be in (0,1]")
		}
	}
	for _, bump := range p.Bumps {
		if !bump.hasCriteria() {
			return fmt.Errorf("pricing policy: bump %q has no criteria", bump.Name)
		}
		if !validPct(bump.Pct) {
			return fmt.Errorf("pricing policy: bump %q pct must be in (0,1]", bump.Name)
		}
	}
	if !p.FoilDiscount.AboveFactor.IsPositive() || !p.FoilDiscount.AtOrBelowFactor.IsPositive() {
		return fmt.Errorf("pricing policy: foil discount factors must be positive")
	}
	if p.Floor.IsNegative() {
		return fmt.Errorf("pricing policy: floor must not be negative")
	}
	if p.Precision < 0 {
		return fmt.Errorf("pricing policy: precision must not be negative")
	}
	return nil
}

func validPct(v decimal.Decimal) bool {
	return v.IsPositive() && v.LessThanOrEqual(decimal.NewFromInt(1))
}

// clone deep-copies the policy and orders its tiers for evaluation.
func (p Policy) clone() Policy {
	out := p
	out.Conditions = make(map[enums.CardCondition]ConditionRule, len(p.Conditions))
	for k, v := range p.Conditions {
		out.Conditions[k] = v
	}
	out.OverstockTiers = append([]OverstockTier(nil), p.OverstockTiers...)
	sort.SliceStable(out.OverstockTiers, func(i, j int) bool {
		return out.OverstockTiers[i].MinRaw.GreaterThan(out.OverstockTiers[j].MinRaw)
	})
	out.BaseTiers = append([]PctTier(nil), p.BaseTiers...)
	sort.SliceStable(out.BaseTiers, func(i, j int) bool {
		return out.BaseTiers[i].Above.GreaterThan(out.BaseTiers[j].Above)
	})
	out.Bumps = make([]Bump, len(p.Bumps))
	for i, b := range p.Bumps {
		nb := b
		if b.RankBelow != nil {
			nb.RankBelow = intPtr(*b.RankBelow)
		}
		if b.RecentSalesAbove != nil {
			nb.RecentSalesAbove = intPtr(*b.RecentSalesAbove)
		}
		if b.VolumeAbove != nil {
			v := *b.VolumeAbove
			nb.VolumeAbove = &v
		}
		out.Bumps[i] = nb
	}
	return out
}
