/*
allocation.go - Proportional distribution of budget pools

PURPOSE:
  Distributes a cost-center budget pool (labor / overhead / outsourcing)
  across cost-bearing items. Supports quantity-proportional and fixed-
  ratio allocation, basis selection per allocation rule, and two-tier
  rule precedence (exact cost-element match beats any wildcard,
  regardless of priority; priority breaks ties within a tier).

ROUNDING POLICY:
  Each share is rounded half-up to 4 places EXCEPT the last item, which
  receives the exact remainder. The allocated amounts therefore always
  sum exactly to the input budget - no sen leakage.

DETERMINISM:
  Inputs are ordered slices. The last item in the caller's order absorbs
  the remainder, so callers must supply a stable ordering when exact
  reproducibility across runs matters.

SEE ALSO:
  - calculator.go: drives rule-based allocation for both stages
  - types.go: AllocationRule, CostAllocation
*/
package costing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ItemQuantity is one (item, value) pair in an ordered allocation input.
type ItemQuantity struct {
	ID       string
	Quantity decimal.Decimal
}

// ItemMetrics carries every metric an allocation basis can read.
type ItemMetrics struct {
	RawMaterialQuantity decimal.Decimal
	Weight              decimal.Decimal
	CrudeQuantity       decimal.Decimal
	ProductionHours     decimal.Decimal
}

// AllocationItem is one cost-bearing item with its basis metrics.
type AllocationItem struct {
	ID      string
	Metrics ItemMetrics
}

// =============================================================================
// PROPORTIONAL ALLOCATION
// =============================================================================

// AllocateByQuantity distributes total proportionally to each item's
// share of the summed quantity. A zero quantity sum allocates zero to
// every item. The last item receives the exact remainder so the result
// sums exactly to total.
func AllocateByQuantity(total decimal.Decimal, quantities []ItemQuantity) map[string]decimal.Decimal {
	return allocateProportional(total, quantities)
}

// AllocateByRatio distributes total proportionally to supplied ratios.
// Ratios need not sum to 1; they are normalized internally. Used for
// manual-basis rules.
func AllocateByRatio(total decimal.Decimal, ratios []ItemQuantity) map[string]decimal.Decimal {
	return allocateProportional(total, ratios)
}

func allocateProportional(total decimal.Decimal, weights []ItemQuantity) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal, len(weights))

	totalWeight := decimal.Zero
	for _, w := range weights {
		totalWeight = totalWeight.Add(w.Quantity)
	}
	if totalWeight.IsZero() {
		for _, w := range weights {
			result[w.ID] = decimal.Zero
		}
		return result
	}

	allocated := decimal.Zero
	for i, w := range weights {
		if i == len(weights)-1 {
			// Last item gets the remainder to avoid rounding drift.
			result[w.ID] = total.Sub(allocated)
			break
		}
		amount := Round4(total.Mul(w.Quantity).Div(totalWeight))
		result[w.ID] = amount
		allocated = allocated.Add(amount)
	}
	return result
}

// ComputeAllocationQuantities selects the metric each basis reads,
// preserving the input order. Production hours fall back to raw-material
// quantity when absent or non-positive. Manual yields all zeros: its
// ratios come from rule targets, not from item metrics.
func ComputeAllocationQuantities(basis AllocationBasis, items []AllocationItem) []ItemQuantity {
	out := make([]ItemQuantity, 0, len(items))
	for _, item := range items {
		var qty decimal.Decimal
		switch basis {
		case BasisRawMaterialQuantity:
			qty = item.Metrics.RawMaterialQuantity
		case BasisWeight:
			qty = item.Metrics.Weight
		case BasisCrudeQuantity:
			qty = item.Metrics.CrudeQuantity
		case BasisProductionHours:
			if item.Metrics.ProductionHours.IsPositive() {
				qty = item.Metrics.ProductionHours
			} else {
				qty = item.Metrics.RawMaterialQuantity
			}
		case BasisManual:
			qty = decimal.Zero
		default:
			qty = item.Metrics.RawMaterialQuantity
		}
		out = append(out, ItemQuantity{ID: item.ID, Quantity: qty})
	}
	return out
}

// =============================================================================
// RULE RESOLUTION
// =============================================================================

// findMatchingRule returns the best rule for a cost element from a list
// pre-sorted by priority descending: the first exact cost-element match,
// else the highest-priority wildcard (nil element), else nil.
func findMatchingRule(rules []AllocationRule, element CostElement) *AllocationRule {
	var wildcard *AllocationRule
	for i := range rules {
		r := &rules[i]
		if r.CostElement != nil && *r.CostElement == element {
			return r
		}
		if r.CostElement == nil && wildcard == nil {
			wildcard = r
		}
	}
	return wildcard
}

// =============================================================================
// RULE-BASED EXECUTION
// =============================================================================

// BudgetLine is one (cost element, pool amount) entry in caller order.
type BudgetLine struct {
	Element CostElement
	Amount  decimal.Decimal
}

// RuleBasedInput drives one rule-based allocation pass.
type RuleBasedInput struct {
	SourceCostCenter CostCenterID
	Budgets          []BudgetLine
	Items            []AllocationItem
	Period           PeriodID // empty disables audit rows
	Simulate         bool
	DefaultBasis     AllocationBasis
}

// Allocator executes rule-based allocation against a store.
type Allocator struct {
	Store Store
	Log   *logrus.Logger
}

func NewAllocator(store Store, log *logrus.Logger) *Allocator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Allocator{Store: store, Log: log}
}

// ExecuteRuleBased allocates each budget line across the items. A zero
// budget short-circuits to zero for every item without rule lookup. A
// matching manual rule uses its target ratios (falling back to the
// default basis when no targets are configured); a matching non-manual
// rule uses its own basis; no match falls back to the default basis.
// When not simulating and a period is given, every matched rule writes
// CostAllocation audit rows for its non-zero items.
func (a *Allocator) ExecuteRuleBased(ctx context.Context, in RuleBasedInput) (map[CostElement]map[string]decimal.Decimal, error) {
	rules, err := a.Store.ActiveAllocationRules(ctx, in.SourceCostCenter)
	if err != nil {
		return nil, err
	}

	result := make(map[CostElement]map[string]decimal.Decimal, len(in.Budgets))

	for _, budget := range in.Budgets {
		if budget.Amount.IsZero() {
			zeros := make(map[string]decimal.Decimal, len(in.Items))
			for _, item := range in.Items {
				zeros[item.ID] = decimal.Zero
			}
			result[budget.Element] = zeros
			continue
		}

		rule := findMatchingRule(rules, budget.Element)

		var allocation map[string]decimal.Decimal
		var order []string

		switch {
		case rule != nil && rule.Basis == BasisManual:
			ratios := make([]ItemQuantity, 0, len(rule.Targets))
			for _, t := range rule.Targets {
				ratios = append(ratios, ItemQuantity{ID: string(t.TargetCostCenterID), Quantity: t.Ratio})
			}
			if len(ratios) > 0 {
				allocation = AllocateByRatio(budget.Amount, ratios)
				order = idsOf(ratios)
			} else {
				quantities := ComputeAllocationQuantities(in.DefaultBasis, in.Items)
				allocation = AllocateByQuantity(budget.Amount, quantities)
				order = idsOf(quantities)
			}
		case rule != nil:
			quantities := ComputeAllocationQuantities(rule.Basis, in.Items)
			allocation = AllocateByQuantity(budget.Amount, quantities)
			order = idsOf(quantities)
		default:
			quantities := ComputeAllocationQuantities(in.DefaultBasis, in.Items)
			allocation = AllocateByQuantity(budget.Amount, quantities)
			order = idsOf(quantities)
		}

		result[budget.Element] = allocation

		if !in.Simulate && in.Period != "" && rule != nil {
			if err := a.recordAllocations(ctx, rule, in, budget.Element, allocation, order); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

// recordAllocations writes the audit trail for one fired rule. Basis
// quantities are recomputed with the rule's basis (default basis for
// manual rules, which have no quantity basis of their own).
func (a *Allocator) recordAllocations(ctx context.Context, rule *AllocationRule, in RuleBasedInput, element CostElement, allocation map[string]decimal.Decimal, order []string) error {
	basis := rule.Basis
	if basis == BasisManual {
		basis = in.DefaultBasis
	}
	quantities := ComputeAllocationQuantities(basis, in.Items)

	byID := make(map[string]decimal.Decimal, len(quantities))
	totalQty := decimal.Zero
	for _, q := range quantities {
		byID[q.ID] = q.Quantity
		totalQty = totalQty.Add(q.Quantity)
	}

	executedAt := time.Now().UTC()
	for _, id := range order {
		amount := allocation[id]
		if amount.IsZero() {
			continue
		}
		qty := byID[id]
		ratio := decimal.Zero
		if totalQty.IsPositive() {
			ratio = Round4(qty.Div(totalQty))
		}
		elem := element
		ca := &CostAllocation{
			RuleID:             rule.ID,
			PeriodID:           in.Period,
			SourceCostCenterID: in.SourceCostCenter,
			TargetCostCenterID: in.SourceCostCenter,
			CostElement:        &elem,
			TargetItemID:       id,
			AllocatedAmount:    amount,
			BasisQuantity:      qty,
			Ratio:              ratio,
			ExecutedAt:         executedAt,
		}
		if err := a.Store.InsertCostAllocation(ctx, ca); err != nil {
			return err
		}
	}
	return nil
}

func idsOf(items []ItemQuantity) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
