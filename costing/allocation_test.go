package costing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakawak223/stdcost/costing"
	"github.com/arakawak223/stdcost/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return costing.MustDecimal(s) }

func quantities(pairs ...string) []costing.ItemQuantity {
	var out []costing.ItemQuantity
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, costing.ItemQuantity{ID: pairs[i], Quantity: d(pairs[i+1])})
	}
	return out
}

// =============================================================================
// PROPORTIONAL ALLOCATION
// =============================================================================

func TestAllocateByQuantity_SumsExactlyToTotal(t *testing.T) {
	// GIVEN: 100 yen split across three equal shares that do not divide evenly
	// WHEN: Allocating by quantity
	// THEN: Each share is rounded to 4 places and the last absorbs the
	//       remainder so the sum is exactly 100

	result := costing.AllocateByQuantity(d("100"), quantities("a", "3", "b", "3", "c", "3"))

	assert.True(t, result["a"].Equal(d("33.3333")), "got %s", result["a"])
	assert.True(t, result["b"].Equal(d("33.3333")), "got %s", result["b"])
	assert.True(t, result["c"].Equal(d("33.3334")), "got %s", result["c"])

	sum := result["a"].Add(result["b"]).Add(result["c"])
	assert.True(t, sum.Equal(d("100")), "shares must sum exactly to the total, got %s", sum)
}

func TestAllocateByQuantity_ZeroQuantitySum(t *testing.T) {
	// GIVEN: A positive total but every item has zero quantity
	// WHEN: Allocating
	// THEN: Every item gets zero; nothing is distributed

	result := costing.AllocateByQuantity(d("5000"), quantities("a", "0", "b", "0"))

	assert.True(t, result["a"].IsZero())
	assert.True(t, result["b"].IsZero())
}

func TestAllocateByQuantity_ProportionalShares(t *testing.T) {
	// GIVEN: A 10 yen pool over weights 1 and 2
	// WHEN: Allocating
	// THEN: The first share is Round4(10/3), the second is the exact remainder

	result := costing.AllocateByQuantity(d("10"), quantities("a", "1", "b", "2"))

	assert.True(t, result["a"].Equal(d("3.3333")), "got %s", result["a"])
	assert.True(t, result["b"].Equal(d("6.6667")), "got %s", result["b"])
}

func TestAllocateByRatio_NormalizesRatios(t *testing.T) {
	// GIVEN: Manual ratios 0.3 / 0.7 (already normalized, but any scale works)
	// WHEN: Allocating 1000
	// THEN: 300 / 700

	result := costing.AllocateByRatio(d("1000"), quantities("x", "0.3", "y", "0.7"))

	assert.True(t, result["x"].Equal(d("300")), "got %s", result["x"])
	assert.True(t, result["y"].Equal(d("700")), "got %s", result["y"])
}

func TestComputeAllocationQuantities_ProductionHoursFallback(t *testing.T) {
	// GIVEN: A production-hours basis where one item has no recorded hours
	// WHEN: Computing basis quantities
	// THEN: The item without hours falls back to raw material quantity

	items := []costing.AllocationItem{
		{ID: "with-hours", Metrics: costing.ItemMetrics{ProductionHours: d("8"), RawMaterialQuantity: d("100")}},
		{ID: "no-hours", Metrics: costing.ItemMetrics{RawMaterialQuantity: d("50")}},
	}

	out := costing.ComputeAllocationQuantities(costing.BasisProductionHours, items)

	require.Len(t, out, 2)
	assert.True(t, out[0].Quantity.Equal(d("8")))
	assert.True(t, out[1].Quantity.Equal(d("50")))
}

// =============================================================================
// RULE-BASED EXECUTION
// =============================================================================

func seedAllocationRules(t *testing.T, store *memory.Memory, rules ...costing.AllocationRule) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.PutCostCenter(ctx, &costing.CostCenter{
		ID: "cc-src", Code: "CC-1", Name: "src", CenterType: costing.CenterManufacturing, IsActive: true,
	}))
	require.NoError(t, store.PutPeriod(ctx, &costing.FiscalPeriod{
		ID: "2025-04", Year: 2025, Month: 4, Status: costing.PeriodOpen,
	}))
	for i := range rules {
		require.NoError(t, store.PutAllocationRule(ctx, &rules[i]))
	}
}

func TestExecuteRuleBased_ExactElementMatchBeatsWildcardPriority(t *testing.T) {
	// GIVEN: A low-priority rule matching labor exactly (weight basis) and a
	//        high-priority wildcard rule (raw quantity basis)
	// WHEN: Allocating a labor budget
	// THEN: The exact match wins and the weight basis is used

	store := memory.New()
	labor := costing.ElementLabor
	seedAllocationRules(t, store,
		costing.AllocationRule{
			ID: "r-exact", Name: "labor by weight", SourceCostCenterID: "cc-src",
			CostElement: &labor, Basis: costing.BasisWeight, Priority: 1, IsActive: true,
		},
		costing.AllocationRule{
			ID: "r-wild", Name: "anything by quantity", SourceCostCenterID: "cc-src",
			Basis: costing.BasisRawMaterialQuantity, Priority: 100, IsActive: true,
		},
	)

	alloc := costing.NewAllocator(store, nil)
	result, err := alloc.ExecuteRuleBased(context.Background(), costing.RuleBasedInput{
		SourceCostCenter: "cc-src",
		Budgets:          []costing.BudgetLine{{Element: costing.ElementLabor, Amount: d("100")}},
		Items: []costing.AllocationItem{
			// Weight says 1:3, raw quantity says 1:1. The split tells us
			// which basis fired.
			{ID: "a", Metrics: costing.ItemMetrics{Weight: d("1"), RawMaterialQuantity: d("5")}},
			{ID: "b", Metrics: costing.ItemMetrics{Weight: d("3"), RawMaterialQuantity: d("5")}},
		},
		Simulate:     true,
		DefaultBasis: costing.BasisRawMaterialQuantity,
	})
	require.NoError(t, err)

	laborAlloc := result[costing.ElementLabor]
	assert.True(t, laborAlloc["a"].Equal(d("25")), "got %s", laborAlloc["a"])
	assert.True(t, laborAlloc["b"].Equal(d("75")), "got %s", laborAlloc["b"])
}

func TestExecuteRuleBased_ZeroBudgetShortCircuits(t *testing.T) {
	// GIVEN: A zero overhead budget
	// WHEN: Allocating
	// THEN: Every item gets zero and no audit rows are written

	store := memory.New()
	seedAllocationRules(t, store, costing.AllocationRule{
		ID: "r-wild", Name: "any", SourceCostCenterID: "cc-src",
		Basis: costing.BasisRawMaterialQuantity, Priority: 1, IsActive: true,
	})

	alloc := costing.NewAllocator(store, nil)
	result, err := alloc.ExecuteRuleBased(context.Background(), costing.RuleBasedInput{
		SourceCostCenter: "cc-src",
		Budgets:          []costing.BudgetLine{{Element: costing.ElementOverhead, Amount: decimal.Zero}},
		Items: []costing.AllocationItem{
			{ID: "a", Metrics: costing.ItemMetrics{RawMaterialQuantity: d("10")}},
		},
		Period:       "2025-04",
		DefaultBasis: costing.BasisRawMaterialQuantity,
	})
	require.NoError(t, err)
	assert.True(t, result[costing.ElementOverhead]["a"].IsZero())

	audits, err := store.CostAllocationsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Empty(t, audits)
}

func TestExecuteRuleBased_WritesAuditRows(t *testing.T) {
	// GIVEN: A matched rule, a period, and simulate off
	// WHEN: Allocating 100 over quantities 1:3
	// THEN: One audit row per non-zero item with ratio Round4(qty/total)

	store := memory.New()
	seedAllocationRules(t, store, costing.AllocationRule{
		ID: "r-wild", Name: "any", SourceCostCenterID: "cc-src",
		Basis: costing.BasisRawMaterialQuantity, Priority: 1, IsActive: true,
	})

	alloc := costing.NewAllocator(store, nil)
	_, err := alloc.ExecuteRuleBased(context.Background(), costing.RuleBasedInput{
		SourceCostCenter: "cc-src",
		Budgets:          []costing.BudgetLine{{Element: costing.ElementLabor, Amount: d("100")}},
		Items: []costing.AllocationItem{
			{ID: "a", Metrics: costing.ItemMetrics{RawMaterialQuantity: d("1")}},
			{ID: "b", Metrics: costing.ItemMetrics{RawMaterialQuantity: d("3")}},
		},
		Period:       "2025-04",
		DefaultBasis: costing.BasisRawMaterialQuantity,
	})
	require.NoError(t, err)

	audits, err := store.CostAllocationsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, audits, 2)

	byItem := map[string]costing.CostAllocation{}
	for _, a := range audits {
		byItem[a.TargetItemID] = a
	}
	assert.True(t, byItem["a"].Ratio.Equal(d("0.25")), "got %s", byItem["a"].Ratio)
	assert.True(t, byItem["b"].Ratio.Equal(d("0.75")), "got %s", byItem["b"].Ratio)
	assert.True(t, byItem["a"].AllocatedAmount.Equal(d("25")))
	assert.True(t, byItem["b"].AllocatedAmount.Equal(d("75")))
}

func TestExecuteRuleBased_ManualRuleUsesTargetRatios(t *testing.T) {
	// GIVEN: A manual rule with fixed target ratios 0.6 / 0.4
	// WHEN: Allocating 1000
	// THEN: The allocation is keyed by target cost center, not by item

	store := memory.New()
	seedAllocationRules(t, store, costing.AllocationRule{
		ID: "r-manual", Name: "manual split", SourceCostCenterID: "cc-src",
		Basis: costing.BasisManual, Priority: 1, IsActive: true,
		Targets: []costing.AllocationRuleTarget{
			{TargetCostCenterID: "cc-x", Ratio: d("0.6")},
			{TargetCostCenterID: "cc-y", Ratio: d("0.4")},
		},
	})

	alloc := costing.NewAllocator(store, nil)
	result, err := alloc.ExecuteRuleBased(context.Background(), costing.RuleBasedInput{
		SourceCostCenter: "cc-src",
		Budgets:          []costing.BudgetLine{{Element: costing.ElementLabor, Amount: d("1000")}},
		Items: []costing.AllocationItem{
			{ID: "item-1", Metrics: costing.ItemMetrics{RawMaterialQuantity: d("1")}},
		},
		Simulate:     true,
		DefaultBasis: costing.BasisRawMaterialQuantity,
	})
	require.NoError(t, err)

	laborAlloc := result[costing.ElementLabor]
	assert.True(t, laborAlloc["cc-x"].Equal(d("600")), "got %s", laborAlloc["cc-x"])
	assert.True(t, laborAlloc["cc-y"].Equal(d("400")), "got %s", laborAlloc["cc-y"])
}
