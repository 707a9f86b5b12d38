package reconcile_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakawak223/stdcost/costing"
	"github.com/arakawak223/stdcost/reconcile"
	"github.com/arakawak223/stdcost/store/memory"
)

func d(s string) decimal.Decimal { return costing.MustDecimal(s) }

func seedPeriod(t *testing.T, store *memory.Memory) {
	t.Helper()
	require.NoError(t, store.PutPeriod(context.Background(), &costing.FiscalPeriod{
		ID: "2025-04", Year: 2025, Month: 4, Status: costing.PeriodOpen,
	}))
}

func putActual(t *testing.T, store *memory.Memory, product costing.ProductID, source costing.SourceSystem, total string) {
	t.Helper()
	require.NoError(t, store.PutActualCost(context.Background(), &costing.ActualCost{
		ProductID: product, CostCenterID: "cc-1", PeriodID: "2025-04",
		TotalCost: d(total), SourceSystem: source,
	}))
}

func TestReconcilePeriod_WithinThresholdMatches(t *testing.T) {
	// GIVEN: sc_system 1000 vs kanjyo_bugyo 1500, threshold 1000
	// WHEN: Reconciling
	// THEN: Matched; the signed difference is kept

	store := memory.New()
	seedPeriod(t, store)
	putActual(t, store, "p1", costing.SourceSCSystem, "1000")
	putActual(t, store, "p1", costing.SourceKanjyoBugyo, "1500")

	engine := reconcile.NewEngine(store, nil)
	run, err := engine.ReconcilePeriod(context.Background(), "2025-04", d("1000"))
	require.NoError(t, err)
	assert.Equal(t, 1, run.Matched)
	assert.Equal(t, 1, run.Total)

	results, err := store.ReconciliationResultsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, reconcile.StatusMatched, r.Status)
	require.NotNil(t, r.Difference)
	assert.True(t, r.Difference.Equal(d("-500")), "got %s", r.Difference)
}

func TestReconcilePeriod_BeyondThresholdIsDiscrepancy(t *testing.T) {
	// GIVEN: sc_system 1000 vs kanjyo_bugyo 2500, threshold 1000
	// WHEN: Reconciling
	// THEN: Discrepancy with a note

	store := memory.New()
	seedPeriod(t, store)
	putActual(t, store, "p1", costing.SourceSCSystem, "1000")
	putActual(t, store, "p1", costing.SourceKanjyoBugyo, "2500")

	engine := reconcile.NewEngine(store, nil)
	run, err := engine.ReconcilePeriod(context.Background(), "2025-04", d("1000"))
	require.NoError(t, err)
	assert.Equal(t, 1, run.Discrepancies)

	results, err := store.ReconciliationResultsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, reconcile.StatusDiscrepancy, results[0].Status)
	assert.NotEmpty(t, results[0].Notes)
}

func TestReconcilePeriod_SingleSideIsUnmatched(t *testing.T) {
	// GIVEN: Data only in sc_system for p1 and only in kanjyo_bugyo for p2
	// WHEN: Reconciling
	// THEN: Both unmatched, with the missing side named and nil values

	store := memory.New()
	seedPeriod(t, store)
	putActual(t, store, "p1", costing.SourceSCSystem, "1000")
	putActual(t, store, "p2", costing.SourceKanjyoBugyo, "2000")

	engine := reconcile.NewEngine(store, nil)
	run, err := engine.ReconcilePeriod(context.Background(), "2025-04", d("1000"))
	require.NoError(t, err)
	assert.Equal(t, 2, run.Unmatched)

	results, err := store.ReconciliationResultsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byProduct := map[costing.ProductID]reconcile.Result{}
	for _, r := range results {
		byProduct[r.ProductID] = r
	}

	p1 := byProduct["p1"]
	assert.Equal(t, reconcile.StatusUnmatched, p1.Status)
	assert.Equal(t, "no data in kanjyo_bugyo", p1.Notes)
	assert.NotNil(t, p1.ValueA)
	assert.Nil(t, p1.ValueB)
	assert.Nil(t, p1.Difference)

	p2 := byProduct["p2"]
	assert.Equal(t, "no data in sc_system", p2.Notes)
	assert.Nil(t, p2.ValueA)
	assert.NotNil(t, p2.ValueB)
}

func TestReconcilePeriod_OtherSourcesAreIgnored(t *testing.T) {
	// GIVEN: Actuals from a source system outside the comparison pair
	// WHEN: Reconciling
	// THEN: They contribute nothing

	store := memory.New()
	seedPeriod(t, store)
	putActual(t, store, "p1", costing.SourceTsuhan21, "1000")

	engine := reconcile.NewEngine(store, nil)
	run, err := engine.ReconcilePeriod(context.Background(), "2025-04", d("1000"))
	require.NoError(t, err)
	assert.Equal(t, 0, run.Total)
}

func TestReconcilePeriod_RerunReplacesResults(t *testing.T) {
	// GIVEN: A completed reconciliation
	// WHEN: Running it again
	// THEN: The result count stays constant

	store := memory.New()
	seedPeriod(t, store)
	putActual(t, store, "p1", costing.SourceSCSystem, "1000")
	putActual(t, store, "p1", costing.SourceKanjyoBugyo, "1200")

	engine := reconcile.NewEngine(store, nil)
	ctx := context.Background()
	_, err := engine.ReconcilePeriod(ctx, "2025-04", d("1000"))
	require.NoError(t, err)
	_, err = engine.ReconcilePeriod(ctx, "2025-04", d("1000"))
	require.NoError(t, err)

	results, err := store.ReconciliationResultsForPeriod(ctx, "2025-04")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestReconcilePeriod_UnknownPeriod(t *testing.T) {
	// GIVEN: A period that does not exist
	// WHEN: Reconciling
	// THEN: ErrPeriodNotFound

	store := memory.New()
	engine := reconcile.NewEngine(store, nil)
	_, err := engine.ReconcilePeriod(context.Background(), "1999-01", d("1000"))
	assert.ErrorIs(t, err, costing.ErrPeriodNotFound)
}

func TestSummarize_CountsByStatus(t *testing.T) {
	// GIVEN: One matched pair and one unmatched product
	// WHEN: Summarizing
	// THEN: Counts per status plus the absolute difference total

	store := memory.New()
	seedPeriod(t, store)
	putActual(t, store, "p1", costing.SourceSCSystem, "1000")
	putActual(t, store, "p1", costing.SourceKanjyoBugyo, "1200")
	putActual(t, store, "p2", costing.SourceSCSystem, "500")

	engine := reconcile.NewEngine(store, nil)
	ctx := context.Background()
	_, err := engine.ReconcilePeriod(ctx, "2025-04", d("1000"))
	require.NoError(t, err)

	summary, err := engine.Summarize(ctx, "2025-04")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 0, summary.Discrepancies)
	assert.Equal(t, 2, summary.Total)
	assert.True(t, summary.TotalDifference.Equal(d("200")), "got %s", summary.TotalDifference)
}
