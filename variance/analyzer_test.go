package variance_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakawak223/stdcost/costing"
	"github.com/arakawak223/stdcost/store/memory"
	"github.com/arakawak223/stdcost/variance"
)

func d(s string) decimal.Decimal { return costing.MustDecimal(s) }

// seedVarianceFixture stores one standard cost and one actual for p1.
// Labor: standard 100, actual per test. All other elements zero.
func seedVarianceFixture(t *testing.T, store *memory.Memory, actualLabor string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.PutPeriod(ctx, &costing.FiscalPeriod{
		ID: "2025-04", Year: 2025, Month: 4, Status: costing.PeriodOpen,
	}))
	require.NoError(t, store.UpsertStandardCost(ctx, &costing.StandardCost{
		ProductID: "p1", PeriodID: "2025-04",
		LaborCost: d("100"), TotalCost: d("100"), UnitCost: d("100"), LotSize: d("1"),
	}))
	require.NoError(t, store.PutActualCost(ctx, &costing.ActualCost{
		ProductID: "p1", CostCenterID: "cc-1", PeriodID: "2025-04",
		LaborCost: d(actualLabor), TotalCost: d(actualLabor),
		SourceSystem: costing.SourceSCSystem,
	}))
}

func laborRecord(t *testing.T, records []variance.Record) variance.Record {
	t.Helper()
	for _, r := range records {
		if r.CostElement == costing.ElementLabor {
			return r
		}
	}
	t.Fatal("no labor variance record")
	return variance.Record{}
}

// =============================================================================
// SIGN AND FAVORABILITY
// =============================================================================

func TestAnalyze_UnderrunIsFavorable(t *testing.T) {
	// GIVEN: Labor standard 100, actual 80
	// WHEN: Analyzing
	// THEN: Variance -20, percent -20, favorable, not flagged at a 25% threshold

	store := memory.New()
	seedVarianceFixture(t, store, "80")

	analyzer := variance.NewAnalyzer(store, nil)
	result, err := analyzer.Analyze(context.Background(), variance.AnalyzeInput{
		Period: "2025-04", ThresholdPercent: d("25"),
	})
	require.NoError(t, err)
	assert.Equal(t, len(variance.CompareElements), result.RecordsCreated)
	assert.Equal(t, 1, result.ProductsAnalyzed)
	assert.Equal(t, 0, result.FlaggedCount)

	records, err := store.VarianceRecordsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	rec := laborRecord(t, records)
	assert.True(t, rec.VarianceAmount.Equal(d("-20")), "got %s", rec.VarianceAmount)
	assert.True(t, rec.VariancePercent.Equal(d("-20")), "got %s", rec.VariancePercent)
	assert.True(t, rec.IsFavorable)
	assert.False(t, rec.IsFlagged)
	assert.Equal(t, "price", rec.VarianceType)
}

func TestAnalyze_OverrunIsUnfavorableAndFlagged(t *testing.T) {
	// GIVEN: Labor standard 100, actual 130, threshold 5%
	// WHEN: Analyzing
	// THEN: Variance +30, unfavorable, flagged with a reason

	store := memory.New()
	seedVarianceFixture(t, store, "130")

	analyzer := variance.NewAnalyzer(store, nil)
	result, err := analyzer.Analyze(context.Background(), variance.AnalyzeInput{
		Period: "2025-04", ThresholdPercent: d("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FlaggedCount)

	records, err := store.VarianceRecordsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	rec := laborRecord(t, records)
	assert.True(t, rec.VarianceAmount.Equal(d("30")))
	assert.False(t, rec.IsFavorable)
	assert.True(t, rec.IsFlagged)
	assert.NotEmpty(t, rec.FlagReason)
}

func TestAnalyze_ZeroStandardYieldsZeroPercent(t *testing.T) {
	// GIVEN: Overhead standard 0 but actual 50
	// WHEN: Analyzing
	// THEN: The overhead percent is zero (no division), variance is +50

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.PutPeriod(ctx, &costing.FiscalPeriod{
		ID: "2025-04", Year: 2025, Month: 4, Status: costing.PeriodOpen,
	}))
	require.NoError(t, store.UpsertStandardCost(ctx, &costing.StandardCost{
		ProductID: "p1", PeriodID: "2025-04", LotSize: d("1"),
	}))
	require.NoError(t, store.PutActualCost(ctx, &costing.ActualCost{
		ProductID: "p1", CostCenterID: "cc-1", PeriodID: "2025-04",
		OverheadCost: d("50"), TotalCost: d("50"),
		SourceSystem: costing.SourceSCSystem,
	}))

	analyzer := variance.NewAnalyzer(store, nil)
	_, err := analyzer.Analyze(ctx, variance.AnalyzeInput{Period: "2025-04", ThresholdPercent: d("5")})
	require.NoError(t, err)

	records, err := store.VarianceRecordsForPeriod(ctx, "2025-04")
	require.NoError(t, err)
	for _, rec := range records {
		if rec.CostElement == costing.ElementOverhead {
			assert.True(t, rec.VarianceAmount.Equal(d("50")))
			assert.True(t, rec.VariancePercent.IsZero(), "got %s", rec.VariancePercent)
			assert.False(t, rec.IsFlagged, "zero percent never exceeds a threshold")
		}
	}
}

func TestAnalyze_ThresholdIsStrict(t *testing.T) {
	// GIVEN: A variance of exactly the threshold percent
	// WHEN: Analyzing at threshold 5
	// THEN: Exactly 5% is not flagged; just above is

	store := memory.New()
	seedVarianceFixture(t, store, "105") // exactly +5%

	analyzer := variance.NewAnalyzer(store, nil)
	result, err := analyzer.Analyze(context.Background(), variance.AnalyzeInput{
		Period: "2025-04", ThresholdPercent: d("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.FlaggedCount, "equal to threshold must not flag")

	store2 := memory.New()
	seedVarianceFixture(t, store2, "105.01")
	analyzer2 := variance.NewAnalyzer(store2, nil)
	result2, err := analyzer2.Analyze(context.Background(), variance.AnalyzeInput{
		Period: "2025-04", ThresholdPercent: d("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result2.FlaggedCount)
}

// =============================================================================
// REPLACEMENT AND VALIDATION
// =============================================================================

func TestAnalyze_RerunReplacesRecords(t *testing.T) {
	// GIVEN: A completed analysis
	// WHEN: Running it again
	// THEN: The record count stays constant; nothing accumulates

	store := memory.New()
	seedVarianceFixture(t, store, "80")
	analyzer := variance.NewAnalyzer(store, nil)
	ctx := context.Background()

	_, err := analyzer.Analyze(ctx, variance.AnalyzeInput{Period: "2025-04", ThresholdPercent: d("5")})
	require.NoError(t, err)
	_, err = analyzer.Analyze(ctx, variance.AnalyzeInput{Period: "2025-04", ThresholdPercent: d("5")})
	require.NoError(t, err)

	records, err := store.VarianceRecordsForPeriod(ctx, "2025-04")
	require.NoError(t, err)
	assert.Len(t, records, len(variance.CompareElements))
}

func TestAnalyze_SkipsActualWithoutStandard(t *testing.T) {
	// GIVEN: An actual for a product that has no standard cost
	// WHEN: Analyzing
	// THEN: It is skipped; no records are produced for it

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.PutPeriod(ctx, &costing.FiscalPeriod{
		ID: "2025-04", Year: 2025, Month: 4, Status: costing.PeriodOpen,
	}))
	require.NoError(t, store.PutActualCost(ctx, &costing.ActualCost{
		ProductID: "orphan", CostCenterID: "cc-1", PeriodID: "2025-04",
		LaborCost: d("80"), TotalCost: d("80"), SourceSystem: costing.SourceSCSystem,
	}))

	analyzer := variance.NewAnalyzer(store, nil)
	result, err := analyzer.Analyze(ctx, variance.AnalyzeInput{Period: "2025-04", ThresholdPercent: d("5")})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsCreated)
	assert.Equal(t, 0, result.ProductsAnalyzed)
}

func TestAnalyze_DetailsAggregateAcrossCostCenters(t *testing.T) {
	// GIVEN: One product reported by two cost centers, labor 60 and 70
	//        against a product-level standard of 100
	// WHEN: Analyzing
	// THEN: The detail row sums the actuals per element while the
	//       persisted records stay per cost center

	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.PutPeriod(ctx, &costing.FiscalPeriod{
		ID: "2025-04", Year: 2025, Month: 4, Status: costing.PeriodOpen,
	}))
	require.NoError(t, store.PutProduct(ctx, &costing.Product{
		ID: "p1", Code: "FP-001", Name: "熟成エキス 720ml", IsActive: true,
	}))
	require.NoError(t, store.UpsertStandardCost(ctx, &costing.StandardCost{
		ProductID: "p1", PeriodID: "2025-04",
		LaborCost: d("100"), TotalCost: d("100"), UnitCost: d("100"), LotSize: d("1"),
	}))
	for _, row := range []struct {
		cc    costing.CostCenterID
		labor string
	}{{"cc-1", "60"}, {"cc-2", "70"}} {
		require.NoError(t, store.PutActualCost(ctx, &costing.ActualCost{
			ProductID: "p1", CostCenterID: row.cc, PeriodID: "2025-04",
			LaborCost: d(row.labor), TotalCost: d(row.labor),
			SourceSystem: costing.SourceSCSystem,
		}))
	}

	analyzer := variance.NewAnalyzer(store, nil)
	result, err := analyzer.Analyze(ctx, variance.AnalyzeInput{Period: "2025-04", ThresholdPercent: d("5")})
	require.NoError(t, err)

	assert.Equal(t, 2*len(variance.CompareElements), result.RecordsCreated)
	assert.Equal(t, 1, result.ProductsAnalyzed)
	assert.True(t, result.TotalStandard.Equal(d("100")))
	assert.True(t, result.TotalActual.Equal(d("130")))
	assert.True(t, result.TotalVariance.Equal(d("30")))

	require.Len(t, result.Details, 1)
	detail := result.Details[0]
	assert.Equal(t, costing.ProductID("p1"), detail.ProductID)
	assert.Equal(t, "FP-001", detail.ProductCode)
	assert.Equal(t, "熟成エキス 720ml", detail.ProductName)
	assert.True(t, detail.TotalVariance.Equal(d("30")))
	assert.True(t, detail.VariancePercent.Equal(d("30")))
	assert.False(t, detail.IsFavorable)

	require.Len(t, detail.Elements, len(variance.CompareElements))
	for _, ev := range detail.Elements {
		if ev.Element != costing.ElementLabor {
			continue
		}
		assert.True(t, ev.StandardAmount.Equal(d("100")))
		assert.True(t, ev.ActualAmount.Equal(d("130")), "got %s", ev.ActualAmount)
		assert.True(t, ev.VarianceAmount.Equal(d("30")))
		assert.True(t, ev.VariancePercent.Equal(d("30")))
		assert.False(t, ev.IsFavorable)
	}
}

func TestAnalyze_UnknownPeriod(t *testing.T) {
	// GIVEN: A period that does not exist
	// WHEN: Analyzing
	// THEN: ErrPeriodNotFound

	store := memory.New()
	analyzer := variance.NewAnalyzer(store, nil)
	_, err := analyzer.Analyze(context.Background(), variance.AnalyzeInput{
		Period: "1999-01", ThresholdPercent: d("5"),
	})
	assert.ErrorIs(t, err, costing.ErrPeriodNotFound)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummarize_AggregatesPerElement(t *testing.T) {
	// GIVEN: Labor records for two products, std 100/act 200 (+100%) and
	//        std 1000/act 1000 (0%)
	// WHEN: Summarizing
	// THEN: The labor element averages the record percents to 50, not the
	//       variance-over-standard rate of 9.0909, and counts both sides

	store := memory.New()
	seedVarianceFixture(t, store, "200")
	ctx := context.Background()
	require.NoError(t, store.UpsertStandardCost(ctx, &costing.StandardCost{
		ProductID: "p2", PeriodID: "2025-04",
		LaborCost: d("1000"), TotalCost: d("1000"), UnitCost: d("1000"), LotSize: d("1"),
	}))
	require.NoError(t, store.PutActualCost(ctx, &costing.ActualCost{
		ProductID: "p2", CostCenterID: "cc-1", PeriodID: "2025-04",
		LaborCost: d("1000"), TotalCost: d("1000"),
		SourceSystem: costing.SourceSCSystem,
	}))

	analyzer := variance.NewAnalyzer(store, nil)
	_, err := analyzer.Analyze(ctx, variance.AnalyzeInput{Period: "2025-04", ThresholdPercent: d("5")})
	require.NoError(t, err)

	summary, err := analyzer.Summarize(ctx, "2025-04")
	require.NoError(t, err)

	assert.Equal(t, 2*len(variance.CompareElements), summary.RecordCount)
	assert.Equal(t, 2, summary.ProductCount)
	assert.True(t, summary.TotalStandard.Equal(d("1100")))
	assert.True(t, summary.TotalActual.Equal(d("1200")))
	assert.True(t, summary.TotalVariance.Equal(d("100")))

	var labor variance.ElementSummary
	for _, es := range summary.Elements {
		if es.Element == costing.ElementLabor {
			labor = es
		}
	}
	assert.True(t, labor.TotalStandard.Equal(d("1100")))
	assert.True(t, labor.TotalVariance.Equal(d("100")))
	assert.True(t, labor.AverageVariancePercent.Equal(d("50")), "got %s", labor.AverageVariancePercent)
	assert.Equal(t, 1, labor.FavorableCount)
	assert.Equal(t, 1, labor.UnfavorableCount)
	assert.Equal(t, 1, labor.FlaggedCount)
}

func TestSummarize_EmptyPeriodIsZeroed(t *testing.T) {
	// GIVEN: A period with no variance records
	// WHEN: Summarizing
	// THEN: A zeroed summary with all five elements present, not an error

	store := memory.New()
	analyzer := variance.NewAnalyzer(store, nil)

	summary, err := analyzer.Summarize(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.RecordCount)
	assert.True(t, summary.TotalVariance.IsZero())
	assert.Len(t, summary.Elements, len(variance.CompareElements))
}
