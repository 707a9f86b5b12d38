package costing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakawak223/stdcost/costing"
	"github.com/arakawak223/stdcost/store/memory"
)

// =============================================================================
// FIXTURE
// =============================================================================

// seedTwoStageFixture loads a small dataset with a blend chain:
//
//	cp-a:  6 kg of m1 (10/kg)            -> material 60, unit 10
//	cp-b:  1 kg of m1 + 3 kg of cp-a     -> material 10, prior 30, unit 40
//	p1:    2 kg of cp-a + 1 pk (85), lot 2 -> crude 20, packaging 85
//
// No budgets are configured, so labor and overhead stay zero unless a
// test adds them.
func seedTwoStageFixture(t *testing.T, store *memory.Memory) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.PutPeriod(ctx, &costing.FiscalPeriod{
		ID: "2025-04", Year: 2025, Month: 4, Status: costing.PeriodOpen,
	}))

	materials := []costing.Material{
		{ID: "m1", Code: "RM-1", Name: "fruit", Category: costing.CategoryFruit, Unit: "kg", StandardUnitPrice: d("10"), IsActive: true},
		{ID: "pk", Code: "PK-1", Name: "bottle", Category: costing.CategoryPackaging, Unit: "pc", StandardUnitPrice: d("85"), IsActive: true},
	}
	for i := range materials {
		require.NoError(t, store.PutMaterial(ctx, &materials[i]))
	}

	crudeProducts := []costing.CrudeProduct{
		{ID: "cp-a", Code: "CR-1", Name: "vintage", Unit: "kg", IsActive: true},
		{ID: "cp-b", Code: "CR-2", Name: "blend", IsBlend: true, Unit: "kg", IsActive: true},
	}
	for i := range crudeProducts {
		require.NoError(t, store.PutCrudeProduct(ctx, &crudeProducts[i]))
	}

	require.NoError(t, store.PutProduct(ctx, &costing.Product{
		ID: "p1", Code: "FP-1", Name: "bottled", StandardLotSize: d("2"), Unit: "pc", IsActive: true,
	}))

	effective := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	boms := []costing.BOMHeader{
		{
			ID: "bom-a", CrudeProductID: "cp-a", Type: costing.BOMRawMaterialProcess,
			EffectiveDate: effective, Version: 1, YieldRate: d("1"), IsActive: true,
			Lines: []costing.BOMLine{{MaterialID: "m1", Quantity: d("6")}},
		},
		{
			ID: "bom-b", CrudeProductID: "cp-b", Type: costing.BOMRawMaterialProcess,
			EffectiveDate: effective, Version: 1, YieldRate: d("1"), IsActive: true,
			Lines: []costing.BOMLine{
				{MaterialID: "m1", Quantity: d("1")},
				{CrudeProductID: "cp-a", Quantity: d("3")},
			},
		},
		{
			ID: "bom-p1", ProductID: "p1", Type: costing.BOMProductProcess,
			EffectiveDate: effective, Version: 1, YieldRate: d("1"), IsActive: true,
			Lines: []costing.BOMLine{
				{CrudeProductID: "cp-a", Quantity: d("2")},
				{MaterialID: "pk", Quantity: d("1")},
			},
		},
	}
	for i := range boms {
		require.NoError(t, store.PutBOMHeader(ctx, &boms[i]))
	}
}

func findCrude(t *testing.T, costs []costing.CrudeProductStandardCost, id costing.CrudeProductID) costing.CrudeProductStandardCost {
	t.Helper()
	for _, c := range costs {
		if c.CrudeProductID == id {
			return c
		}
	}
	t.Fatalf("no cost record for crude product %s", id)
	return costing.CrudeProductStandardCost{}
}

// =============================================================================
// TWO-STAGE ROLLUP
// =============================================================================

func TestCalculate_BlendUsesComputedUnitCost(t *testing.T) {
	// GIVEN: cp-b blends 3 kg of cp-a, whose unit cost computes to 10/kg
	// WHEN: Calculating the period
	// THEN: cp-b carries 30 of prior-process cost on top of its own material

	store := memory.New()
	seedTwoStageFixture(t, store)

	calc := costing.NewCalculator(store, nil)
	result, err := calc.Calculate(context.Background(), costing.CalculationInput{Period: "2025-04"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.CrudeProductsCalculated)
	assert.Equal(t, 1, result.ProductsCalculated)

	cpA := findCrude(t, result.CrudeProductCosts, "cp-a")
	assert.True(t, cpA.MaterialCost.Equal(d("60")), "got %s", cpA.MaterialCost)
	assert.True(t, cpA.UnitCost.Equal(d("10")), "got %s", cpA.UnitCost)

	cpB := findCrude(t, result.CrudeProductCosts, "cp-b")
	assert.True(t, cpB.MaterialCost.Equal(d("10")), "got %s", cpB.MaterialCost)
	assert.True(t, cpB.PriorProcessCost.Equal(d("30")), "got %s", cpB.PriorProcessCost)
	assert.True(t, cpB.TotalCost.Equal(d("40")), "got %s", cpB.TotalCost)
	// cp-b's own material input is 1 kg, so unit cost is total/1.
	assert.True(t, cpB.UnitCost.Equal(d("40")), "got %s", cpB.UnitCost)

	require.Len(t, result.ProductCosts, 1)
	p1 := result.ProductCosts[0]
	assert.True(t, p1.CrudeProductCost.Equal(d("20")), "got %s", p1.CrudeProductCost)
	assert.True(t, p1.PackagingCost.Equal(d("85")), "got %s", p1.PackagingCost)
	assert.True(t, p1.TotalCost.Equal(d("105")), "got %s", p1.TotalCost)
	assert.True(t, p1.UnitCost.Equal(d("52.5")), "lot size 2, got %s", p1.UnitCost)

	// Records were persisted.
	persisted, err := store.StandardCostsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestCalculate_SimulateWritesNothing(t *testing.T) {
	// GIVEN: The same dataset
	// WHEN: Calculating with Simulate set
	// THEN: The result is identical but no cost records are stored

	store := memory.New()
	seedTwoStageFixture(t, store)

	calc := costing.NewCalculator(store, nil)
	result, err := calc.Calculate(context.Background(), costing.CalculationInput{
		Period: "2025-04", Simulate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.CrudeProductsCalculated)

	crude, err := store.CrudeStandardCostsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Empty(t, crude)

	products, err := store.StandardCostsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCalculate_RerunIsIdempotent(t *testing.T) {
	// GIVEN: A committed calculation
	// WHEN: Running it again
	// THEN: The same records are overwritten in place, not duplicated

	store := memory.New()
	seedTwoStageFixture(t, store)
	calc := costing.NewCalculator(store, nil)

	_, err := calc.Calculate(context.Background(), costing.CalculationInput{Period: "2025-04"})
	require.NoError(t, err)
	_, err = calc.Calculate(context.Background(), costing.CalculationInput{Period: "2025-04"})
	require.NoError(t, err)

	crude, err := store.CrudeStandardCostsForPeriod(context.Background(), "2025-04")
	require.NoError(t, err)
	assert.Len(t, crude, 2)
}

// =============================================================================
// PRICE RESOLUTION
// =============================================================================

func TestCalculate_IndividualPriceOverrideBeatsCategoryRate(t *testing.T) {
	// GIVEN: An individual override of 20 for m1 AND a x3 fruit category rate
	// WHEN: Calculating
	// THEN: The individual override wins: cp-a material = 20 * 6 = 120

	store := memory.New()
	seedTwoStageFixture(t, store)
	calc := costing.NewCalculator(store, nil)

	result, err := calc.Calculate(context.Background(), costing.CalculationInput{
		Period:   "2025-04",
		Simulate: true,
		Overrides: costing.Overrides{
			MaterialPrices:      map[costing.MaterialID]decimal.Decimal{"m1": d("20")},
			CategoryRateChanges: map[costing.MaterialCategory]decimal.Decimal{costing.CategoryFruit: d("3")},
		},
	})
	require.NoError(t, err)

	cpA := findCrude(t, result.CrudeProductCosts, "cp-a")
	assert.True(t, cpA.MaterialCost.Equal(d("120")), "got %s", cpA.MaterialCost)
}

func TestCalculate_CategoryRateMultipliesStandardPrice(t *testing.T) {
	// GIVEN: Only a x1.5 fruit category rate
	// WHEN: Calculating
	// THEN: m1 is priced at Round4(10 * 1.5) = 15, so cp-a material = 90

	store := memory.New()
	seedTwoStageFixture(t, store)
	calc := costing.NewCalculator(store, nil)

	result, err := calc.Calculate(context.Background(), costing.CalculationInput{
		Period:   "2025-04",
		Simulate: true,
		Overrides: costing.Overrides{
			CategoryRateChanges: map[costing.MaterialCategory]decimal.Decimal{costing.CategoryFruit: d("1.5")},
		},
	})
	require.NoError(t, err)

	cpA := findCrude(t, result.CrudeProductCosts, "cp-a")
	assert.True(t, cpA.MaterialCost.Equal(d("90")), "got %s", cpA.MaterialCost)
}

// =============================================================================
// VALIDATION AND SKIPS
// =============================================================================

func TestCalculate_UnknownPeriod(t *testing.T) {
	// GIVEN: A period that does not exist
	// WHEN: Calculating
	// THEN: ErrPeriodNotFound before any write

	store := memory.New()
	seedTwoStageFixture(t, store)
	calc := costing.NewCalculator(store, nil)

	_, err := calc.Calculate(context.Background(), costing.CalculationInput{Period: "1999-01"})
	require.Error(t, err)
	assert.ErrorIs(t, err, costing.ErrPeriodNotFound)
}

func TestCalculate_SkipsBOMWithMissingProduct(t *testing.T) {
	// GIVEN: A Stage 2 BOM whose product was deleted from the master
	// WHEN: Calculating
	// THEN: The BOM is skipped; the rest of the run completes

	store := memory.New()
	seedTwoStageFixture(t, store)
	ctx := context.Background()

	require.NoError(t, store.PutBOMHeader(ctx, &costing.BOMHeader{
		ID: "bom-ghost", ProductID: "ghost", Type: costing.BOMProductProcess,
		EffectiveDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Version:       1, YieldRate: d("1"), IsActive: true,
		Lines: []costing.BOMLine{{MaterialID: "pk", Quantity: d("1")}},
	}))

	calc := costing.NewCalculator(store, nil)
	result, err := calc.Calculate(ctx, costing.CalculationInput{Period: "2025-04"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProductsCalculated)
}

func TestCalculate_ProductSubsetFilter(t *testing.T) {
	// GIVEN: A product filter naming no known product
	// WHEN: Calculating
	// THEN: Stage 2 computes nothing; Stage 1 still runs

	store := memory.New()
	seedTwoStageFixture(t, store)
	calc := costing.NewCalculator(store, nil)

	result, err := calc.Calculate(context.Background(), costing.CalculationInput{
		Period:     "2025-04",
		ProductIDs: []costing.ProductID{"does-not-exist"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.CrudeProductsCalculated)
	assert.Equal(t, 0, result.ProductsCalculated)
}

// =============================================================================
// BUDGET DISTRIBUTION
// =============================================================================

func TestCalculate_ProductBudgetAllocatedByWeight(t *testing.T) {
	// GIVEN: A product-department budget of 100 labor and a second product,
	//        content weights 1:3, no allocation rules configured
	// WHEN: Calculating
	// THEN: Labor splits 25/75 by the default weight basis

	store := memory.New()
	seedTwoStageFixture(t, store)
	ctx := context.Background()

	require.NoError(t, store.PutProduct(ctx, &costing.Product{
		ID: "p2", Code: "FP-2", Name: "bigger bottle", ContentWeightG: d("3"),
		StandardLotSize: d("1"), Unit: "pc", IsActive: true,
	}))
	require.NoError(t, store.PutBOMHeader(ctx, &costing.BOMHeader{
		ID: "bom-p2", ProductID: "p2", Type: costing.BOMProductProcess,
		EffectiveDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Version:       1, YieldRate: d("1"), IsActive: true,
		Lines: []costing.BOMLine{{MaterialID: "pk", Quantity: d("1")}},
	}))

	// p1 has no content weight, so its weight falls back to its BOM line
	// quantities: 2 + 1 = 3... give p1 an explicit weight of 1 instead.
	require.NoError(t, store.PutProduct(ctx, &costing.Product{
		ID: "p1", Code: "FP-1", Name: "bottled", ContentWeightG: d("1"),
		StandardLotSize: d("2"), Unit: "pc", IsActive: true,
	}))

	require.NoError(t, store.PutCostCenter(ctx, &costing.CostCenter{
		ID: "cc-prd", Code: "CC-2", Name: "product dept", CenterType: costing.CenterProduct, IsActive: true,
	}))
	require.NoError(t, store.PutBudget(ctx, &costing.CostBudget{
		CostCenterID: "cc-prd", PeriodID: "2025-04", LaborBudget: d("100"),
		OverheadBudget: decimal.Zero, OutsourcingBudget: decimal.Zero,
	}))

	calc := costing.NewCalculator(store, nil)
	result, err := calc.Calculate(ctx, costing.CalculationInput{Period: "2025-04"})
	require.NoError(t, err)
	require.Equal(t, 2, result.ProductsCalculated)

	byProduct := map[costing.ProductID]costing.StandardCost{}
	for _, pc := range result.ProductCosts {
		byProduct[pc.ProductID] = pc
	}
	assert.True(t, byProduct["p1"].LaborCost.Equal(d("25")), "got %s", byProduct["p1"].LaborCost)
	assert.True(t, byProduct["p2"].LaborCost.Equal(d("75")), "got %s", byProduct["p2"].LaborCost)
	assert.True(t, byProduct["p1"].LaborCost.Add(byProduct["p2"].LaborCost).Equal(d("100")))
}
