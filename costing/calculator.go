/*
calculator.go - Two-stage standard cost rollup

PURPOSE:
  Stage 1 (manufacturing): raw materials -> crude product unit costs,
  processed in blend-dependency order so every blend sees the already
  computed unit costs of its inputs.
  Stage 2 (product department): crude products + packaging -> finished
  product unit costs.
  Both stages distribute the department budget pools through the
  allocation engine.

PRICE RESOLUTION (shared by both stages):
  individual override > category rate multiplier > standard unit price.
  Overrides never mutate master data, which is what makes the simulate
  path a true what-if preview of the real calculation.

PERSISTENCE:
  Outside simulation every computed item is upserted on its unique
  (item, period) key. Simulation computes identical values and writes
  nothing.

FAILURE SEMANTICS:
  A BOM header pointing at a deleted crude product or product is skipped,
  not fatal; each skip is logged at WARN with the dangling identifier.
  Zero standard quantity yields a zero unit cost instead of a fault.

SEE ALSO:
  - allocation.go: budget distribution
  - graph.go: blend dependency ordering
  - copy.go: replication of these records across periods
*/
package costing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BudgetChange overrides individual budget pools of one cost center.
// Nil fields leave the configured pool untouched.
type BudgetChange struct {
	LaborBudget       *decimal.Decimal
	OverheadBudget    *decimal.Decimal
	OutsourcingBudget *decimal.Decimal
}

// Overrides perturb prices and budgets for what-if runs. They apply
// identically in simulate and commit modes.
type Overrides struct {
	MaterialPrices      map[MaterialID]decimal.Decimal
	BudgetChanges       map[CostCenterID]BudgetChange
	CategoryRateChanges map[MaterialCategory]decimal.Decimal
}

// CalculationInput drives one calculation run for a single period.
type CalculationInput struct {
	Period     PeriodID
	ProductIDs []ProductID // optional Stage 2 subset
	Simulate   bool
	Overrides  Overrides
}

// CalculationResult is the observable outcome of one run. In commit mode
// the record lists carry the persisted rows; in simulate mode the same
// values as transient records.
type CalculationResult struct {
	Period                  PeriodID
	CrudeProductsCalculated int
	ProductsCalculated      int
	TotalCrudeProductCost   decimal.Decimal
	TotalProductCost        decimal.Decimal
	CrudeProductCosts       []CrudeProductStandardCost
	ProductCosts            []StandardCost
}

// Calculator performs the two-stage rollup against a store.
type Calculator struct {
	Store Store
	Alloc *Allocator
	Log   *logrus.Logger
}

func NewCalculator(store Store, log *logrus.Logger) *Calculator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Calculator{Store: store, Alloc: NewAllocator(store, log), Log: log}
}

// Calculate runs both stages for the period. Single synchronous pass; the
// caller serializes concurrent runs for the same period.
func (c *Calculator) Calculate(ctx context.Context, in CalculationInput) (*CalculationResult, error) {
	period, err := c.Store.GetPeriod(ctx, in.Period)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, &PeriodNotFoundError{Role: "calculation", PeriodID: in.Period}
	}

	materials, err := c.loadMaterials(ctx)
	if err != nil {
		return nil, err
	}
	crudeProducts, err := c.loadCrudeProducts(ctx)
	if err != nil {
		return nil, err
	}
	products, err := c.loadProducts(ctx)
	if err != nil {
		return nil, err
	}

	crudeResults, crudeOrder, err := c.stageOne(ctx, in, materials, crudeProducts)
	if err != nil {
		return nil, err
	}

	productResults, productOrder, err := c.stageTwo(ctx, in, materials, products, crudeResults)
	if err != nil {
		return nil, err
	}

	result := &CalculationResult{
		Period:                  in.Period,
		CrudeProductsCalculated: len(crudeResults),
		ProductsCalculated:      len(productResults),
		TotalCrudeProductCost:   decimal.Zero,
		TotalProductCost:        decimal.Zero,
	}

	for _, id := range crudeOrder {
		rec := crudeResults[id]
		result.TotalCrudeProductCost = result.TotalCrudeProductCost.Add(rec.TotalCost)
		if !in.Simulate {
			if err := c.Store.UpsertCrudeStandardCost(ctx, rec); err != nil {
				return nil, err
			}
		}
		result.CrudeProductCosts = append(result.CrudeProductCosts, *rec)
	}
	for _, id := range productOrder {
		rec := productResults[id]
		result.TotalProductCost = result.TotalProductCost.Add(rec.TotalCost)
		if !in.Simulate {
			if err := c.Store.UpsertStandardCost(ctx, rec); err != nil {
				return nil, err
			}
		}
		result.ProductCosts = append(result.ProductCosts, *rec)
	}

	return result, nil
}

// =============================================================================
// STAGE 1 - Raw materials -> crude products
// =============================================================================

func (c *Calculator) stageOne(ctx context.Context, in CalculationInput, materials map[MaterialID]Material, crudeProducts map[CrudeProductID]CrudeProduct) (map[CrudeProductID]*CrudeProductStandardCost, []CrudeProductID, error) {
	headers, err := c.Store.ListBOMHeaders(ctx, BOMRawMaterialProcess)
	if err != nil {
		return nil, nil, err
	}

	// One BOM per crude product: headers arrive newest effective first.
	bomByCrude := make(map[CrudeProductID]BOMHeader)
	for _, h := range headers {
		if h.CrudeProductID == "" {
			continue
		}
		if _, seen := bomByCrude[h.CrudeProductID]; !seen {
			bomByCrude[h.CrudeProductID] = h
		}
	}

	order, err := OrderByBlendDependencies(bomByCrude)
	if err != nil {
		return nil, nil, err
	}

	// Standard quantity doubles as material-cost basis and default
	// allocation basis.
	stdQty := make(map[CrudeProductID]decimal.Decimal, len(bomByCrude))
	items := make([]AllocationItem, 0, len(order))
	for _, id := range order {
		total := decimal.Zero
		for _, line := range bomByCrude[id].Lines {
			if line.MaterialID != "" {
				total = total.Add(line.InputQuantity())
			}
		}
		stdQty[id] = total
		items = append(items, AllocationItem{
			ID:      string(id),
			Metrics: ItemMetrics{RawMaterialQuantity: total},
		})
	}

	budget, err := c.Store.BudgetForCenterType(ctx, in.Period, CenterManufacturing)
	if err != nil {
		return nil, nil, err
	}
	labor, overhead, _ := resolveBudget(budget, in.Overrides.BudgetChanges)

	laborAlloc, overheadAlloc, err := c.allocateStageOne(ctx, in, budget, labor, overhead, items)
	if err != nil {
		return nil, nil, err
	}

	results := make(map[CrudeProductID]*CrudeProductStandardCost, len(order))
	kept := make([]CrudeProductID, 0, len(order))

	for _, id := range order {
		if _, ok := crudeProducts[id]; !ok {
			c.Log.WithFields(logrus.Fields{"crude_product_id": id, "period_id": in.Period}).
				Warn("skipping BOM with missing crude product")
			continue
		}

		materialCost := decimal.Zero
		priorProcessCost := decimal.Zero
		for _, line := range bomByCrude[id].Lines {
			switch {
			case line.MaterialID != "":
				mat, ok := materials[line.MaterialID]
				if !ok {
					c.Log.WithFields(logrus.Fields{"material_id": line.MaterialID, "crude_product_id": id}).
						Warn("skipping BOM line with missing material")
					continue
				}
				price := resolveMaterialPrice(mat, in.Overrides)
				materialCost = materialCost.Add(Round4(price.Mul(line.InputQuantity())))
			case line.CrudeProductID != "":
				src, ok := results[line.CrudeProductID]
				if !ok {
					// No BOM for the source this period: nothing to roll up.
					continue
				}
				priorProcessCost = priorProcessCost.Add(Round4(src.UnitCost.Mul(line.Quantity)))
			}
		}

		total := materialCost.Add(laborAlloc[string(id)]).Add(overheadAlloc[string(id)]).Add(priorProcessCost)
		qty := stdQty[id]
		unitCost := decimal.Zero
		if qty.IsPositive() {
			unitCost = Round4(total.Div(qty))
		}

		results[id] = &CrudeProductStandardCost{
			CrudeProductID:   id,
			PeriodID:         in.Period,
			MaterialCost:     materialCost,
			LaborCost:        laborAlloc[string(id)],
			OverheadCost:     overheadAlloc[string(id)],
			PriorProcessCost: priorProcessCost,
			TotalCost:        total,
			UnitCost:         unitCost,
			StandardQuantity: qty,
		}
		kept = append(kept, id)
	}

	return results, kept, nil
}

func (c *Calculator) allocateStageOne(ctx context.Context, in CalculationInput, budget *CostBudget, labor, overhead decimal.Decimal, items []AllocationItem) (map[string]decimal.Decimal, map[string]decimal.Decimal, error) {
	if budget == nil {
		quantities := ComputeAllocationQuantities(BasisRawMaterialQuantity, items)
		return AllocateByQuantity(labor, quantities), AllocateByQuantity(overhead, quantities), nil
	}
	alloc, err := c.Alloc.ExecuteRuleBased(ctx, RuleBasedInput{
		SourceCostCenter: budget.CostCenterID,
		Budgets: []BudgetLine{
			{Element: ElementLabor, Amount: labor},
			{Element: ElementOverhead, Amount: overhead},
		},
		Items:        items,
		Period:       in.Period,
		Simulate:     in.Simulate,
		DefaultBasis: BasisRawMaterialQuantity,
	})
	if err != nil {
		return nil, nil, err
	}
	return alloc[ElementLabor], alloc[ElementOverhead], nil
}

// =============================================================================
// STAGE 2 - Crude products + packaging -> finished products
// =============================================================================

func (c *Calculator) stageTwo(ctx context.Context, in CalculationInput, materials map[MaterialID]Material, products map[ProductID]Product, crudeResults map[CrudeProductID]*CrudeProductStandardCost) (map[ProductID]*StandardCost, []ProductID, error) {
	headers, err := c.Store.ListBOMHeaders(ctx, BOMProductProcess)
	if err != nil {
		return nil, nil, err
	}

	bomByProduct := make(map[ProductID]BOMHeader)
	for _, h := range headers {
		if h.ProductID == "" {
			continue
		}
		if _, seen := bomByProduct[h.ProductID]; !seen {
			bomByProduct[h.ProductID] = h
		}
	}

	if len(in.ProductIDs) > 0 {
		subset := make(map[ProductID]bool, len(in.ProductIDs))
		for _, id := range in.ProductIDs {
			subset[id] = true
		}
		for id := range bomByProduct {
			if !subset[id] {
				delete(bomByProduct, id)
			}
		}
	}

	order := make([]ProductID, 0, len(bomByProduct))
	for id := range bomByProduct {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	// Allocation basis: content weight when set, else summed BOM line
	// quantities, else 1.
	items := make([]AllocationItem, 0, len(order))
	for _, id := range order {
		weight := decimal.Zero
		if p, ok := products[id]; ok && p.ContentWeightG.IsPositive() {
			weight = p.ContentWeightG
		} else {
			for _, line := range bomByProduct[id].Lines {
				weight = weight.Add(line.Quantity)
			}
			if !weight.IsPositive() {
				weight = decimal.NewFromInt(1)
			}
		}
		items = append(items, AllocationItem{
			ID:      string(id),
			Metrics: ItemMetrics{Weight: weight, RawMaterialQuantity: weight},
		})
	}

	budget, err := c.Store.BudgetForCenterType(ctx, in.Period, CenterProduct)
	if err != nil {
		return nil, nil, err
	}
	labor, overhead, outsourcing := resolveBudget(budget, in.Overrides.BudgetChanges)

	laborAlloc, overheadAlloc, outsourcingAlloc, err := c.allocateStageTwo(ctx, in, budget, labor, overhead, outsourcing, items)
	if err != nil {
		return nil, nil, err
	}

	results := make(map[ProductID]*StandardCost, len(order))
	kept := make([]ProductID, 0, len(order))

	for _, id := range order {
		product, ok := products[id]
		if !ok {
			c.Log.WithFields(logrus.Fields{"product_id": id, "period_id": in.Period}).
				Warn("skipping BOM with missing product")
			continue
		}

		crudeCost := decimal.Zero
		packagingCost := decimal.Zero
		for _, line := range bomByProduct[id].Lines {
			switch {
			case line.CrudeProductID != "":
				src, ok := crudeResults[line.CrudeProductID]
				if !ok {
					continue
				}
				crudeCost = crudeCost.Add(Round4(src.UnitCost.Mul(line.Quantity)))
			case line.MaterialID != "":
				mat, ok := materials[line.MaterialID]
				if !ok {
					c.Log.WithFields(logrus.Fields{"material_id": line.MaterialID, "product_id": id}).
						Warn("skipping BOM line with missing material")
					continue
				}
				price := resolveMaterialPrice(mat, in.Overrides)
				packagingCost = packagingCost.Add(Round4(price.Mul(line.InputQuantity())))
			}
		}

		total := crudeCost.Add(packagingCost).
			Add(laborAlloc[string(id)]).
			Add(overheadAlloc[string(id)]).
			Add(outsourcingAlloc[string(id)])

		lotSize := product.StandardLotSize
		if !lotSize.IsPositive() {
			lotSize = decimal.NewFromInt(1)
		}
		unitCost := Round4(total.Div(lotSize))

		results[id] = &StandardCost{
			ProductID:        id,
			PeriodID:         in.Period,
			CrudeProductCost: crudeCost,
			PackagingCost:    packagingCost,
			LaborCost:        laborAlloc[string(id)],
			OverheadCost:     overheadAlloc[string(id)],
			OutsourcingCost:  outsourcingAlloc[string(id)],
			TotalCost:        total,
			UnitCost:         unitCost,
			LotSize:          lotSize,
		}
		kept = append(kept, id)
	}

	return results, kept, nil
}

func (c *Calculator) allocateStageTwo(ctx context.Context, in CalculationInput, budget *CostBudget, labor, overhead, outsourcing decimal.Decimal, items []AllocationItem) (map[string]decimal.Decimal, map[string]decimal.Decimal, map[string]decimal.Decimal, error) {
	if budget == nil {
		quantities := ComputeAllocationQuantities(BasisWeight, items)
		return AllocateByQuantity(labor, quantities),
			AllocateByQuantity(overhead, quantities),
			AllocateByQuantity(outsourcing, quantities),
			nil
	}
	alloc, err := c.Alloc.ExecuteRuleBased(ctx, RuleBasedInput{
		SourceCostCenter: budget.CostCenterID,
		Budgets: []BudgetLine{
			{Element: ElementLabor, Amount: labor},
			{Element: ElementOverhead, Amount: overhead},
			{Element: ElementOutsourcing, Amount: outsourcing},
		},
		Items:        items,
		Period:       in.Period,
		Simulate:     in.Simulate,
		DefaultBasis: BasisWeight,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return alloc[ElementLabor], alloc[ElementOverhead], alloc[ElementOutsourcing], nil
}

// =============================================================================
// SHARED RESOLUTION HELPERS
// =============================================================================

// resolveMaterialPrice applies the three-tier precedence:
// individual override > category rate multiplier > standard unit price.
func resolveMaterialPrice(mat Material, ov Overrides) decimal.Decimal {
	if price, ok := ov.MaterialPrices[mat.ID]; ok {
		return price
	}
	if rate, ok := ov.CategoryRateChanges[mat.Category]; ok && mat.Category != "" {
		return Round4(mat.StandardUnitPrice.Mul(rate))
	}
	return mat.StandardUnitPrice
}

// resolveBudget reads the configured pools (zero when no budget row
// exists) and applies any caller override for that cost center.
func resolveBudget(budget *CostBudget, changes map[CostCenterID]BudgetChange) (labor, overhead, outsourcing decimal.Decimal) {
	labor, overhead, outsourcing = decimal.Zero, decimal.Zero, decimal.Zero
	if budget == nil {
		return labor, overhead, outsourcing
	}
	labor = budget.LaborBudget
	overhead = budget.OverheadBudget
	outsourcing = budget.OutsourcingBudget
	if change, ok := changes[budget.CostCenterID]; ok {
		if change.LaborBudget != nil {
			labor = *change.LaborBudget
		}
		if change.OverheadBudget != nil {
			overhead = *change.OverheadBudget
		}
		if change.OutsourcingBudget != nil {
			outsourcing = *change.OutsourcingBudget
		}
	}
	return labor, overhead, outsourcing
}

func (c *Calculator) loadMaterials(ctx context.Context) (map[MaterialID]Material, error) {
	list, err := c.Store.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[MaterialID]Material, len(list))
	for _, m := range list {
		out[m.ID] = m
	}
	return out, nil
}

func (c *Calculator) loadCrudeProducts(ctx context.Context) (map[CrudeProductID]CrudeProduct, error) {
	list, err := c.Store.ListCrudeProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[CrudeProductID]CrudeProduct, len(list))
	for _, cp := range list {
		out[cp.ID] = cp
	}
	return out, nil
}

func (c *Calculator) loadProducts(ctx context.Context) (map[ProductID]Product, error) {
	list, err := c.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[ProductID]Product, len(list))
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}
