/*
scenarios.go - Demo scenario loader for testing and demonstrations

PURPOSE:
  Populates the store with a small but complete fermentation dataset:
  materials, crude products (including a blend), finished products,
  cost centers with budgets, allocation rules, BOMs for both stages,
  and actuals from two source systems. Loading a scenario resets the
  store first.

AVAILABLE SCENARIOS:
  fermentation-demo: two vintages plus a blend, two bottled products,
                     actuals from sc_system and kanjyo_bugyo so variance
                     analysis and reconciliation both have data.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "fermentation-demo"}

NOTE:
  Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ListScenarios, LoadScenario handlers
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/arakawak223/stdcost/costing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fermentation-demo",
		Name:        "Fermentation Demo",
		Description: "Two crude vintages plus a blend, two bottled products, actuals from two source systems",
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": scenarios,
		"current":   h.currentScenario,
	})
}

// LoadScenario resets the store and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var err error
	switch req.ScenarioID {
	case "fermentation-demo":
		err = h.loadFermentationDemo(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// ResetStore wipes every table.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.ResetAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// FERMENTATION DEMO
// =============================================================================

func (h *Handler) loadFermentationDemo(ctx context.Context) error {
	if err := h.Store.ResetAll(ctx); err != nil {
		return err
	}
	d := costing.MustDecimal

	periods := []costing.FiscalPeriod{
		{ID: "2025-03", Year: 2025, Month: 3, Status: costing.PeriodClosed},
		{ID: "2025-04", Year: 2025, Month: 4, Status: costing.PeriodOpen},
	}
	for i := range periods {
		if err := h.Store.PutPeriod(ctx, &periods[i]); err != nil {
			return err
		}
	}

	materials := []costing.Material{
		{ID: "mat-ume", Code: "RM-001", Name: "南高梅", Category: costing.CategoryFruit, Unit: "kg", StandardUnitPrice: d("450"), IsActive: true},
		{ID: "mat-rice", Code: "RM-002", Name: "玄米", Category: costing.CategoryGrain, Unit: "kg", StandardUnitPrice: d("320"), IsActive: true},
		{ID: "mat-kombu", Code: "RM-003", Name: "昆布", Category: costing.CategorySeaweed, Unit: "kg", StandardUnitPrice: d("1200"), IsActive: true},
		{ID: "mat-bottle", Code: "PK-001", Name: "720ml瓶", Category: costing.CategoryPackaging, Unit: "本", StandardUnitPrice: d("85"), IsActive: true},
		{ID: "mat-label", Code: "PK-002", Name: "ラベル", Category: costing.CategoryPackaging, Unit: "枚", StandardUnitPrice: d("12"), IsActive: true},
	}
	for i := range materials {
		if err := h.Store.PutMaterial(ctx, &materials[i]); err != nil {
			return err
		}
	}

	crudeProducts := []costing.CrudeProduct{
		{ID: "cp-ume-2023", Code: "CR-001", Name: "梅原料 2023", VintageYear: 2023, CrudeType: "ume", AgingYears: 2, Unit: "kg", IsActive: true},
		{ID: "cp-rice-2024", Code: "CR-002", Name: "米原料 2024", VintageYear: 2024, CrudeType: "rice", AgingYears: 1, Unit: "kg", IsActive: true},
		{ID: "cp-blend", Code: "CR-101", Name: "ブレンド原料", CrudeType: "blend", IsBlend: true, Unit: "kg", IsActive: true},
	}
	for i := range crudeProducts {
		if err := h.Store.PutCrudeProduct(ctx, &crudeProducts[i]); err != nil {
			return err
		}
	}

	products := []costing.Product{
		{ID: "prod-720", Code: "FP-001", Name: "熟成エキス 720ml", ProductGroup: "bottle", ContentWeightG: d("900"), StandardLotSize: d("100"), Unit: "本", IsActive: true},
		{ID: "prod-300", Code: "FP-002", Name: "熟成エキス 300ml", ProductGroup: "bottle", ContentWeightG: d("400"), StandardLotSize: d("200"), Unit: "本", IsActive: true},
	}
	for i := range products {
		if err := h.Store.PutProduct(ctx, &products[i]); err != nil {
			return err
		}
	}

	centers := []costing.CostCenter{
		{ID: "cc-mfg", Code: "CC-100", Name: "製造部", CenterType: costing.CenterManufacturing, IsActive: true},
		{ID: "cc-prd", Code: "CC-200", Name: "製品部", CenterType: costing.CenterProduct, IsActive: true},
	}
	for i := range centers {
		if err := h.Store.PutCostCenter(ctx, &centers[i]); err != nil {
			return err
		}
	}

	budgets := []costing.CostBudget{
		{CostCenterID: "cc-mfg", PeriodID: "2025-04", LaborBudget: d("1800000"), OverheadBudget: d("950000")},
		{CostCenterID: "cc-prd", PeriodID: "2025-04", LaborBudget: d("1200000"), OverheadBudget: d("600000"), OutsourcingBudget: d("250000")},
	}
	for i := range budgets {
		if err := h.Store.PutBudget(ctx, &budgets[i]); err != nil {
			return err
		}
	}

	laborElement := costing.ElementLabor
	rules := []costing.AllocationRule{
		{ID: "rule-mfg-labor", Name: "製造労務費 原料数量按分", SourceCostCenterID: "cc-mfg", CostElement: &laborElement, Basis: costing.BasisRawMaterialQuantity, Priority: 10, IsActive: true},
		{ID: "rule-mfg-any", Name: "製造部 既定按分", SourceCostCenterID: "cc-mfg", Basis: costing.BasisRawMaterialQuantity, Priority: 1, IsActive: true},
		{ID: "rule-prd-any", Name: "製品部 重量按分", SourceCostCenterID: "cc-prd", Basis: costing.BasisWeight, Priority: 1, IsActive: true},
	}
	for i := range rules {
		if err := h.Store.PutAllocationRule(ctx, &rules[i]); err != nil {
			return err
		}
	}

	effective := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	boms := []costing.BOMHeader{
		{
			ID: "bom-cp-ume", CrudeProductID: "cp-ume-2023", Type: costing.BOMRawMaterialProcess,
			EffectiveDate: effective, Version: 1, YieldRate: d("1"), IsActive: true,
			Lines: []costing.BOMLine{
				{MaterialID: "mat-ume", Quantity: d("500"), Unit: "kg", LossRate: d("0.05"), SortOrder: 1},
				{MaterialID: "mat-kombu", Quantity: d("20"), Unit: "kg", SortOrder: 2},
			},
		},
		{
			ID: "bom-cp-rice", CrudeProductID: "cp-rice-2024", Type: costing.BOMRawMaterialProcess,
			EffectiveDate: effective, Version: 1, YieldRate: d("1"), IsActive: true,
			Lines: []costing.BOMLine{
				{MaterialID: "mat-rice", Quantity: d("400"), Unit: "kg", LossRate: d("0.02"), SortOrder: 1},
			},
		},
		{
			ID: "bom-cp-blend", CrudeProductID: "cp-blend", Type: costing.BOMRawMaterialProcess,
			EffectiveDate: effective, Version: 1, YieldRate: d("1"), IsActive: true,
			Lines: []costing.BOMLine{
				{CrudeProductID: "cp-ume-2023", Quantity: d("300"), Unit: "kg", SortOrder: 1},
				{CrudeProductID: "cp-rice-2024", Quantity: d("200"), Unit: "kg", SortOrder: 2},
			},
		},
		{
			ID: "bom-prod-720", ProductID: "prod-720", Type: costing.BOMProductProcess,
			EffectiveDate: effective, Version: 1, YieldRate: d("1"), IsActive: true,
			Lines: []costing.BOMLine{
				{CrudeProductID: "cp-blend", Quantity: d("0.9"), Unit: "kg", SortOrder: 1},
				{MaterialID: "mat-bottle", Quantity: d("1"), Unit: "本", SortOrder: 2},
				{MaterialID: "mat-label", Quantity: d("1"), Unit: "枚", SortOrder: 3},
			},
		},
		{
			ID: "bom-prod-300", ProductID: "prod-300", Type: costing.BOMProductProcess,
			EffectiveDate: effective, Version: 1, YieldRate: d("1"), IsActive: true,
			Lines: []costing.BOMLine{
				{CrudeProductID: "cp-ume-2023", Quantity: d("0.4"), Unit: "kg", SortOrder: 1},
				{MaterialID: "mat-bottle", Quantity: d("1"), Unit: "本", SortOrder: 2},
				{MaterialID: "mat-label", Quantity: d("1"), Unit: "枚", SortOrder: 3},
			},
		},
	}
	for i := range boms {
		if err := h.Store.PutBOMHeader(ctx, &boms[i]); err != nil {
			return err
		}
	}

	// Actuals from both source systems so variance analysis and
	// reconciliation have something to chew on.
	actuals := []costing.ActualCost{
		{
			ProductID: "prod-720", CostCenterID: "cc-prd", PeriodID: "2025-04",
			CrudeProductCost: d("310000"), PackagingCost: d("98000"),
			LaborCost: d("640000"), OverheadCost: d("330000"), OutsourcingCost: d("140000"),
			TotalCost: d("1518000"), QuantityProduced: d("95"),
			SourceSystem: costing.SourceSCSystem,
		},
		{
			ProductID: "prod-300", CostCenterID: "cc-prd", PeriodID: "2025-04",
			CrudeProductCost: d("120000"), PackagingCost: d("97000"),
			LaborCost: d("560000"), OverheadCost: d("270000"), OutsourcingCost: d("110000"),
			TotalCost: d("1157000"), QuantityProduced: d("210"),
			SourceSystem: costing.SourceKanjyoBugyo,
		},
		{
			ProductID: "prod-720", CostCenterID: "cc-mfg", PeriodID: "2025-04",
			CrudeProductCost: d("309500"), PackagingCost: d("98200"),
			LaborCost: d("641000"), OverheadCost: d("329000"), OutsourcingCost: d("140300"),
			TotalCost: d("1518000"), QuantityProduced: d("95"),
			SourceSystem: costing.SourceKanjyoBugyo,
		},
	}
	for i := range actuals {
		if err := h.Store.PutActualCost(ctx, &actuals[i]); err != nil {
			return err
		}
	}

	crudeActuals := []costing.CrudeProductActualCost{
		{
			CrudeProductID: "cp-ume-2023", PeriodID: "2025-04",
			MaterialCost: d("262000"), LaborCost: d("910000"), OverheadCost: d("480000"),
			TotalCost: d("1652000"), ActualQuantity: d("540"),
			SourceSystem: costing.SourceSCSystem,
		},
	}
	for i := range crudeActuals {
		if err := h.Store.PutCrudeActualCost(ctx, &crudeActuals[i]); err != nil {
			return err
		}
	}

	return nil
}
