/*
dto.go - Request and response data structures

PURPOSE:
  JSON shapes for the REST API, kept separate from the domain types so
  the wire format can evolve without touching the engines. All money
  fields are decimal.Decimal, which shopspring marshals as quoted
  strings - clients must not parse them as floats.

VALIDATION:
  Request structs carry go-playground/validator tags; handlers run them
  through a shared validator instance before touching the engines.

SEE ALSO:
  - handlers.go: parsing, validation, and status mapping
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/arakawak223/stdcost/costing"
)

// =============================================================================
// CALCULATION
// =============================================================================

type BudgetChangeDTO struct {
	LaborBudget       *decimal.Decimal `json:"labor_budget,omitempty"`
	OverheadBudget    *decimal.Decimal `json:"overhead_budget,omitempty"`
	OutsourcingBudget *decimal.Decimal `json:"outsourcing_budget,omitempty"`
}

type OverridesDTO struct {
	MaterialPrices      map[string]decimal.Decimal `json:"material_prices,omitempty"`
	BudgetChanges       map[string]BudgetChangeDTO `json:"budget_changes,omitempty"`
	CategoryRateChanges map[string]decimal.Decimal `json:"category_rate_changes,omitempty"`
}

type CalculateRequest struct {
	PeriodID   string        `json:"period_id" validate:"required"`
	ProductIDs []string      `json:"product_ids,omitempty"`
	Simulate   bool          `json:"simulate"`
	Overrides  *OverridesDTO `json:"overrides,omitempty"`
}

type CrudeStandardCostDTO struct {
	ID               string          `json:"id,omitempty"`
	CrudeProductID   string          `json:"crude_product_id"`
	PeriodID         string          `json:"period_id"`
	MaterialCost     decimal.Decimal `json:"material_cost"`
	LaborCost        decimal.Decimal `json:"labor_cost"`
	OverheadCost     decimal.Decimal `json:"overhead_cost"`
	PriorProcessCost decimal.Decimal `json:"prior_process_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	StandardQuantity decimal.Decimal `json:"standard_quantity"`
}

type StandardCostDTO struct {
	ID               string          `json:"id,omitempty"`
	ProductID        string          `json:"product_id"`
	PeriodID         string          `json:"period_id"`
	CrudeProductCost decimal.Decimal `json:"crude_product_cost"`
	PackagingCost    decimal.Decimal `json:"packaging_cost"`
	LaborCost        decimal.Decimal `json:"labor_cost"`
	OverheadCost     decimal.Decimal `json:"overhead_cost"`
	OutsourcingCost  decimal.Decimal `json:"outsourcing_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	LotSize          decimal.Decimal `json:"lot_size"`
}

type CalculateResponse struct {
	PeriodID                string                 `json:"period_id"`
	Simulated               bool                   `json:"simulated"`
	CrudeProductsCalculated int                    `json:"crude_products_calculated"`
	ProductsCalculated      int                    `json:"products_calculated"`
	TotalCrudeProductCost   decimal.Decimal        `json:"total_crude_product_cost"`
	TotalProductCost        decimal.Decimal        `json:"total_product_cost"`
	CrudeProductCosts       []CrudeStandardCostDTO `json:"crude_product_costs"`
	ProductCosts            []StandardCostDTO      `json:"product_costs"`
}

func toCrudeStandardCostDTO(c costing.CrudeProductStandardCost) CrudeStandardCostDTO {
	return CrudeStandardCostDTO{
		ID:               c.ID,
		CrudeProductID:   string(c.CrudeProductID),
		PeriodID:         string(c.PeriodID),
		MaterialCost:     c.MaterialCost,
		LaborCost:        c.LaborCost,
		OverheadCost:     c.OverheadCost,
		PriorProcessCost: c.PriorProcessCost,
		TotalCost:        c.TotalCost,
		UnitCost:         c.UnitCost,
		StandardQuantity: c.StandardQuantity,
	}
}

func toStandardCostDTO(s costing.StandardCost) StandardCostDTO {
	return StandardCostDTO{
		ID:               s.ID,
		ProductID:        string(s.ProductID),
		PeriodID:         string(s.PeriodID),
		CrudeProductCost: s.CrudeProductCost,
		PackagingCost:    s.PackagingCost,
		LaborCost:        s.LaborCost,
		OverheadCost:     s.OverheadCost,
		OutsourcingCost:  s.OutsourcingCost,
		TotalCost:        s.TotalCost,
		UnitCost:         s.UnitCost,
		LotSize:          s.LotSize,
	}
}

// =============================================================================
// PERIOD COPY
// =============================================================================

type CopyRequest struct {
	SourcePeriodID string `json:"source_period_id" validate:"required"`
	TargetPeriodID string `json:"target_period_id" validate:"required"`
	Overwrite      bool   `json:"overwrite"`
}

type CopyResponse struct {
	SourcePeriodID       string `json:"source_period_id"`
	TargetPeriodID       string `json:"target_period_id"`
	CrudeProductsCopied  int    `json:"crude_products_copied"`
	CrudeProductsSkipped int    `json:"crude_products_skipped"`
	CrudeProductsUpdated int    `json:"crude_products_updated"`
	ProductsCopied       int    `json:"products_copied"`
	ProductsSkipped      int    `json:"products_skipped"`
	ProductsUpdated      int    `json:"products_updated"`
}

// =============================================================================
// ALLOCATION AUDIT
// =============================================================================

type CostAllocationDTO struct {
	ID                 string          `json:"id"`
	RuleID             string          `json:"rule_id"`
	PeriodID           string          `json:"period_id"`
	SourceCostCenterID string          `json:"source_cost_center_id"`
	CostElement        string          `json:"cost_element,omitempty"`
	TargetItemID       string          `json:"target_item_id"`
	AllocatedAmount    decimal.Decimal `json:"allocated_amount"`
	BasisQuantity      decimal.Decimal `json:"basis_quantity"`
	Ratio              decimal.Decimal `json:"ratio"`
	ExecutedAt         string          `json:"executed_at"`
}

// =============================================================================
// VARIANCE
// =============================================================================

type AnalyzeRequest struct {
	PeriodID         string           `json:"period_id" validate:"required"`
	ProductIDs       []string         `json:"product_ids,omitempty"`
	ThresholdPercent *decimal.Decimal `json:"threshold_percent,omitempty"` // default 5.0
}

type ElementVarianceDTO struct {
	CostElement     string          `json:"cost_element"`
	StandardAmount  decimal.Decimal `json:"standard_amount"`
	ActualAmount    decimal.Decimal `json:"actual_amount"`
	VarianceAmount  decimal.Decimal `json:"variance_amount"`
	VariancePercent decimal.Decimal `json:"variance_percent"`
	IsFavorable     bool            `json:"is_favorable"`
}

type ProductVarianceDTO struct {
	ProductID       string               `json:"product_id"`
	ProductCode     string               `json:"product_code"`
	ProductName     string               `json:"product_name"`
	TotalStandard   decimal.Decimal      `json:"total_standard"`
	TotalActual     decimal.Decimal      `json:"total_actual"`
	TotalVariance   decimal.Decimal      `json:"total_variance"`
	VariancePercent decimal.Decimal      `json:"total_variance_percent"`
	IsFavorable     bool                 `json:"is_favorable"`
	Elements        []ElementVarianceDTO `json:"elements"`
}

type AnalyzeResponse struct {
	PeriodID         string               `json:"period_id"`
	RecordsCreated   int                  `json:"records_created"`
	FlaggedCount     int                  `json:"flagged_count"`
	ProductsAnalyzed int                  `json:"products_analyzed"`
	TotalStandard    decimal.Decimal      `json:"total_standard"`
	TotalActual      decimal.Decimal      `json:"total_actual"`
	TotalVariance    decimal.Decimal      `json:"total_variance"`
	Details          []ProductVarianceDTO `json:"details"`
}

type ElementSummaryDTO struct {
	CostElement            string          `json:"cost_element"`
	TotalStandard          decimal.Decimal `json:"total_standard"`
	TotalActual            decimal.Decimal `json:"total_actual"`
	TotalVariance          decimal.Decimal `json:"total_variance"`
	AverageVariancePercent decimal.Decimal `json:"average_variance_percent"`
	FavorableCount         int             `json:"favorable_count"`
	UnfavorableCount       int             `json:"unfavorable_count"`
	FlaggedCount           int             `json:"flagged_count"`
}

type VarianceSummaryResponse struct {
	PeriodID               string              `json:"period_id"`
	TotalStandard          decimal.Decimal     `json:"total_standard"`
	TotalActual            decimal.Decimal     `json:"total_actual"`
	TotalVariance          decimal.Decimal     `json:"total_variance"`
	AverageVariancePercent decimal.Decimal     `json:"average_variance_percent"`
	RecordCount            int                 `json:"record_count"`
	FlaggedCount           int                 `json:"flagged_count"`
	ProductCount           int                 `json:"product_count"`
	Elements               []ElementSummaryDTO `json:"elements"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type ReconcileRequest struct {
	PeriodID  string           `json:"period_id" validate:"required"`
	Threshold *decimal.Decimal `json:"threshold,omitempty"` // default 1000
}

type ReconcileResponse struct {
	PeriodID      string `json:"period_id"`
	Matched       int    `json:"matched"`
	Unmatched     int    `json:"unmatched"`
	Discrepancies int    `json:"discrepancies"`
	Total         int    `json:"total"`
}

type ReconcileSummaryResponse struct {
	PeriodID        string          `json:"period_id"`
	Matched         int             `json:"matched"`
	Unmatched       int             `json:"unmatched"`
	Discrepancies   int             `json:"discrepancies"`
	Total           int             `json:"total"`
	TotalDifference decimal.Decimal `json:"total_difference"`
}

// =============================================================================
// EXPLANATION
// =============================================================================

type ExplainRequest struct {
	PeriodID string `json:"period_id" validate:"required"`
}

type ExplainResponse struct {
	PeriodID    string `json:"period_id"`
	Explanation string `json:"explanation"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}
