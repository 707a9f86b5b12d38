/*
Package costing provides the core standard-cost calculation engine.

PURPOSE:
  This package contains the domain types and algorithms for computing
  standard manufacturing costs in a two-stage fermentation process:
  raw materials are rolled up into aged intermediate "crude" products
  (Stage 1), and crude products plus packaging are rolled up into
  finished products (Stage 2). Shared budget pools (labor, overhead,
  outsourcing) are distributed across cost-bearing items by the
  allocation engine.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers: opaque keys for materials, products, periods, ...
  - Enums: cost element, allocation basis, BOM type, source system
  - Master entities: Material, CrudeProduct, Product, BOMHeader, ...
  - Cost records: StandardCost, CrudeProductStandardCost, ActualCost
  - Round4: the single money-rounding policy (half-up, 4 places)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 for money
  2. Type safety: strong ID types prevent mixing material/product keys
  3. Determinism: engine inputs are ordered slices, never bare maps
  4. Idempotency: cost records upsert on their (item, period) key

SEE ALSO:
  - allocation.go: proportional budget distribution
  - calculator.go: the two-stage BOM rollup
  - copy.go: period-to-period replication of computed costs
  - store.go: persistence interfaces
*/
package costing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point policy shared by every component
// =============================================================================

// Round4 applies the engine-wide rounding policy: half-up, 4 fractional
// digits. decimal.Round rounds ties away from zero, which is the half-up
// behavior the accounting side expects.
func Round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// MustDecimal parses a decimal literal in tests and seed data.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	MaterialID     string
	CrudeProductID string
	ProductID      string
	CostCenterID   string
	PeriodID       string
	RuleID         string
	BOMHeaderID    string
)

// =============================================================================
// ENUMS
// =============================================================================

// MaterialCategory classifies raw materials and packaging.
type MaterialCategory string

const (
	CategoryFruit     MaterialCategory = "fruit"
	CategoryVegetable MaterialCategory = "vegetable"
	CategoryGrain     MaterialCategory = "grain"
	CategorySeaweed   MaterialCategory = "seaweed"
	CategoryOther     MaterialCategory = "other"
	CategoryPackaging MaterialCategory = "packaging"
)

// CostCenterType distinguishes the two budget-bearing departments from
// indirect ones. The calculator assumes exactly one manufacturing and one
// product center carry a budget per period.
type CostCenterType string

const (
	CenterManufacturing CostCenterType = "manufacturing"
	CenterProduct       CostCenterType = "product"
	CenterIndirect      CostCenterType = "indirect"
)

// PeriodStatus tracks the fiscal period lifecycle.
type PeriodStatus string

const (
	PeriodOpen    PeriodStatus = "open"
	PeriodClosing PeriodStatus = "closing"
	PeriodClosed  PeriodStatus = "closed"
)

// BOMType separates the two rollup stages.
type BOMType string

const (
	BOMRawMaterialProcess BOMType = "raw_material_process" // Stage 1: materials -> crude
	BOMProductProcess     BOMType = "product_process"      // Stage 2: crude + packaging -> product
)

// AllocationBasis selects the metric used to split a budget pool.
type AllocationBasis string

const (
	BasisProductionHours     AllocationBasis = "production_hours"
	BasisRawMaterialQuantity AllocationBasis = "raw_material_quantity"
	BasisCrudeQuantity       AllocationBasis = "crude_quantity"
	BasisWeight              AllocationBasis = "weight_based"
	BasisManual              AllocationBasis = "manual"
)

// CostElement is the closed set of cost components.
type CostElement string

const (
	ElementMaterial     CostElement = "material"
	ElementCrudeProduct CostElement = "crude_product"
	ElementPackaging    CostElement = "packaging"
	ElementLabor        CostElement = "labor"
	ElementOverhead     CostElement = "overhead"
	ElementOutsourcing  CostElement = "outsourcing"
	ElementPriorProcess CostElement = "prior_process"
)

// SourceSystem identifies where an actual-cost figure was ingested from.
type SourceSystem string

const (
	SourceGenekiDB    SourceSystem = "geneki_db"
	SourceSCSystem    SourceSystem = "sc_system"
	SourceKanjyoBugyo SourceSystem = "kanjyo_bugyo"
	SourceTsuhan21    SourceSystem = "tsuhan21"
	SourceRomuDB      SourceSystem = "romu_db"
	SourceProductDB   SourceSystem = "product_db"
	SourceManual      SourceSystem = "manual"
)

// MovementType is the summarized inventory-movement vocabulary carried on
// ingested actuals. The engine never replays movements at journal level;
// the enum exists so provenance stays a closed set.
type MovementType string

const (
	MovementMaterialReceipt MovementType = "material_receipt"
	MovementMaterialUsage   MovementType = "material_usage"
	MovementCrudeIncrease   MovementType = "crude_increase"
	MovementCrudeOutput     MovementType = "crude_output"
	MovementCrudeInput      MovementType = "crude_input"
	MovementFinishedGoods   MovementType = "finished_goods"
	MovementResearch        MovementType = "research"
	MovementPromotion       MovementType = "promotion"
	MovementAdjustment      MovementType = "adjustment"
)

// =============================================================================
// MASTER ENTITIES - Read-only reference data for the engine
// =============================================================================

// Material is a raw material or packaging item with a standard unit price.
type Material struct {
	ID                MaterialID
	Code              string
	Name              string
	Category          MaterialCategory
	Unit              string
	StandardUnitPrice decimal.Decimal
	IsActive          bool
	Notes             string
}

// CrudeProduct is an aged, fermented intermediate. A blend references
// other crude products through its BOM lines, which creates the
// dependency graph the calculator must respect.
type CrudeProduct struct {
	ID          CrudeProductID
	Code        string
	Name        string
	VintageYear int
	CrudeType   string
	AgingYears  int
	IsBlend     bool
	Unit        string
	IsActive    bool
	Notes       string
}

// Product is a finished good costed in Stage 2.
type Product struct {
	ID              ProductID
	Code            string
	Name            string
	ProductGroup    string
	ContentWeightG  decimal.Decimal // zero means unset; allocation falls back to BOM quantities
	StandardLotSize decimal.Decimal // defaults to 1 when unset or non-positive
	Unit            string
	IsActive        bool
	Notes           string
}

// CostCenter is a department. Manufacturing and product centers carry the
// stage budgets.
type CostCenter struct {
	ID         CostCenterID
	Code       string
	Name       string
	CenterType CostCenterType
	IsActive   bool
}

// FiscalPeriod is a (year, month) accounting period. All calculation
// writes are scoped to one period.
type FiscalPeriod struct {
	ID     PeriodID
	Year   int
	Month  int
	Status PeriodStatus
}

// CostBudget holds the budget pools for one cost center and period.
type CostBudget struct {
	ID                string
	CostCenterID      CostCenterID
	PeriodID          PeriodID
	LaborBudget       decimal.Decimal
	OverheadBudget    decimal.Decimal
	OutsourcingBudget decimal.Decimal
}

// AllocationRule configures how one cost center's budget is distributed.
// A nil CostElement is a wildcard that applies to any element without an
// exact-match rule. Higher priority wins within a tier.
type AllocationRule struct {
	ID                 RuleID
	Name               string
	SourceCostCenterID CostCenterID
	CostElement        *CostElement
	Basis              AllocationBasis
	Priority           int
	IsActive           bool
	Targets            []AllocationRuleTarget
}

// AllocationRuleTarget carries a fixed ratio, used only for manual basis.
type AllocationRuleTarget struct {
	TargetCostCenterID CostCenterID
	Ratio              decimal.Decimal
}

// BOMHeader owns a recipe for exactly one of a product or a crude
// product, never both. Multiple historical versions may exist; costing
// uses the active header with the newest effective date per owner.
type BOMHeader struct {
	ID             BOMHeaderID
	ProductID      ProductID      // set for Stage 2 headers
	CrudeProductID CrudeProductID // set for Stage 1 headers
	Type           BOMType
	EffectiveDate  time.Time
	Version        int
	YieldRate      decimal.Decimal
	IsActive       bool
	Lines          []BOMLine
}

// BOMLine references exactly one of a material or a crude product as its
// input. LossRate inflates the consumed quantity.
type BOMLine struct {
	MaterialID     MaterialID
	CrudeProductID CrudeProductID
	Quantity       decimal.Decimal
	Unit           string
	LossRate       decimal.Decimal
	SortOrder      int
}

// InputQuantity returns the line quantity inflated by loss:
// quantity * (1 + loss_rate).
func (l BOMLine) InputQuantity() decimal.Decimal {
	return l.Quantity.Mul(decimal.NewFromInt(1).Add(l.LossRate))
}

// =============================================================================
// COST RECORDS - Written by the engine, keyed on (item, period)
// =============================================================================

// CrudeProductStandardCost is the Stage 1 result for one crude product
// and period. Unique on (CrudeProductID, PeriodID).
type CrudeProductStandardCost struct {
	ID               string
	CrudeProductID   CrudeProductID
	PeriodID         PeriodID
	MaterialCost     decimal.Decimal
	LaborCost        decimal.Decimal
	OverheadCost     decimal.Decimal
	PriorProcessCost decimal.Decimal
	TotalCost        decimal.Decimal
	UnitCost         decimal.Decimal
	StandardQuantity decimal.Decimal
	Notes            string
}

// ApplyCosts overwrites the cost columns from another record, leaving the
// identity key (crude product, period) untouched. Stores use this instead
// of field-by-field mutation so the patch is testable on its own.
func (c *CrudeProductStandardCost) ApplyCosts(from CrudeProductStandardCost) {
	c.MaterialCost = from.MaterialCost
	c.LaborCost = from.LaborCost
	c.OverheadCost = from.OverheadCost
	c.PriorProcessCost = from.PriorProcessCost
	c.TotalCost = from.TotalCost
	c.UnitCost = from.UnitCost
	c.StandardQuantity = from.StandardQuantity
	c.Notes = from.Notes
}

// StandardCost is the Stage 2 result for one finished product and period.
// Unique on (ProductID, PeriodID).
type StandardCost struct {
	ID               string
	ProductID        ProductID
	PeriodID         PeriodID
	CrudeProductCost decimal.Decimal
	PackagingCost    decimal.Decimal
	LaborCost        decimal.Decimal
	OverheadCost     decimal.Decimal
	OutsourcingCost  decimal.Decimal
	TotalCost        decimal.Decimal
	UnitCost         decimal.Decimal
	LotSize          decimal.Decimal
	Notes            string
}

// ApplyCosts overwrites the cost columns from another record, leaving the
// identity key (product, period) untouched.
func (s *StandardCost) ApplyCosts(from StandardCost) {
	s.CrudeProductCost = from.CrudeProductCost
	s.PackagingCost = from.PackagingCost
	s.LaborCost = from.LaborCost
	s.OverheadCost = from.OverheadCost
	s.OutsourcingCost = from.OutsourcingCost
	s.TotalCost = from.TotalCost
	s.UnitCost = from.UnitCost
	s.LotSize = from.LotSize
	s.Notes = from.Notes
}

// ElementAmount reads the breakdown column for a cost element. Elements
// outside the Stage 2 breakdown return zero.
func (s StandardCost) ElementAmount(e CostElement) decimal.Decimal {
	switch e {
	case ElementCrudeProduct:
		return s.CrudeProductCost
	case ElementPackaging:
		return s.PackagingCost
	case ElementLabor:
		return s.LaborCost
	case ElementOverhead:
		return s.OverheadCost
	case ElementOutsourcing:
		return s.OutsourcingCost
	default:
		return decimal.Zero
	}
}

// ActualCost is an ingested, summarized actual-cost row for one product,
// cost center, and period. Read-only input to variance analysis and
// reconciliation. Unique on (ProductID, CostCenterID, PeriodID).
type ActualCost struct {
	ID               string
	ProductID        ProductID
	CostCenterID     CostCenterID
	PeriodID         PeriodID
	CrudeProductCost decimal.Decimal
	PackagingCost    decimal.Decimal
	LaborCost        decimal.Decimal
	OverheadCost     decimal.Decimal
	OutsourcingCost  decimal.Decimal
	TotalCost        decimal.Decimal
	QuantityProduced decimal.Decimal
	SourceSystem     SourceSystem
	Notes            string
}

// ElementAmount reads the breakdown column for a cost element.
func (a ActualCost) ElementAmount(e CostElement) decimal.Decimal {
	switch e {
	case ElementCrudeProduct:
		return a.CrudeProductCost
	case ElementPackaging:
		return a.PackagingCost
	case ElementLabor:
		return a.LaborCost
	case ElementOverhead:
		return a.OverheadCost
	case ElementOutsourcing:
		return a.OutsourcingCost
	default:
		return decimal.Zero
	}
}

// CrudeProductActualCost is the ingested Stage 1 counterpart. Unique on
// (CrudeProductID, PeriodID).
type CrudeProductActualCost struct {
	ID               string
	CrudeProductID   CrudeProductID
	PeriodID         PeriodID
	MaterialCost     decimal.Decimal
	LaborCost        decimal.Decimal
	OverheadCost     decimal.Decimal
	PriorProcessCost decimal.Decimal
	TotalCost        decimal.Decimal
	ActualQuantity   decimal.Decimal
	SourceSystem     SourceSystem
	Notes            string
}

// CostAllocation is the audit-trail row written when an allocation rule
// fires outside simulation. It captures the basis quantity and the item's
// share of the total for traceability.
type CostAllocation struct {
	ID                 string
	RuleID             RuleID
	PeriodID           PeriodID
	SourceCostCenterID CostCenterID
	TargetCostCenterID CostCenterID
	CostElement        *CostElement
	TargetItemID       string
	AllocatedAmount    decimal.Decimal
	BasisQuantity      decimal.Decimal
	Ratio              decimal.Decimal
	ExecutedAt         time.Time
}
