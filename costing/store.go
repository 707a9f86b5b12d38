/*
store.go - Persistence interfaces for the costing engine

PURPOSE:
  Defines the boundary between the engine and the backing store. The
  engine reads master data wholesale into memory per invocation (master
  data volume is small) and writes cost records through idempotent
  upserts keyed on the (item, period) unique constraints.

KEY INTERFACES:
  MasterStore:  read-only master data (materials, BOMs, budgets, rules)
  CostStore:    cost record reads and upserts, allocation audit rows
  Store:        the union consumed by the calculator
  SeedStore:    bulk writes used by scenario loading and dev seeding

CONCURRENCY CONTRACT:
  Invocations for the same period must be serialized by the caller. The
  unique constraints on cost tables surface conflicting concurrent
  writers as errors; no store-level locking is promised beyond that.

IMPLEMENTATIONS:
  - store/memory: in-memory, for tests and the scenario sandbox
  - store/sqlite: sqlx over SQLite, for production

SEE ALSO:
  - variance/analyzer.go, reconcile/reconcile.go: their own store views
*/
package costing

import "context"

// =============================================================================
// MASTER STORE - Read-only reference data
// =============================================================================

type MasterStore interface {
	// ListMaterials returns all active materials.
	ListMaterials(ctx context.Context) ([]Material, error)

	// ListCrudeProducts returns all active crude products.
	ListCrudeProducts(ctx context.Context) ([]CrudeProduct, error)

	// ListProducts returns all active products.
	ListProducts(ctx context.Context) ([]Product, error)

	// ListCostCenters returns all cost centers.
	ListCostCenters(ctx context.Context) ([]CostCenter, error)

	// GetPeriod returns the period, or (nil, nil) when it does not exist.
	GetPeriod(ctx context.Context, id PeriodID) (*FiscalPeriod, error)

	// ListBOMHeaders returns active headers of the given type with their
	// lines attached, newest effective date first.
	ListBOMHeaders(ctx context.Context, t BOMType) ([]BOMHeader, error)

	// BudgetForCenterType resolves the budget row for the single
	// budget-bearing cost center of the given type in the period, or
	// (nil, nil) when none is configured.
	BudgetForCenterType(ctx context.Context, period PeriodID, ct CostCenterType) (*CostBudget, error)

	// ActiveAllocationRules returns active rules for the source cost
	// center ordered by priority descending.
	ActiveAllocationRules(ctx context.Context, source CostCenterID) ([]AllocationRule, error)
}

// =============================================================================
// COST STORE - Engine output and ingested actuals
// =============================================================================

type CostStore interface {
	// StandardCostsForPeriod returns all Stage 2 records for the period.
	StandardCostsForPeriod(ctx context.Context, period PeriodID) ([]StandardCost, error)

	// CrudeStandardCostsForPeriod returns all Stage 1 records for the period.
	CrudeStandardCostsForPeriod(ctx context.Context, period PeriodID) ([]CrudeProductStandardCost, error)

	// UpsertStandardCost inserts or overwrites on (product, period).
	// On insert a missing ID is minted by the store.
	UpsertStandardCost(ctx context.Context, sc *StandardCost) error

	// UpsertCrudeStandardCost inserts or overwrites on (crude product, period).
	UpsertCrudeStandardCost(ctx context.Context, sc *CrudeProductStandardCost) error

	// ActualCostsForPeriod returns ingested finished-product actuals.
	ActualCostsForPeriod(ctx context.Context, period PeriodID) ([]ActualCost, error)

	// CrudeActualCostsForPeriod returns ingested crude-product actuals.
	CrudeActualCostsForPeriod(ctx context.Context, period PeriodID) ([]CrudeProductActualCost, error)

	// InsertCostAllocation appends one allocation audit row.
	InsertCostAllocation(ctx context.Context, ca *CostAllocation) error

	// CostAllocationsForPeriod returns the allocation audit trail.
	CostAllocationsForPeriod(ctx context.Context, period PeriodID) ([]CostAllocation, error)
}

// Store is the full surface the calculator and period copy consume.
type Store interface {
	MasterStore
	CostStore
}

// =============================================================================
// SEED STORE - Bulk master-data writes (scenarios, dev seeding)
// =============================================================================

// SeedStore is implemented by stores that can be reloaded with a demo
// dataset. Master-data CRUD is otherwise external to this engine.
type SeedStore interface {
	// ResetAll wipes every table.
	ResetAll(ctx context.Context) error

	PutMaterial(ctx context.Context, m *Material) error
	PutCrudeProduct(ctx context.Context, cp *CrudeProduct) error
	PutProduct(ctx context.Context, p *Product) error
	PutCostCenter(ctx context.Context, cc *CostCenter) error
	PutPeriod(ctx context.Context, fp *FiscalPeriod) error
	PutBudget(ctx context.Context, b *CostBudget) error
	PutAllocationRule(ctx context.Context, r *AllocationRule) error
	PutBOMHeader(ctx context.Context, h *BOMHeader) error
	PutActualCost(ctx context.Context, ac *ActualCost) error
	PutCrudeActualCost(ctx context.Context, ac *CrudeProductActualCost) error
}
