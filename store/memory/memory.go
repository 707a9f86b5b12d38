/*
Package memory provides the in-memory store implementation.

PURPOSE:
  Backs tests and the scenario sandbox. Implements every store surface
  the engines consume: costing.Store, costing.SeedStore, variance.Store,
  and reconcile.Store.

SEMANTICS:
  - All list methods return copies in a deterministic order, so callers
    can iterate without extra sorting and never alias internal state.
  - Upserts patch cost columns in place on the (item, period) key and
    mint a UUID when the incoming record has no ID.
  - A single RWMutex guards everything; the dataset is small enough that
    finer locking buys nothing.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/arakawak223/stdcost/costing"
	"github.com/arakawak223/stdcost/reconcile"
	"github.com/arakawak223/stdcost/variance"
)

type crudeCostKey struct {
	CrudeProductID costing.CrudeProductID
	PeriodID       costing.PeriodID
}

type productCostKey struct {
	ProductID costing.ProductID
	PeriodID  costing.PeriodID
}

type Memory struct {
	mu sync.RWMutex

	materials     map[costing.MaterialID]costing.Material
	crudeProducts map[costing.CrudeProductID]costing.CrudeProduct
	products      map[costing.ProductID]costing.Product
	costCenters   map[costing.CostCenterID]costing.CostCenter
	periods       map[costing.PeriodID]costing.FiscalPeriod
	budgets       []costing.CostBudget
	rules         []costing.AllocationRule
	bomHeaders    []costing.BOMHeader

	crudeStdCosts map[crudeCostKey]costing.CrudeProductStandardCost
	stdCosts      map[productCostKey]costing.StandardCost
	actuals       []costing.ActualCost
	crudeActuals  []costing.CrudeProductActualCost
	allocations   []costing.CostAllocation

	varianceRecords []variance.Record
	reconResults    []reconcile.Result
}

func New() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.materials = make(map[costing.MaterialID]costing.Material)
	m.crudeProducts = make(map[costing.CrudeProductID]costing.CrudeProduct)
	m.products = make(map[costing.ProductID]costing.Product)
	m.costCenters = make(map[costing.CostCenterID]costing.CostCenter)
	m.periods = make(map[costing.PeriodID]costing.FiscalPeriod)
	m.budgets = nil
	m.rules = nil
	m.bomHeaders = nil
	m.crudeStdCosts = make(map[crudeCostKey]costing.CrudeProductStandardCost)
	m.stdCosts = make(map[productCostKey]costing.StandardCost)
	m.actuals = nil
	m.crudeActuals = nil
	m.allocations = nil
	m.varianceRecords = nil
	m.reconResults = nil
}

// =============================================================================
// MASTER STORE
// =============================================================================

func (m *Memory) ListMaterials(_ context.Context) ([]costing.Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]costing.Material, 0, len(m.materials))
	for _, v := range m.materials {
		if v.IsActive {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) ListCrudeProducts(_ context.Context) ([]costing.CrudeProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]costing.CrudeProduct, 0, len(m.crudeProducts))
	for _, v := range m.crudeProducts {
		if v.IsActive {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]costing.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]costing.Product, 0, len(m.products))
	for _, v := range m.products {
		if v.IsActive {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) ListCostCenters(_ context.Context) ([]costing.CostCenter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]costing.CostCenter, 0, len(m.costCenters))
	for _, v := range m.costCenters {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) GetPeriod(_ context.Context, id costing.PeriodID) (*costing.FiscalPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fp, ok := m.periods[id]
	if !ok {
		return nil, nil
	}
	return &fp, nil
}

func (m *Memory) ListBOMHeaders(_ context.Context, t costing.BOMType) ([]costing.BOMHeader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []costing.BOMHeader
	for _, h := range m.bomHeaders {
		if h.IsActive && h.Type == t {
			copied := h
			copied.Lines = append([]costing.BOMLine(nil), h.Lines...)
			out = append(out, copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EffectiveDate.Equal(out[j].EffectiveDate) {
			return out[i].EffectiveDate.After(out[j].EffectiveDate)
		}
		return out[i].Version > out[j].Version
	})
	return out, nil
}

func (m *Memory) BudgetForCenterType(_ context.Context, period costing.PeriodID, ct costing.CostCenterType) (*costing.CostBudget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.budgets {
		if b.PeriodID != period {
			continue
		}
		cc, ok := m.costCenters[b.CostCenterID]
		if ok && cc.IsActive && cc.CenterType == ct {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) ActiveAllocationRules(_ context.Context, source costing.CostCenterID) ([]costing.AllocationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []costing.AllocationRule
	for _, r := range m.rules {
		if r.IsActive && r.SourceCostCenterID == source {
			copied := r
			copied.Targets = append([]costing.AllocationRuleTarget(nil), r.Targets...)
			out = append(out, copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

// =============================================================================
// COST STORE
// =============================================================================

func (m *Memory) StandardCostsForPeriod(_ context.Context, period costing.PeriodID) ([]costing.StandardCost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []costing.StandardCost
	for k, v := range m.stdCosts {
		if k.PeriodID == period {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *Memory) CrudeStandardCostsForPeriod(_ context.Context, period costing.PeriodID) ([]costing.CrudeProductStandardCost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []costing.CrudeProductStandardCost
	for k, v := range m.crudeStdCosts {
		if k.PeriodID == period {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CrudeProductID < out[j].CrudeProductID })
	return out, nil
}

func (m *Memory) UpsertStandardCost(_ context.Context, sc *costing.StandardCost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := productCostKey{ProductID: sc.ProductID, PeriodID: sc.PeriodID}
	if existing, ok := m.stdCosts[key]; ok {
		existing.ApplyCosts(*sc)
		m.stdCosts[key] = existing
		sc.ID = existing.ID
		return nil
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	m.stdCosts[key] = *sc
	return nil
}

func (m *Memory) UpsertCrudeStandardCost(_ context.Context, sc *costing.CrudeProductStandardCost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := crudeCostKey{CrudeProductID: sc.CrudeProductID, PeriodID: sc.PeriodID}
	if existing, ok := m.crudeStdCosts[key]; ok {
		existing.ApplyCosts(*sc)
		m.crudeStdCosts[key] = existing
		sc.ID = existing.ID
		return nil
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	m.crudeStdCosts[key] = *sc
	return nil
}

func (m *Memory) ActualCostsForPeriod(_ context.Context, period costing.PeriodID) ([]costing.ActualCost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []costing.ActualCost
	for _, ac := range m.actuals {
		if ac.PeriodID == period {
			out = append(out, ac)
		}
	}
	return out, nil
}

func (m *Memory) CrudeActualCostsForPeriod(_ context.Context, period costing.PeriodID) ([]costing.CrudeProductActualCost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []costing.CrudeProductActualCost
	for _, ac := range m.crudeActuals {
		if ac.PeriodID == period {
			out = append(out, ac)
		}
	}
	return out, nil
}

func (m *Memory) InsertCostAllocation(_ context.Context, ca *costing.CostAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ca.ID == "" {
		ca.ID = uuid.NewString()
	}
	m.allocations = append(m.allocations, *ca)
	return nil
}

func (m *Memory) CostAllocationsForPeriod(_ context.Context, period costing.PeriodID) ([]costing.CostAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []costing.CostAllocation
	for _, ca := range m.allocations {
		if ca.PeriodID == period {
			out = append(out, ca)
		}
	}
	return out, nil
}

// =============================================================================
// VARIANCE STORE
// =============================================================================

func (m *Memory) DeleteVarianceRecords(_ context.Context, period costing.PeriodID, productIDs []costing.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	subset := make(map[costing.ProductID]bool, len(productIDs))
	for _, id := range productIDs {
		subset[id] = true
	}
	kept := m.varianceRecords[:0]
	for _, r := range m.varianceRecords {
		if r.PeriodID == period && (len(subset) == 0 || subset[r.ProductID]) {
			continue
		}
		kept = append(kept, r)
	}
	m.varianceRecords = kept
	return nil
}

func (m *Memory) InsertVarianceRecord(_ context.Context, r *variance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.varianceRecords = append(m.varianceRecords, *r)
	return nil
}

func (m *Memory) VarianceRecordsForPeriod(_ context.Context, period costing.PeriodID) ([]variance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []variance.Record
	for _, r := range m.varianceRecords {
		if r.PeriodID == period {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// RECONCILIATION STORE
// =============================================================================

func (m *Memory) DeleteReconciliationResults(_ context.Context, period costing.PeriodID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.reconResults[:0]
	for _, r := range m.reconResults {
		if r.PeriodID == period {
			continue
		}
		kept = append(kept, r)
	}
	m.reconResults = kept
	return nil
}

func (m *Memory) InsertReconciliationResult(_ context.Context, r *reconcile.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.reconResults = append(m.reconResults, *r)
	return nil
}

func (m *Memory) ReconciliationResultsForPeriod(_ context.Context, period costing.PeriodID) ([]reconcile.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []reconcile.Result
	for _, r := range m.reconResults {
		if r.PeriodID == period {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// SEED STORE
// =============================================================================

func (m *Memory) ResetAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

func (m *Memory) PutMaterial(_ context.Context, v *costing.Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = costing.MaterialID(uuid.NewString())
	}
	m.materials[v.ID] = *v
	return nil
}

func (m *Memory) PutCrudeProduct(_ context.Context, v *costing.CrudeProduct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = costing.CrudeProductID(uuid.NewString())
	}
	m.crudeProducts[v.ID] = *v
	return nil
}

func (m *Memory) PutProduct(_ context.Context, v *costing.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = costing.ProductID(uuid.NewString())
	}
	m.products[v.ID] = *v
	return nil
}

func (m *Memory) PutCostCenter(_ context.Context, v *costing.CostCenter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = costing.CostCenterID(uuid.NewString())
	}
	m.costCenters[v.ID] = *v
	return nil
}

func (m *Memory) PutPeriod(_ context.Context, v *costing.FiscalPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = costing.PeriodID(uuid.NewString())
	}
	m.periods[v.ID] = *v
	return nil
}

func (m *Memory) PutBudget(_ context.Context, v *costing.CostBudget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	m.budgets = append(m.budgets, *v)
	return nil
}

func (m *Memory) PutAllocationRule(_ context.Context, v *costing.AllocationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = costing.RuleID(uuid.NewString())
	}
	copied := *v
	copied.Targets = append([]costing.AllocationRuleTarget(nil), v.Targets...)
	m.rules = append(m.rules, copied)
	return nil
}

func (m *Memory) PutBOMHeader(_ context.Context, v *costing.BOMHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = costing.BOMHeaderID(uuid.NewString())
	}
	copied := *v
	copied.Lines = append([]costing.BOMLine(nil), v.Lines...)
	m.bomHeaders = append(m.bomHeaders, copied)
	return nil
}

func (m *Memory) PutActualCost(_ context.Context, v *costing.ActualCost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	m.actuals = append(m.actuals, *v)
	return nil
}

func (m *Memory) PutCrudeActualCost(_ context.Context, v *costing.CrudeProductActualCost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	m.crudeActuals = append(m.crudeActuals, *v)
	return nil
}
