/*
Package sqlite provides the SQLite-backed store implementation.

PURPOSE:
  Implements every persistence surface the engines consume
  (costing.Store, costing.SeedStore, variance.Store, reconcile.Store)
  on SQLite via sqlx. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

DECIMALS:
  All money and quantity columns are stored as TEXT holding the exact
  decimal literal. SQLite REAL would reintroduce the float drift the
  engine exists to avoid.

KEY CONSTRAINTS:
  crude_standard_costs: UNIQUE(crude_product_id, period_id)
  standard_costs:       UNIQUE(product_id, period_id)
  actual_costs:         UNIQUE(product_id, cost_center_id, period_id)
  fiscal_periods:       UNIQUE(year, month)
  These are the idempotency keys of the calculation writes; a
  conflicting concurrent writer surfaces as a constraint error.

WAL MODE:
  Opened with WAL and foreign keys on. Multiple readers do not block;
  a single writer at a time.

MIGRATION:
  Schema is auto-migrated on New(). For production use a versioned
  migration tool.

SEE ALSO:
  - costing/store.go: interface definitions
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/arakawak223/stdcost/costing"
	"github.com/arakawak223/stdcost/reconcile"
	"github.com/arakawak223/stdcost/variance"

	"github.com/google/uuid"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sqlx.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS materials (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		unit TEXT NOT NULL,
		standard_unit_price TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS crude_products (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		vintage_year INTEGER NOT NULL DEFAULT 0,
		crude_type TEXT NOT NULL DEFAULT '',
		aging_years INTEGER NOT NULL DEFAULT 0,
		is_blend INTEGER NOT NULL DEFAULT 0,
		unit TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		product_group TEXT NOT NULL DEFAULT '',
		content_weight_g TEXT NOT NULL DEFAULT '0',
		standard_lot_size TEXT NOT NULL DEFAULT '0',
		unit TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS cost_centers (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		center_type TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS fiscal_periods (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		status TEXT NOT NULL,
		UNIQUE(year, month)
	);

	CREATE TABLE IF NOT EXISTS cost_budgets (
		id TEXT PRIMARY KEY,
		cost_center_id TEXT NOT NULL REFERENCES cost_centers(id),
		period_id TEXT NOT NULL REFERENCES fiscal_periods(id),
		labor_budget TEXT NOT NULL DEFAULT '0',
		overhead_budget TEXT NOT NULL DEFAULT '0',
		outsourcing_budget TEXT NOT NULL DEFAULT '0',
		UNIQUE(cost_center_id, period_id)
	);

	CREATE TABLE IF NOT EXISTS allocation_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_cost_center_id TEXT NOT NULL REFERENCES cost_centers(id),
		cost_element TEXT,
		basis TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_rules_source
		ON allocation_rules(source_cost_center_id, priority DESC);

	CREATE TABLE IF NOT EXISTS allocation_rule_targets (
		rule_id TEXT NOT NULL REFERENCES allocation_rules(id),
		target_cost_center_id TEXT NOT NULL,
		ratio TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_rule_targets_rule
		ON allocation_rule_targets(rule_id, sort_order);

	CREATE TABLE IF NOT EXISTS bom_headers (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL DEFAULT '',
		crude_product_id TEXT NOT NULL DEFAULT '',
		bom_type TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		yield_rate TEXT NOT NULL DEFAULT '1',
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_bom_headers_type
		ON bom_headers(bom_type, is_active, effective_date DESC);

	CREATE TABLE IF NOT EXISTS bom_lines (
		header_id TEXT NOT NULL REFERENCES bom_headers(id),
		material_id TEXT NOT NULL DEFAULT '',
		crude_product_id TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		loss_rate TEXT NOT NULL DEFAULT '0',
		sort_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_bom_lines_header
		ON bom_lines(header_id, sort_order);

	CREATE TABLE IF NOT EXISTS crude_standard_costs (
		id TEXT PRIMARY KEY,
		crude_product_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		material_cost TEXT NOT NULL DEFAULT '0',
		labor_cost TEXT NOT NULL DEFAULT '0',
		overhead_cost TEXT NOT NULL DEFAULT '0',
		prior_process_cost TEXT NOT NULL DEFAULT '0',
		total_cost TEXT NOT NULL DEFAULT '0',
		unit_cost TEXT NOT NULL DEFAULT '0',
		standard_quantity TEXT NOT NULL DEFAULT '0',
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE(crude_product_id, period_id)
	);

	CREATE TABLE IF NOT EXISTS standard_costs (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		crude_product_cost TEXT NOT NULL DEFAULT '0',
		packaging_cost TEXT NOT NULL DEFAULT '0',
		labor_cost TEXT NOT NULL DEFAULT '0',
		overhead_cost TEXT NOT NULL DEFAULT '0',
		outsourcing_cost TEXT NOT NULL DEFAULT '0',
		total_cost TEXT NOT NULL DEFAULT '0',
		unit_cost TEXT NOT NULL DEFAULT '0',
		lot_size TEXT NOT NULL DEFAULT '1',
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE(product_id, period_id)
	);

	CREATE TABLE IF NOT EXISTS actual_costs (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		cost_center_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		crude_product_cost TEXT NOT NULL DEFAULT '0',
		packaging_cost TEXT NOT NULL DEFAULT '0',
		labor_cost TEXT NOT NULL DEFAULT '0',
		overhead_cost TEXT NOT NULL DEFAULT '0',
		outsourcing_cost TEXT NOT NULL DEFAULT '0',
		total_cost TEXT NOT NULL DEFAULT '0',
		quantity_produced TEXT NOT NULL DEFAULT '0',
		source_system TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE(product_id, cost_center_id, period_id)
	);

	CREATE TABLE IF NOT EXISTS crude_actual_costs (
		id TEXT PRIMARY KEY,
		crude_product_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		material_cost TEXT NOT NULL DEFAULT '0',
		labor_cost TEXT NOT NULL DEFAULT '0',
		overhead_cost TEXT NOT NULL DEFAULT '0',
		prior_process_cost TEXT NOT NULL DEFAULT '0',
		total_cost TEXT NOT NULL DEFAULT '0',
		actual_quantity TEXT NOT NULL DEFAULT '0',
		source_system TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE(crude_product_id, period_id)
	);

	CREATE TABLE IF NOT EXISTS cost_allocations (
		id TEXT PRIMARY KEY,
		rule_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		source_cost_center_id TEXT NOT NULL,
		target_cost_center_id TEXT NOT NULL,
		cost_element TEXT,
		target_item_id TEXT NOT NULL,
		allocated_amount TEXT NOT NULL,
		basis_quantity TEXT NOT NULL,
		ratio TEXT NOT NULL,
		executed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_period
		ON cost_allocations(period_id);

	CREATE TABLE IF NOT EXISTS variance_records (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		cost_center_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		cost_element TEXT NOT NULL,
		variance_type TEXT NOT NULL,
		standard_amount TEXT NOT NULL,
		actual_amount TEXT NOT NULL,
		variance_amount TEXT NOT NULL,
		variance_percent TEXT NOT NULL,
		is_favorable INTEGER NOT NULL,
		is_flagged INTEGER NOT NULL,
		flag_reason TEXT NOT NULL DEFAULT '',
		analyzed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_variance_period
		ON variance_records(period_id, product_id);

	CREATE TABLE IF NOT EXISTS reconciliation_results (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		source_a TEXT NOT NULL,
		source_b TEXT NOT NULL,
		value_a TEXT,
		value_b TEXT,
		difference TEXT,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		reconciled_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_period
		ON reconciliation_results(period_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DECIMAL / TIME HELPERS
// =============================================================================

// decParser collects the first parse failure while converting a row's
// TEXT columns, so row conversion stays flat.
type decParser struct {
	err error
}

func (p *decParser) dec(s string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.err = fmt.Errorf("corrupt decimal column %q: %w", s, err)
		return decimal.Zero
	}
	return d
}

func (p *decParser) decPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d := p.dec(*s)
	return &d
}

func (p *decParser) time(s string) time.Time {
	if p.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		p.err = fmt.Errorf("corrupt time column %q: %w", s, err)
		return time.Time{}
	}
	return t
}

func str(d decimal.Decimal) string { return d.String() }

func strPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// =============================================================================
// MASTER STORE
// =============================================================================

type materialRow struct {
	ID                string `db:"id"`
	Code              string `db:"code"`
	Name              string `db:"name"`
	Category          string `db:"category"`
	Unit              string `db:"unit"`
	StandardUnitPrice string `db:"standard_unit_price"`
	IsActive          bool   `db:"is_active"`
	Notes             string `db:"notes"`
}

func (s *Store) ListMaterials(ctx context.Context) ([]costing.Material, error) {
	var rows []materialRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM materials WHERE is_active = 1 ORDER BY code`)
	if err != nil {
		return nil, err
	}
	out := make([]costing.Material, 0, len(rows))
	for _, r := range rows {
		p := &decParser{}
		m := costing.Material{
			ID:                costing.MaterialID(r.ID),
			Code:              r.Code,
			Name:              r.Name,
			Category:          costing.MaterialCategory(r.Category),
			Unit:              r.Unit,
			StandardUnitPrice: p.dec(r.StandardUnitPrice),
			IsActive:          r.IsActive,
			Notes:             r.Notes,
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, m)
	}
	return out, nil
}

type crudeProductRow struct {
	ID          string `db:"id"`
	Code        string `db:"code"`
	Name        string `db:"name"`
	VintageYear int    `db:"vintage_year"`
	CrudeType   string `db:"crude_type"`
	AgingYears  int    `db:"aging_years"`
	IsBlend     bool   `db:"is_blend"`
	Unit        string `db:"unit"`
	IsActive    bool   `db:"is_active"`
	Notes       string `db:"notes"`
}

func (s *Store) ListCrudeProducts(ctx context.Context) ([]costing.CrudeProduct, error) {
	var rows []crudeProductRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM crude_products WHERE is_active = 1 ORDER BY code`)
	if err != nil {
		return nil, err
	}
	out := make([]costing.CrudeProduct, 0, len(rows))
	for _, r := range rows {
		out = append(out, costing.CrudeProduct{
			ID:          costing.CrudeProductID(r.ID),
			Code:        r.Code,
			Name:        r.Name,
			VintageYear: r.VintageYear,
			CrudeType:   r.CrudeType,
			AgingYears:  r.AgingYears,
			IsBlend:     r.IsBlend,
			Unit:        r.Unit,
			IsActive:    r.IsActive,
			Notes:       r.Notes,
		})
	}
	return out, nil
}

type productRow struct {
	ID              string `db:"id"`
	Code            string `db:"code"`
	Name            string `db:"name"`
	ProductGroup    string `db:"product_group"`
	ContentWeightG  string `db:"content_weight_g"`
	StandardLotSize string `db:"standard_lot_size"`
	Unit            string `db:"unit"`
	IsActive        bool   `db:"is_active"`
	Notes           string `db:"notes"`
}

func (s *Store) ListProducts(ctx context.Context) ([]costing.Product, error) {
	var rows []productRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM products WHERE is_active = 1 ORDER BY code`)
	if err != nil {
		return nil, err
	}
	out := make([]costing.Product, 0, len(rows))
	for _, r := range rows {
		p := &decParser{}
		product := costing.Product{
			ID:              costing.ProductID(r.ID),
			Code:            r.Code,
			Name:            r.Name,
			ProductGroup:    r.ProductGroup,
			ContentWeightG:  p.dec(r.ContentWeightG),
			StandardLotSize: p.dec(r.StandardLotSize),
			Unit:            r.Unit,
			IsActive:        r.IsActive,
			Notes:           r.Notes,
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, product)
	}
	return out, nil
}

type costCenterRow struct {
	ID         string `db:"id"`
	Code       string `db:"code"`
	Name       string `db:"name"`
	CenterType string `db:"center_type"`
	IsActive   bool   `db:"is_active"`
}

func (s *Store) ListCostCenters(ctx context.Context) ([]costing.CostCenter, error) {
	var rows []costCenterRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM cost_centers ORDER BY code`)
	if err != nil {
		return nil, err
	}
	out := make([]costing.CostCenter, 0, len(rows))
	for _, r := range rows {
		out = append(out, costing.CostCenter{
			ID:         costing.CostCenterID(r.ID),
			Code:       r.Code,
			Name:       r.Name,
			CenterType: costing.CostCenterType(r.CenterType),
			IsActive:   r.IsActive,
		})
	}
	return out, nil
}

type periodRow struct {
	ID     string `db:"id"`
	Year   int    `db:"year"`
	Month  int    `db:"month"`
	Status string `db:"status"`
}

func (s *Store) GetPeriod(ctx context.Context, id costing.PeriodID) (*costing.FiscalPeriod, error) {
	var r periodRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM fiscal_periods WHERE id = ?`, string(id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &costing.FiscalPeriod{
		ID:     costing.PeriodID(r.ID),
		Year:   r.Year,
		Month:  r.Month,
		Status: costing.PeriodStatus(r.Status),
	}, nil
}

type bomHeaderRow struct {
	ID             string `db:"id"`
	ProductID      string `db:"product_id"`
	CrudeProductID string `db:"crude_product_id"`
	BOMType        string `db:"bom_type"`
	EffectiveDate  string `db:"effective_date"`
	Version        int    `db:"version"`
	YieldRate      string `db:"yield_rate"`
	IsActive       bool   `db:"is_active"`
}

type bomLineRow struct {
	HeaderID       string `db:"header_id"`
	MaterialID     string `db:"material_id"`
	CrudeProductID string `db:"crude_product_id"`
	Quantity       string `db:"quantity"`
	Unit           string `db:"unit"`
	LossRate       string `db:"loss_rate"`
	SortOrder      int    `db:"sort_order"`
}

func (s *Store) ListBOMHeaders(ctx context.Context, t costing.BOMType) ([]costing.BOMHeader, error) {
	var headerRows []bomHeaderRow
	err := s.db.SelectContext(ctx, &headerRows,
		`SELECT * FROM bom_headers
		 WHERE is_active = 1 AND bom_type = ?
		 ORDER BY effective_date DESC, version DESC`, string(t))
	if err != nil {
		return nil, err
	}
	if len(headerRows) == 0 {
		return nil, nil
	}

	var lineRows []bomLineRow
	err = s.db.SelectContext(ctx, &lineRows,
		`SELECT l.* FROM bom_lines l
		 JOIN bom_headers h ON h.id = l.header_id
		 WHERE h.is_active = 1 AND h.bom_type = ?
		 ORDER BY l.header_id, l.sort_order`, string(t))
	if err != nil {
		return nil, err
	}
	linesByHeader := make(map[string][]costing.BOMLine)
	for _, lr := range lineRows {
		p := &decParser{}
		line := costing.BOMLine{
			MaterialID:     costing.MaterialID(lr.MaterialID),
			CrudeProductID: costing.CrudeProductID(lr.CrudeProductID),
			Quantity:       p.dec(lr.Quantity),
			Unit:           lr.Unit,
			LossRate:       p.dec(lr.LossRate),
			SortOrder:      lr.SortOrder,
		}
		if p.err != nil {
			return nil, p.err
		}
		linesByHeader[lr.HeaderID] = append(linesByHeader[lr.HeaderID], line)
	}

	out := make([]costing.BOMHeader, 0, len(headerRows))
	for _, hr := range headerRows {
		p := &decParser{}
		h := costing.BOMHeader{
			ID:             costing.BOMHeaderID(hr.ID),
			ProductID:      costing.ProductID(hr.ProductID),
			CrudeProductID: costing.CrudeProductID(hr.CrudeProductID),
			Type:           costing.BOMType(hr.BOMType),
			EffectiveDate:  p.time(hr.EffectiveDate),
			Version:        hr.Version,
			YieldRate:      p.dec(hr.YieldRate),
			IsActive:       hr.IsActive,
			Lines:          linesByHeader[hr.ID],
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, h)
	}
	return out, nil
}

type budgetRow struct {
	ID                string `db:"id"`
	CostCenterID      string `db:"cost_center_id"`
	PeriodID          string `db:"period_id"`
	LaborBudget       string `db:"labor_budget"`
	OverheadBudget    string `db:"overhead_budget"`
	OutsourcingBudget string `db:"outsourcing_budget"`
}

func (s *Store) BudgetForCenterType(ctx context.Context, period costing.PeriodID, ct costing.CostCenterType) (*costing.CostBudget, error) {
	var r budgetRow
	err := s.db.GetContext(ctx, &r,
		`SELECT b.* FROM cost_budgets b
		 JOIN cost_centers c ON c.id = b.cost_center_id
		 WHERE b.period_id = ? AND c.center_type = ? AND c.is_active = 1
		 ORDER BY c.code LIMIT 1`, string(period), string(ct))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := &decParser{}
	b := costing.CostBudget{
		ID:                r.ID,
		CostCenterID:      costing.CostCenterID(r.CostCenterID),
		PeriodID:          costing.PeriodID(r.PeriodID),
		LaborBudget:       p.dec(r.LaborBudget),
		OverheadBudget:    p.dec(r.OverheadBudget),
		OutsourcingBudget: p.dec(r.OutsourcingBudget),
	}
	if p.err != nil {
		return nil, p.err
	}
	return &b, nil
}

type ruleRow struct {
	ID                 string  `db:"id"`
	Name               string  `db:"name"`
	SourceCostCenterID string  `db:"source_cost_center_id"`
	CostElement        *string `db:"cost_element"`
	Basis              string  `db:"basis"`
	Priority           int     `db:"priority"`
	IsActive           bool    `db:"is_active"`
}

type ruleTargetRow struct {
	RuleID             string `db:"rule_id"`
	TargetCostCenterID string `db:"target_cost_center_id"`
	Ratio              string `db:"ratio"`
	SortOrder          int    `db:"sort_order"`
}

func (s *Store) ActiveAllocationRules(ctx context.Context, source costing.CostCenterID) ([]costing.AllocationRule, error) {
	var ruleRows []ruleRow
	err := s.db.SelectContext(ctx, &ruleRows,
		`SELECT * FROM allocation_rules
		 WHERE is_active = 1 AND source_cost_center_id = ?
		 ORDER BY priority DESC, name`, string(source))
	if err != nil {
		return nil, err
	}
	if len(ruleRows) == 0 {
		return nil, nil
	}

	var targetRows []ruleTargetRow
	err = s.db.SelectContext(ctx, &targetRows,
		`SELECT t.* FROM allocation_rule_targets t
		 JOIN allocation_rules r ON r.id = t.rule_id
		 WHERE r.is_active = 1 AND r.source_cost_center_id = ?
		 ORDER BY t.rule_id, t.sort_order`, string(source))
	if err != nil {
		return nil, err
	}
	targetsByRule := make(map[string][]costing.AllocationRuleTarget)
	for _, tr := range targetRows {
		p := &decParser{}
		target := costing.AllocationRuleTarget{
			TargetCostCenterID: costing.CostCenterID(tr.TargetCostCenterID),
			Ratio:              p.dec(tr.Ratio),
		}
		if p.err != nil {
			return nil, p.err
		}
		targetsByRule[tr.RuleID] = append(targetsByRule[tr.RuleID], target)
	}

	out := make([]costing.AllocationRule, 0, len(ruleRows))
	for _, rr := range ruleRows {
		rule := costing.AllocationRule{
			ID:                 costing.RuleID(rr.ID),
			Name:               rr.Name,
			SourceCostCenterID: costing.CostCenterID(rr.SourceCostCenterID),
			Basis:              costing.AllocationBasis(rr.Basis),
			Priority:           rr.Priority,
			IsActive:           rr.IsActive,
			Targets:            targetsByRule[rr.ID],
		}
		if rr.CostElement != nil {
			e := costing.CostElement(*rr.CostElement)
			rule.CostElement = &e
		}
		out = append(out, rule)
	}
	return out, nil
}

// =============================================================================
// COST STORE
// =============================================================================

type crudeStdCostRow struct {
	ID               string `db:"id"`
	CrudeProductID   string `db:"crude_product_id"`
	PeriodID         string `db:"period_id"`
	MaterialCost     string `db:"material_cost"`
	LaborCost        string `db:"labor_cost"`
	OverheadCost     string `db:"overhead_cost"`
	PriorProcessCost string `db:"prior_process_cost"`
	TotalCost        string `db:"total_cost"`
	UnitCost         string `db:"unit_cost"`
	StandardQuantity string `db:"standard_quantity"`
	Notes            string `db:"notes"`
}

func (r crudeStdCostRow) toDomain() (costing.CrudeProductStandardCost, error) {
	p := &decParser{}
	out := costing.CrudeProductStandardCost{
		ID:               r.ID,
		CrudeProductID:   costing.CrudeProductID(r.CrudeProductID),
		PeriodID:         costing.PeriodID(r.PeriodID),
		MaterialCost:     p.dec(r.MaterialCost),
		LaborCost:        p.dec(r.LaborCost),
		OverheadCost:     p.dec(r.OverheadCost),
		PriorProcessCost: p.dec(r.PriorProcessCost),
		TotalCost:        p.dec(r.TotalCost),
		UnitCost:         p.dec(r.UnitCost),
		StandardQuantity: p.dec(r.StandardQuantity),
		Notes:            r.Notes,
	}
	return out, p.err
}

func (s *Store) CrudeStandardCostsForPeriod(ctx context.Context, period costing.PeriodID) ([]costing.CrudeProductStandardCost, error) {
	var rows []crudeStdCostRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM crude_standard_costs WHERE period_id = ? ORDER BY crude_product_id`, string(period))
	if err != nil {
		return nil, err
	}
	out := make([]costing.CrudeProductStandardCost, 0, len(rows))
	for _, r := range rows {
		sc, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *Store) UpsertCrudeStandardCost(ctx context.Context, sc *costing.CrudeProductStandardCost) error {
	var existingID string
	err := s.db.GetContext(ctx, &existingID,
		`SELECT id FROM crude_standard_costs WHERE crude_product_id = ? AND period_id = ?`,
		string(sc.CrudeProductID), string(sc.PeriodID))
	switch {
	case err == sql.ErrNoRows:
		if sc.ID == "" {
			sc.ID = uuid.NewString()
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO crude_standard_costs
			 (id, crude_product_id, period_id, material_cost, labor_cost, overhead_cost,
			  prior_process_cost, total_cost, unit_cost, standard_quantity, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, string(sc.CrudeProductID), string(sc.PeriodID),
			str(sc.MaterialCost), str(sc.LaborCost), str(sc.OverheadCost),
			str(sc.PriorProcessCost), str(sc.TotalCost), str(sc.UnitCost),
			str(sc.StandardQuantity), sc.Notes)
		return err
	case err != nil:
		return err
	}
	sc.ID = existingID
	_, err = s.db.ExecContext(ctx,
		`UPDATE crude_standard_costs SET
		 material_cost = ?, labor_cost = ?, overhead_cost = ?, prior_process_cost = ?,
		 total_cost = ?, unit_cost = ?, standard_quantity = ?, notes = ?
		 WHERE id = ?`,
		str(sc.MaterialCost), str(sc.LaborCost), str(sc.OverheadCost), str(sc.PriorProcessCost),
		str(sc.TotalCost), str(sc.UnitCost), str(sc.StandardQuantity), sc.Notes, existingID)
	return err
}

type stdCostRow struct {
	ID               string `db:"id"`
	ProductID        string `db:"product_id"`
	PeriodID         string `db:"period_id"`
	CrudeProductCost string `db:"crude_product_cost"`
	PackagingCost    string `db:"packaging_cost"`
	LaborCost        string `db:"labor_cost"`
	OverheadCost     string `db:"overhead_cost"`
	OutsourcingCost  string `db:"outsourcing_cost"`
	TotalCost        string `db:"total_cost"`
	UnitCost         string `db:"unit_cost"`
	LotSize          string `db:"lot_size"`
	Notes            string `db:"notes"`
}

func (r stdCostRow) toDomain() (costing.StandardCost, error) {
	p := &decParser{}
	out := costing.StandardCost{
		ID:               r.ID,
		ProductID:        costing.ProductID(r.ProductID),
		PeriodID:         costing.PeriodID(r.PeriodID),
		CrudeProductCost: p.dec(r.CrudeProductCost),
		PackagingCost:    p.dec(r.PackagingCost),
		LaborCost:        p.dec(r.LaborCost),
		OverheadCost:     p.dec(r.OverheadCost),
		OutsourcingCost:  p.dec(r.OutsourcingCost),
		TotalCost:        p.dec(r.TotalCost),
		UnitCost:         p.dec(r.UnitCost),
		LotSize:          p.dec(r.LotSize),
		Notes:            r.Notes,
	}
	return out, p.err
}

func (s *Store) StandardCostsForPeriod(ctx context.Context, period costing.PeriodID) ([]costing.StandardCost, error) {
	var rows []stdCostRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM standard_costs WHERE period_id = ? ORDER BY product_id`, string(period))
	if err != nil {
		return nil, err
	}
	out := make([]costing.StandardCost, 0, len(rows))
	for _, r := range rows {
		sc, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *Store) UpsertStandardCost(ctx context.Context, sc *costing.StandardCost) error {
	var existingID string
	err := s.db.GetContext(ctx, &existingID,
		`SELECT id FROM standard_costs WHERE product_id = ? AND period_id = ?`,
		string(sc.ProductID), string(sc.PeriodID))
	switch {
	case err == sql.ErrNoRows:
		if sc.ID == "" {
			sc.ID = uuid.NewString()
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO standard_costs
			 (id, product_id, period_id, crude_product_cost, packaging_cost, labor_cost,
			  overhead_cost, outsourcing_cost, total_cost, unit_cost, lot_size, notes)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.ID, string(sc.ProductID), string(sc.PeriodID),
			str(sc.CrudeProductCost), str(sc.PackagingCost), str(sc.LaborCost),
			str(sc.OverheadCost), str(sc.OutsourcingCost), str(sc.TotalCost),
			str(sc.UnitCost), str(sc.LotSize), sc.Notes)
		return err
	case err != nil:
		return err
	}
	sc.ID = existingID
	_, err = s.db.ExecContext(ctx,
		`UPDATE standard_costs SET
		 crude_product_cost = ?, packaging_cost = ?, labor_cost = ?, overhead_cost = ?,
		 outsourcing_cost = ?, total_cost = ?, unit_cost = ?, lot_size = ?, notes = ?
		 WHERE id = ?`,
		str(sc.CrudeProductCost), str(sc.PackagingCost), str(sc.LaborCost), str(sc.OverheadCost),
		str(sc.OutsourcingCost), str(sc.TotalCost), str(sc.UnitCost), str(sc.LotSize),
		sc.Notes, existingID)
	return err
}

type actualCostRow struct {
	ID               string `db:"id"`
	ProductID        string `db:"product_id"`
	CostCenterID     string `db:"cost_center_id"`
	PeriodID         string `db:"period_id"`
	CrudeProductCost string `db:"crude_product_cost"`
	PackagingCost    string `db:"packaging_cost"`
	LaborCost        string `db:"labor_cost"`
	OverheadCost     string `db:"overhead_cost"`
	OutsourcingCost  string `db:"outsourcing_cost"`
	TotalCost        string `db:"total_cost"`
	QuantityProduced string `db:"quantity_produced"`
	SourceSystem     string `db:"source_system"`
	Notes            string `db:"notes"`
}

func (s *Store) ActualCostsForPeriod(ctx context.Context, period costing.PeriodID) ([]costing.ActualCost, error) {
	var rows []actualCostRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM actual_costs WHERE period_id = ? ORDER BY product_id, cost_center_id`, string(period))
	if err != nil {
		return nil, err
	}
	out := make([]costing.ActualCost, 0, len(rows))
	for _, r := range rows {
		p := &decParser{}
		ac := costing.ActualCost{
			ID:               r.ID,
			ProductID:        costing.ProductID(r.ProductID),
			CostCenterID:     costing.CostCenterID(r.CostCenterID),
			PeriodID:         costing.PeriodID(r.PeriodID),
			CrudeProductCost: p.dec(r.CrudeProductCost),
			PackagingCost:    p.dec(r.PackagingCost),
			LaborCost:        p.dec(r.LaborCost),
			OverheadCost:     p.dec(r.OverheadCost),
			OutsourcingCost:  p.dec(r.OutsourcingCost),
			TotalCost:        p.dec(r.TotalCost),
			QuantityProduced: p.dec(r.QuantityProduced),
			SourceSystem:     costing.SourceSystem(r.SourceSystem),
			Notes:            r.Notes,
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, ac)
	}
	return out, nil
}

type crudeActualCostRow struct {
	ID               string `db:"id"`
	CrudeProductID   string `db:"crude_product_id"`
	PeriodID         string `db:"period_id"`
	MaterialCost     string `db:"material_cost"`
	LaborCost        string `db:"labor_cost"`
	OverheadCost     string `db:"overhead_cost"`
	PriorProcessCost string `db:"prior_process_cost"`
	TotalCost        string `db:"total_cost"`
	ActualQuantity   string `db:"actual_quantity"`
	SourceSystem     string `db:"source_system"`
	Notes            string `db:"notes"`
}

func (s *Store) CrudeActualCostsForPeriod(ctx context.Context, period costing.PeriodID) ([]costing.CrudeProductActualCost, error) {
	var rows []crudeActualCostRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM crude_actual_costs WHERE period_id = ? ORDER BY crude_product_id`, string(period))
	if err != nil {
		return nil, err
	}
	out := make([]costing.CrudeProductActualCost, 0, len(rows))
	for _, r := range rows {
		p := &decParser{}
		ac := costing.CrudeProductActualCost{
			ID:               r.ID,
			CrudeProductID:   costing.CrudeProductID(r.CrudeProductID),
			PeriodID:         costing.PeriodID(r.PeriodID),
			MaterialCost:     p.dec(r.MaterialCost),
			LaborCost:        p.dec(r.LaborCost),
			OverheadCost:     p.dec(r.OverheadCost),
			PriorProcessCost: p.dec(r.PriorProcessCost),
			TotalCost:        p.dec(r.TotalCost),
			ActualQuantity:   p.dec(r.ActualQuantity),
			SourceSystem:     costing.SourceSystem(r.SourceSystem),
			Notes:            r.Notes,
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, ac)
	}
	return out, nil
}

func (s *Store) InsertCostAllocation(ctx context.Context, ca *costing.CostAllocation) error {
	if ca.ID == "" {
		ca.ID = uuid.NewString()
	}
	var element *string
	if ca.CostElement != nil {
		e := string(*ca.CostElement)
		element = &e
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_allocations
		 (id, rule_id, period_id, source_cost_center_id, target_cost_center_id,
		  cost_element, target_item_id, allocated_amount, basis_quantity, ratio, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ca.ID, string(ca.RuleID), string(ca.PeriodID),
		string(ca.SourceCostCenterID), string(ca.TargetCostCenterID),
		element, ca.TargetItemID, str(ca.AllocatedAmount), str(ca.BasisQuantity),
		str(ca.Ratio), ca.ExecutedAt.Format(time.RFC3339Nano))
	return err
}

type allocationRow struct {
	ID                 string  `db:"id"`
	RuleID             string  `db:"rule_id"`
	PeriodID           string  `db:"period_id"`
	SourceCostCenterID string  `db:"source_cost_center_id"`
	TargetCostCenterID string  `db:"target_cost_center_id"`
	CostElement        *string `db:"cost_element"`
	TargetItemID       string  `db:"target_item_id"`
	AllocatedAmount    string  `db:"allocated_amount"`
	BasisQuantity      string  `db:"basis_quantity"`
	Ratio              string  `db:"ratio"`
	ExecutedAt         string  `db:"executed_at"`
}

func (s *Store) CostAllocationsForPeriod(ctx context.Context, period costing.PeriodID) ([]costing.CostAllocation, error) {
	var rows []allocationRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM cost_allocations WHERE period_id = ? ORDER BY executed_at, target_item_id`, string(period))
	if err != nil {
		return nil, err
	}
	out := make([]costing.CostAllocation, 0, len(rows))
	for _, r := range rows {
		p := &decParser{}
		ca := costing.CostAllocation{
			ID:                 r.ID,
			RuleID:             costing.RuleID(r.RuleID),
			PeriodID:           costing.PeriodID(r.PeriodID),
			SourceCostCenterID: costing.CostCenterID(r.SourceCostCenterID),
			TargetCostCenterID: costing.CostCenterID(r.TargetCostCenterID),
			TargetItemID:       r.TargetItemID,
			AllocatedAmount:    p.dec(r.AllocatedAmount),
			BasisQuantity:      p.dec(r.BasisQuantity),
			Ratio:              p.dec(r.Ratio),
			ExecutedAt:         p.time(r.ExecutedAt),
		}
		if r.CostElement != nil {
			e := costing.CostElement(*r.CostElement)
			ca.CostElement = &e
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, ca)
	}
	return out, nil
}

// =============================================================================
// VARIANCE STORE
// =============================================================================

func (s *Store) DeleteVarianceRecords(ctx context.Context, period costing.PeriodID, productIDs []costing.ProductID) error {
	if len(productIDs) == 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM variance_records WHERE period_id = ?`, string(period))
		return err
	}
	ids := make([]string, len(productIDs))
	for i, id := range productIDs {
		ids[i] = string(id)
	}
	query, args, err := sqlx.In(
		`DELETE FROM variance_records WHERE period_id = ? AND product_id IN (?)`,
		string(period), ids)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

func (s *Store) InsertVarianceRecord(ctx context.Context, r *variance.Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO variance_records
		 (id, product_id, cost_center_id, period_id, cost_element, variance_type,
		  standard_amount, actual_amount, variance_amount, variance_percent,
		  is_favorable, is_flagged, flag_reason, analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.ProductID), string(r.CostCenterID), string(r.PeriodID),
		string(r.CostElement), r.VarianceType,
		str(r.StandardAmount), str(r.ActualAmount), str(r.VarianceAmount), str(r.VariancePercent),
		r.IsFavorable, r.IsFlagged, r.FlagReason, r.AnalyzedAt.Format(time.RFC3339Nano))
	return err
}

type varianceRow struct {
	ID              string `db:"id"`
	ProductID       string `db:"product_id"`
	CostCenterID    string `db:"cost_center_id"`
	PeriodID        string `db:"period_id"`
	CostElement     string `db:"cost_element"`
	VarianceType    string `db:"variance_type"`
	StandardAmount  string `db:"standard_amount"`
	ActualAmount    string `db:"actual_amount"`
	VarianceAmount  string `db:"variance_amount"`
	VariancePercent string `db:"variance_percent"`
	IsFavorable     bool   `db:"is_favorable"`
	IsFlagged       bool   `db:"is_flagged"`
	FlagReason      string `db:"flag_reason"`
	AnalyzedAt      string `db:"analyzed_at"`
}

func (s *Store) VarianceRecordsForPeriod(ctx context.Context, period costing.PeriodID) ([]variance.Record, error) {
	var rows []varianceRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM variance_records WHERE period_id = ?
		 ORDER BY product_id, cost_center_id, cost_element`, string(period))
	if err != nil {
		return nil, err
	}
	out := make([]variance.Record, 0, len(rows))
	for _, r := range rows {
		p := &decParser{}
		rec := variance.Record{
			ID:              r.ID,
			ProductID:       costing.ProductID(r.ProductID),
			CostCenterID:    costing.CostCenterID(r.CostCenterID),
			PeriodID:        costing.PeriodID(r.PeriodID),
			CostElement:     costing.CostElement(r.CostElement),
			VarianceType:    r.VarianceType,
			StandardAmount:  p.dec(r.StandardAmount),
			ActualAmount:    p.dec(r.ActualAmount),
			VarianceAmount:  p.dec(r.VarianceAmount),
			VariancePercent: p.dec(r.VariancePercent),
			IsFavorable:     r.IsFavorable,
			IsFlagged:       r.IsFlagged,
			FlagReason:      r.FlagReason,
			AnalyzedAt:      p.time(r.AnalyzedAt),
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, rec)
	}
	return out, nil
}

// =============================================================================
// RECONCILIATION STORE
// =============================================================================

func (s *Store) DeleteReconciliationResults(ctx context.Context, period costing.PeriodID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reconciliation_results WHERE period_id = ?`, string(period))
	return err
}

func (s *Store) InsertReconciliationResult(ctx context.Context, r *reconcile.Result) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reconciliation_results
		 (id, product_id, period_id, source_a, source_b, value_a, value_b,
		  difference, status, notes, reconciled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.ProductID), string(r.PeriodID),
		string(r.SourceA), string(r.SourceB),
		strPtr(r.ValueA), strPtr(r.ValueB), strPtr(r.Difference),
		string(r.Status), r.Notes, r.ReconciledAt.Format(time.RFC3339Nano))
	return err
}

type reconciliationRow struct {
	ID           string  `db:"id"`
	ProductID    string  `db:"product_id"`
	PeriodID     string  `db:"period_id"`
	SourceA      string  `db:"source_a"`
	SourceB      string  `db:"source_b"`
	ValueA       *string `db:"value_a"`
	ValueB       *string `db:"value_b"`
	Difference   *string `db:"difference"`
	Status       string  `db:"status"`
	Notes        string  `db:"notes"`
	ReconciledAt string  `db:"reconciled_at"`
}

func (s *Store) ReconciliationResultsForPeriod(ctx context.Context, period costing.PeriodID) ([]reconcile.Result, error) {
	var rows []reconciliationRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM reconciliation_results WHERE period_id = ? ORDER BY product_id`, string(period))
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.Result, 0, len(rows))
	for _, r := range rows {
		p := &decParser{}
		result := reconcile.Result{
			ID:           r.ID,
			ProductID:    costing.ProductID(r.ProductID),
			PeriodID:     costing.PeriodID(r.PeriodID),
			SourceA:      costing.SourceSystem(r.SourceA),
			SourceB:      costing.SourceSystem(r.SourceB),
			ValueA:       p.decPtr(r.ValueA),
			ValueB:       p.decPtr(r.ValueB),
			Difference:   p.decPtr(r.Difference),
			Status:       reconcile.Status(r.Status),
			Notes:        r.Notes,
			ReconciledAt: p.time(r.ReconciledAt),
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, result)
	}
	return out, nil
}

// =============================================================================
// SEED STORE
// =============================================================================

func (s *Store) ResetAll(ctx context.Context) error {
	tables := []string{
		"reconciliation_results", "variance_records", "cost_allocations",
		"crude_actual_costs", "actual_costs", "standard_costs", "crude_standard_costs",
		"bom_lines", "bom_headers", "allocation_rule_targets", "allocation_rules",
		"cost_budgets", "fiscal_periods", "cost_centers", "products",
		"crude_products", "materials",
	}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) PutMaterial(ctx context.Context, m *costing.Material) error {
	if m.ID == "" {
		m.ID = costing.MaterialID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO materials
		 (id, code, name, category, unit, standard_unit_price, is_active, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(m.ID), m.Code, m.Name, string(m.Category), m.Unit,
		str(m.StandardUnitPrice), m.IsActive, m.Notes)
	return err
}

func (s *Store) PutCrudeProduct(ctx context.Context, cp *costing.CrudeProduct) error {
	if cp.ID == "" {
		cp.ID = costing.CrudeProductID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO crude_products
		 (id, code, name, vintage_year, crude_type, aging_years, is_blend, unit, is_active, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(cp.ID), cp.Code, cp.Name, cp.VintageYear, cp.CrudeType,
		cp.AgingYears, cp.IsBlend, cp.Unit, cp.IsActive, cp.Notes)
	return err
}

func (s *Store) PutProduct(ctx context.Context, p *costing.Product) error {
	if p.ID == "" {
		p.ID = costing.ProductID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO products
		 (id, code, name, product_group, content_weight_g, standard_lot_size, unit, is_active, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), p.Code, p.Name, p.ProductGroup,
		str(p.ContentWeightG), str(p.StandardLotSize), p.Unit, p.IsActive, p.Notes)
	return err
}

func (s *Store) PutCostCenter(ctx context.Context, cc *costing.CostCenter) error {
	if cc.ID == "" {
		cc.ID = costing.CostCenterID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cost_centers (id, code, name, center_type, is_active)
		 VALUES (?, ?, ?, ?, ?)`,
		string(cc.ID), cc.Code, cc.Name, string(cc.CenterType), cc.IsActive)
	return err
}

func (s *Store) PutPeriod(ctx context.Context, fp *costing.FiscalPeriod) error {
	if fp.ID == "" {
		fp.ID = costing.PeriodID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO fiscal_periods (id, year, month, status)
		 VALUES (?, ?, ?, ?)`,
		string(fp.ID), fp.Year, fp.Month, string(fp.Status))
	return err
}

func (s *Store) PutBudget(ctx context.Context, b *costing.CostBudget) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cost_budgets
		 (id, cost_center_id, period_id, labor_budget, overhead_budget, outsourcing_budget)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.CostCenterID), string(b.PeriodID),
		str(b.LaborBudget), str(b.OverheadBudget), str(b.OutsourcingBudget))
	return err
}

func (s *Store) PutAllocationRule(ctx context.Context, r *costing.AllocationRule) error {
	if r.ID == "" {
		r.ID = costing.RuleID(uuid.NewString())
	}
	var element *string
	if r.CostElement != nil {
		e := string(*r.CostElement)
		element = &e
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO allocation_rules
		 (id, name, source_cost_center_id, cost_element, basis, priority, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), r.Name, string(r.SourceCostCenterID), element,
		string(r.Basis), r.Priority, r.IsActive)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM allocation_rule_targets WHERE rule_id = ?`, string(r.ID)); err != nil {
		return err
	}
	for i, t := range r.Targets {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO allocation_rule_targets (rule_id, target_cost_center_id, ratio, sort_order)
			 VALUES (?, ?, ?, ?)`,
			string(r.ID), string(t.TargetCostCenterID), str(t.Ratio), i)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) PutBOMHeader(ctx context.Context, h *costing.BOMHeader) error {
	if h.ID == "" {
		h.ID = costing.BOMHeaderID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO bom_headers
		 (id, product_id, crude_product_id, bom_type, effective_date, version, yield_rate, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(h.ID), string(h.ProductID), string(h.CrudeProductID), string(h.Type),
		h.EffectiveDate.Format(time.RFC3339Nano), h.Version, str(h.YieldRate), h.IsActive)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM bom_lines WHERE header_id = ?`, string(h.ID)); err != nil {
		return err
	}
	for i, l := range h.Lines {
		sortOrder := l.SortOrder
		if sortOrder == 0 {
			sortOrder = i
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO bom_lines
			 (header_id, material_id, crude_product_id, quantity, unit, loss_rate, sort_order)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(h.ID), string(l.MaterialID), string(l.CrudeProductID),
			str(l.Quantity), l.Unit, str(l.LossRate), sortOrder)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) PutActualCost(ctx context.Context, ac *costing.ActualCost) error {
	if ac.ID == "" {
		ac.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO actual_costs
		 (id, product_id, cost_center_id, period_id, crude_product_cost, packaging_cost,
		  labor_cost, overhead_cost, outsourcing_cost, total_cost, quantity_produced,
		  source_system, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ac.ID, string(ac.ProductID), string(ac.CostCenterID), string(ac.PeriodID),
		str(ac.CrudeProductCost), str(ac.PackagingCost), str(ac.LaborCost),
		str(ac.OverheadCost), str(ac.OutsourcingCost), str(ac.TotalCost),
		str(ac.QuantityProduced), string(ac.SourceSystem), ac.Notes)
	return err
}

func (s *Store) PutCrudeActualCost(ctx context.Context, ac *costing.CrudeProductActualCost) error {
	if ac.ID == "" {
		ac.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO crude_actual_costs
		 (id, crude_product_id, period_id, material_cost, labor_cost, overhead_cost,
		  prior_process_cost, total_cost, actual_quantity, source_system, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ac.ID, string(ac.CrudeProductID), string(ac.PeriodID),
		str(ac.MaterialCost), str(ac.LaborCost), str(ac.OverheadCost),
		str(ac.PriorProcessCost), str(ac.TotalCost), str(ac.ActualQuantity),
		string(ac.SourceSystem), ac.Notes)
	return err
}
