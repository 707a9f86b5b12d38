/*
Package variance compares standard costs against ingested actuals.

PURPOSE:
  For each actual-cost row of a period, the analyzer emits one variance
  record per compared cost element: crude product, packaging, labor,
  overhead, and outsourcing. Material and prior-process variances are
  not compared at product level; they are embedded in the crude product
  element by the time Stage 2 costs exist.

SIGN CONVENTION:
  variance = actual - standard. Zero or negative variance is favorable.
  A record is flagged when the absolute variance percent strictly
  exceeds the caller's threshold.

PERSISTENCE:
  Re-running an analysis fully replaces the period's records (scoped to
  the requested products), so the table always reflects the latest run.

SEE ALSO:
  - analyzer.go: the analysis and summary passes
  - costing/types.go: StandardCost and ActualCost element breakdowns
*/
package variance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arakawak223/stdcost/costing"
)

// CompareElements is the closed set of cost elements compared at product
// level, in report order.
var CompareElements = []costing.CostElement{
	costing.ElementCrudeProduct,
	costing.ElementPackaging,
	costing.ElementLabor,
	costing.ElementOverhead,
	costing.ElementOutsourcing,
}

// Record is one persisted variance for a product, cost center, period,
// and cost element.
type Record struct {
	ID              string
	ProductID       costing.ProductID
	CostCenterID    costing.CostCenterID
	PeriodID        costing.PeriodID
	CostElement     costing.CostElement
	VarianceType    string // always "price" at product level
	StandardAmount  decimal.Decimal
	ActualAmount    decimal.Decimal
	VarianceAmount  decimal.Decimal
	VariancePercent decimal.Decimal
	IsFavorable     bool
	IsFlagged       bool
	FlagReason      string
	AnalyzedAt      time.Time
}

// Store is the persistence surface the analyzer needs.
type Store interface {
	// GetPeriod returns the period, or (nil, nil) when it does not exist.
	GetPeriod(ctx context.Context, id costing.PeriodID) (*costing.FiscalPeriod, error)

	// ListProducts returns all active products.
	ListProducts(ctx context.Context) ([]costing.Product, error)

	// StandardCostsForPeriod returns all Stage 2 records for the period.
	StandardCostsForPeriod(ctx context.Context, period costing.PeriodID) ([]costing.StandardCost, error)

	// ActualCostsForPeriod returns ingested finished-product actuals.
	ActualCostsForPeriod(ctx context.Context, period costing.PeriodID) ([]costing.ActualCost, error)

	// DeleteVarianceRecords removes the period's records. A non-empty
	// product list restricts the delete to those products.
	DeleteVarianceRecords(ctx context.Context, period costing.PeriodID, productIDs []costing.ProductID) error

	// InsertVarianceRecord appends one record, minting a missing ID.
	InsertVarianceRecord(ctx context.Context, r *Record) error

	// VarianceRecordsForPeriod returns the period's persisted records.
	VarianceRecordsForPeriod(ctx context.Context, period costing.PeriodID) ([]Record, error)
}
