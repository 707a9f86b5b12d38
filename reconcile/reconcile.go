/*
Package reconcile cross-checks actual-cost totals between source systems.

PURPOSE:
  The same period's actuals can arrive from both the supply-chain system
  (sc_system) and the accounting ledger (kanjyo_bugyo). This package
  compares the per-product totals of the two feeds:

    both present, |a - b| <= threshold  -> matched
    both present, |a - b| >  threshold  -> discrepancy
    one side missing                    -> unmatched

  Re-running a reconciliation fully replaces the period's results.

SEE ALSO:
  - variance: compares actuals against standards; this package compares
    actuals against actuals
*/
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/arakawak223/stdcost/costing"
)

// Status classifies one product's cross-system comparison.
type Status string

const (
	StatusMatched     Status = "matched"
	StatusUnmatched   Status = "unmatched"
	StatusDiscrepancy Status = "discrepancy"
)

// Result is one persisted comparison for a product and period. Value and
// difference fields are nil when the corresponding side had no data.
type Result struct {
	ID           string
	ProductID    costing.ProductID
	PeriodID     costing.PeriodID
	SourceA      costing.SourceSystem
	SourceB      costing.SourceSystem
	ValueA       *decimal.Decimal
	ValueB       *decimal.Decimal
	Difference   *decimal.Decimal
	Status       Status
	Notes        string
	ReconciledAt time.Time
}

// Store is the persistence surface the engine needs.
type Store interface {
	// GetPeriod returns the period, or (nil, nil) when it does not exist.
	GetPeriod(ctx context.Context, id costing.PeriodID) (*costing.FiscalPeriod, error)

	// ActualCostsForPeriod returns ingested finished-product actuals.
	ActualCostsForPeriod(ctx context.Context, period costing.PeriodID) ([]costing.ActualCost, error)

	// DeleteReconciliationResults removes the period's results.
	DeleteReconciliationResults(ctx context.Context, period costing.PeriodID) error

	// InsertReconciliationResult appends one result, minting a missing ID.
	InsertReconciliationResult(ctx context.Context, r *Result) error

	// ReconciliationResultsForPeriod returns the period's persisted results.
	ReconciliationResultsForPeriod(ctx context.Context, period costing.PeriodID) ([]Result, error)
}

// RunResult reports what one reconciliation produced.
type RunResult struct {
	Period        costing.PeriodID
	Matched       int
	Unmatched     int
	Discrepancies int
	Total         int
}

// Summary aggregates a period's persisted results.
type Summary struct {
	Period          costing.PeriodID
	Matched         int
	Unmatched       int
	Discrepancies   int
	Total           int
	TotalDifference decimal.Decimal // sum of absolute differences where both sides exist
}

// Engine runs cross-system reconciliation against a store.
type Engine struct {
	Store Store
	Log   *logrus.Logger
}

func NewEngine(store Store, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{Store: store, Log: log}
}

// ReconcilePeriod compares sc_system against kanjyo_bugyo totals per
// product and replaces the period's results. When a source reports the
// same product more than once, the last row wins.
func (e *Engine) ReconcilePeriod(ctx context.Context, period costing.PeriodID, threshold decimal.Decimal) (*RunResult, error) {
	fp, err := e.Store.GetPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	if fp == nil {
		return nil, &costing.PeriodNotFoundError{Role: "reconciliation", PeriodID: period}
	}

	actuals, err := e.Store.ActualCostsForPeriod(ctx, period)
	if err != nil {
		return nil, err
	}

	sideA := make(map[costing.ProductID]decimal.Decimal)
	sideB := make(map[costing.ProductID]decimal.Decimal)
	seen := make(map[costing.ProductID]bool)
	for _, ac := range actuals {
		switch ac.SourceSystem {
		case costing.SourceSCSystem:
			sideA[ac.ProductID] = ac.TotalCost
			seen[ac.ProductID] = true
		case costing.SourceKanjyoBugyo:
			sideB[ac.ProductID] = ac.TotalCost
			seen[ac.ProductID] = true
		}
	}

	productIDs := make([]costing.ProductID, 0, len(seen))
	for id := range seen {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	if err := e.Store.DeleteReconciliationResults(ctx, period); err != nil {
		return nil, err
	}

	run := &RunResult{Period: period}
	reconciledAt := time.Now().UTC()

	for _, id := range productIDs {
		result := compareProduct(id, period, sideA, sideB, threshold, reconciledAt)
		if err := e.Store.InsertReconciliationResult(ctx, &result); err != nil {
			return nil, err
		}
		run.Total++
		switch result.Status {
		case StatusMatched:
			run.Matched++
		case StatusUnmatched:
			run.Unmatched++
		case StatusDiscrepancy:
			run.Discrepancies++
		}
	}
	return run, nil
}

func compareProduct(id costing.ProductID, period costing.PeriodID, sideA, sideB map[costing.ProductID]decimal.Decimal, threshold decimal.Decimal, reconciledAt time.Time) Result {
	result := Result{
		ProductID:    id,
		PeriodID:     period,
		SourceA:      costing.SourceSCSystem,
		SourceB:      costing.SourceKanjyoBugyo,
		ReconciledAt: reconciledAt,
	}

	a, haveA := sideA[id]
	b, haveB := sideB[id]
	switch {
	case haveA && haveB:
		result.ValueA = &a
		result.ValueB = &b
		diff := a.Sub(b)
		result.Difference = &diff
		if diff.Abs().LessThanOrEqual(threshold) {
			result.Status = StatusMatched
		} else {
			result.Status = StatusDiscrepancy
			result.Notes = fmt.Sprintf("difference %s exceeds threshold %s", diff.Abs().String(), threshold.String())
		}
	case haveA:
		result.ValueA = &a
		result.Status = StatusUnmatched
		result.Notes = "no data in kanjyo_bugyo"
	default:
		result.ValueB = &b
		result.Status = StatusUnmatched
		result.Notes = "no data in sc_system"
	}
	return result
}

// Summarize aggregates the period's persisted results. An empty period
// yields a zeroed summary, not an error.
func (e *Engine) Summarize(ctx context.Context, period costing.PeriodID) (*Summary, error) {
	results, err := e.Store.ReconciliationResultsForPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Period: period, TotalDifference: decimal.Zero}
	for _, r := range results {
		summary.Total++
		switch r.Status {
		case StatusMatched:
			summary.Matched++
		case StatusUnmatched:
			summary.Unmatched++
		case StatusDiscrepancy:
			summary.Discrepancies++
		}
		if r.Difference != nil {
			summary.TotalDifference = summary.TotalDifference.Add(r.Difference.Abs())
		}
	}
	return summary, nil
}
