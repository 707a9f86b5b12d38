/*
analyzer.go - Standard vs actual variance analysis

PURPOSE:
  Produces variance records for a period by comparing product-level
  standard costs against every ingested actual-cost row, then serves
  aggregated summaries from the persisted records.

GRANULARITY:
  Actuals arrive per (product, cost center); standards exist per
  product. Every actual row is compared against its product's single
  standard, so a product reported by two cost centers yields two record
  sets against the same standard amounts.
*/
package variance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/arakawak223/stdcost/costing"
)

var oneHundred = decimal.NewFromInt(100)

// AnalyzeInput drives one analysis run.
type AnalyzeInput struct {
	Period           costing.PeriodID
	ProductIDs       []costing.ProductID // optional subset
	ThresholdPercent decimal.Decimal
}

// ElementVariance is one cost element of a product's detail row, with
// the actual side aggregated across the product's cost centers.
type ElementVariance struct {
	Element         costing.CostElement
	StandardAmount  decimal.Decimal
	ActualAmount    decimal.Decimal
	VarianceAmount  decimal.Decimal
	VariancePercent decimal.Decimal
	IsFavorable     bool
}

// ProductVariance is one product's detail row of an analysis run.
type ProductVariance struct {
	ProductID       costing.ProductID
	ProductCode     string
	ProductName     string
	TotalStandard   decimal.Decimal
	TotalActual     decimal.Decimal
	TotalVariance   decimal.Decimal
	VariancePercent decimal.Decimal
	IsFavorable     bool
	Elements        []ElementVariance
}

// AnalysisResult reports what one run produced: counters, period-level
// sums over the compared elements, and the per-product breakdown.
type AnalysisResult struct {
	Period           costing.PeriodID
	RecordsCreated   int
	FlaggedCount     int
	ProductsAnalyzed int
	TotalStandard    decimal.Decimal
	TotalActual      decimal.Decimal
	TotalVariance    decimal.Decimal
	Details          []ProductVariance
}

// ElementSummary aggregates one cost element across a period's records.
// The percent is the simple mean of the records' percents, not a
// value-weighted rate.
type ElementSummary struct {
	Element                costing.CostElement
	TotalStandard          decimal.Decimal
	TotalActual            decimal.Decimal
	TotalVariance          decimal.Decimal
	AverageVariancePercent decimal.Decimal
	FavorableCount         int
	UnfavorableCount       int
	FlaggedCount           int
}

// Summary aggregates a period's persisted variance records.
type Summary struct {
	Period                 costing.PeriodID
	TotalStandard          decimal.Decimal
	TotalActual            decimal.Decimal
	TotalVariance          decimal.Decimal
	AverageVariancePercent decimal.Decimal
	RecordCount            int
	FlaggedCount           int
	ProductCount           int
	Elements               []ElementSummary
}

// Analyzer runs variance analysis against a store.
type Analyzer struct {
	Store Store
	Log   *logrus.Logger
}

func NewAnalyzer(store Store, log *logrus.Logger) *Analyzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyzer{Store: store, Log: log}
}

// Analyze replaces the period's variance records with a fresh comparison
// of standards against actuals. Actual rows for products without a
// standard cost are skipped with a WARN log. The replacement is scoped
// to in.ProductIDs when given.
func (a *Analyzer) Analyze(ctx context.Context, in AnalyzeInput) (*AnalysisResult, error) {
	period, err := a.Store.GetPeriod(ctx, in.Period)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, &costing.PeriodNotFoundError{Role: "analysis", PeriodID: in.Period}
	}

	standards, err := a.Store.StandardCostsForPeriod(ctx, in.Period)
	if err != nil {
		return nil, err
	}
	stdByProduct := make(map[costing.ProductID]costing.StandardCost, len(standards))
	for _, sc := range standards {
		stdByProduct[sc.ProductID] = sc
	}

	actuals, err := a.Store.ActualCostsForPeriod(ctx, in.Period)
	if err != nil {
		return nil, err
	}
	if len(in.ProductIDs) > 0 {
		subset := make(map[costing.ProductID]bool, len(in.ProductIDs))
		for _, id := range in.ProductIDs {
			subset[id] = true
		}
		filtered := actuals[:0]
		for _, ac := range actuals {
			if subset[ac.ProductID] {
				filtered = append(filtered, ac)
			}
		}
		actuals = filtered
	}

	// Actuals arrive per (product, cost center); the detail view wants
	// them grouped and aggregated per product.
	actualsByProduct := make(map[costing.ProductID][]costing.ActualCost)
	for _, ac := range actuals {
		actualsByProduct[ac.ProductID] = append(actualsByProduct[ac.ProductID], ac)
	}

	analyzed := make([]costing.ProductID, 0, len(actualsByProduct))
	for id := range actualsByProduct {
		if _, ok := stdByProduct[id]; !ok {
			a.Log.WithFields(logrus.Fields{"product_id": id, "period_id": in.Period}).
				Warn("skipping actual cost with no standard cost")
			continue
		}
		analyzed = append(analyzed, id)
	}
	sort.Slice(analyzed, func(i, j int) bool { return analyzed[i] < analyzed[j] })

	products, err := a.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	productByID := make(map[costing.ProductID]costing.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	if err := a.Store.DeleteVarianceRecords(ctx, in.Period, in.ProductIDs); err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		Period:        in.Period,
		TotalStandard: decimal.Zero,
		TotalActual:   decimal.Zero,
		TotalVariance: decimal.Zero,
	}
	analyzedAt := time.Now().UTC()

	for _, pid := range analyzed {
		std := stdByProduct[pid]
		rows := actualsByProduct[pid]
		sort.Slice(rows, func(i, j int) bool { return rows[i].CostCenterID < rows[j].CostCenterID })

		detail := ProductVariance{
			ProductID:     pid,
			TotalStandard: decimal.Zero,
			TotalActual:   decimal.Zero,
		}
		if p, ok := productByID[pid]; ok {
			detail.ProductCode = p.Code
			detail.ProductName = p.Name
		}

		for _, element := range CompareElements {
			stdAmount := std.ElementAmount(element)
			actAmount := decimal.Zero
			for _, row := range rows {
				actAmount = actAmount.Add(row.ElementAmount(element))
			}
			varianceAmount := actAmount.Sub(stdAmount)

			detail.Elements = append(detail.Elements, ElementVariance{
				Element:         element,
				StandardAmount:  stdAmount,
				ActualAmount:    actAmount,
				VarianceAmount:  varianceAmount,
				VariancePercent: variancePercent(varianceAmount, stdAmount),
				IsFavorable:     varianceAmount.LessThanOrEqual(decimal.Zero),
			})
			detail.TotalStandard = detail.TotalStandard.Add(stdAmount)
			detail.TotalActual = detail.TotalActual.Add(actAmount)

			// Persisted records stay per cost center against the
			// product-level standard.
			for _, row := range rows {
				rec := buildRecord(std, row, element, in.ThresholdPercent, analyzedAt)
				if err := a.Store.InsertVarianceRecord(ctx, &rec); err != nil {
					return nil, err
				}
				result.RecordsCreated++
				if rec.IsFlagged {
					result.FlaggedCount++
				}
			}
		}

		detail.TotalVariance = detail.TotalActual.Sub(detail.TotalStandard)
		detail.VariancePercent = variancePercent(detail.TotalVariance, detail.TotalStandard)
		detail.IsFavorable = detail.TotalVariance.LessThanOrEqual(decimal.Zero)
		result.Details = append(result.Details, detail)

		result.TotalStandard = result.TotalStandard.Add(detail.TotalStandard)
		result.TotalActual = result.TotalActual.Add(detail.TotalActual)
	}

	result.TotalVariance = result.TotalActual.Sub(result.TotalStandard)
	result.ProductsAnalyzed = len(analyzed)
	return result, nil
}

func buildRecord(std costing.StandardCost, actual costing.ActualCost, element costing.CostElement, threshold decimal.Decimal, analyzedAt time.Time) Record {
	stdAmount := std.ElementAmount(element)
	actAmount := actual.ElementAmount(element)
	varianceAmount := actAmount.Sub(stdAmount)
	percent := variancePercent(varianceAmount, stdAmount)

	rec := Record{
		ProductID:       actual.ProductID,
		CostCenterID:    actual.CostCenterID,
		PeriodID:        actual.PeriodID,
		CostElement:     element,
		VarianceType:    "price",
		StandardAmount:  stdAmount,
		ActualAmount:    actAmount,
		VarianceAmount:  varianceAmount,
		VariancePercent: percent,
		IsFavorable:     varianceAmount.LessThanOrEqual(decimal.Zero),
		AnalyzedAt:      analyzedAt,
	}

	if percent.Abs().GreaterThan(threshold) {
		direction := "unfavorable"
		if rec.IsFavorable {
			direction = "favorable"
		}
		rec.IsFlagged = true
		rec.FlagReason = fmt.Sprintf("%s variance of %s%% is %s and exceeds the %s%% threshold",
			element, percent.String(), direction, threshold.String())
	}
	return rec
}

// variancePercent is variance/standard*100 rounded to 4 places, zero
// when the standard amount is zero.
func variancePercent(variance, standard decimal.Decimal) decimal.Decimal {
	if standard.IsZero() {
		return decimal.Zero
	}
	return costing.Round4(variance.Div(standard).Mul(oneHundred))
}

// Summarize aggregates the period's persisted records per cost element
// and overall. An empty period yields a zeroed summary, not an error.
func (a *Analyzer) Summarize(ctx context.Context, period costing.PeriodID) (*Summary, error) {
	records, err := a.Store.VarianceRecordsForPeriod(ctx, period)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Period:                 period,
		TotalStandard:          decimal.Zero,
		TotalActual:            decimal.Zero,
		TotalVariance:          decimal.Zero,
		AverageVariancePercent: decimal.Zero,
	}

	byElement := make(map[costing.CostElement]*ElementSummary, len(CompareElements))
	percentSums := make(map[costing.CostElement]decimal.Decimal, len(CompareElements))
	recordCounts := make(map[costing.CostElement]int, len(CompareElements))
	for _, element := range CompareElements {
		byElement[element] = &ElementSummary{
			Element:       element,
			TotalStandard: decimal.Zero,
			TotalActual:   decimal.Zero,
			TotalVariance: decimal.Zero,
		}
		percentSums[element] = decimal.Zero
	}

	products := make(map[costing.ProductID]bool)
	percentSum := decimal.Zero

	for _, rec := range records {
		es, ok := byElement[rec.CostElement]
		if !ok {
			continue
		}
		es.TotalStandard = es.TotalStandard.Add(rec.StandardAmount)
		es.TotalActual = es.TotalActual.Add(rec.ActualAmount)
		es.TotalVariance = es.TotalVariance.Add(rec.VarianceAmount)
		percentSums[rec.CostElement] = percentSums[rec.CostElement].Add(rec.VariancePercent)
		recordCounts[rec.CostElement]++
		if rec.IsFavorable {
			es.FavorableCount++
		} else {
			es.UnfavorableCount++
		}
		if rec.IsFlagged {
			es.FlaggedCount++
			summary.FlaggedCount++
		}

		summary.TotalStandard = summary.TotalStandard.Add(rec.StandardAmount)
		summary.TotalActual = summary.TotalActual.Add(rec.ActualAmount)
		summary.TotalVariance = summary.TotalVariance.Add(rec.VarianceAmount)
		summary.RecordCount++
		percentSum = percentSum.Add(rec.VariancePercent)
		products[rec.ProductID] = true
	}

	summary.ProductCount = len(products)
	if summary.RecordCount > 0 {
		summary.AverageVariancePercent = costing.Round4(percentSum.Div(decimal.NewFromInt(int64(summary.RecordCount))))
	}

	// Per-element percent is the simple mean of the records' percents,
	// not variance sum over standard sum.
	for _, element := range CompareElements {
		es := byElement[element]
		if n := recordCounts[element]; n > 0 {
			es.AverageVariancePercent = costing.Round4(percentSums[element].Div(decimal.NewFromInt(int64(n))))
		} else {
			es.AverageVariancePercent = decimal.Zero
		}
		summary.Elements = append(summary.Elements, *es)
	}
	return summary, nil
}
