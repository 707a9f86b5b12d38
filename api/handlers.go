/*
handlers.go - HTTP API handlers for the standard cost engine

PURPOSE:
  Exposes the costing, variance, and reconciliation engines via REST.
  Handles HTTP request/response, JSON serialization, validation, and
  delegates to domain logic.

ENDPOINTS:
  Costing:
    POST /api/costs/calculate            Run (or simulate) a calculation
    POST /api/costs/copy                 Copy standard costs between periods
    GET  /api/costs/standard/{period}    Product standard costs
    GET  /api/costs/crude/{period}       Crude product standard costs
    GET  /api/costs/allocations/{period} Allocation audit trail

  Variance:
    POST /api/variances/analyze          Run variance analysis
    GET  /api/variances/summary/{period} Aggregated summary

  Reconciliation:
    POST /api/reconciliation/run             Cross-system reconciliation
    GET  /api/reconciliation/summary/{period} Aggregated summary

  Reports / explanation:
    GET  /api/reports/variance/{period}.xlsx Variance workbook download
    POST /api/explain/variance               LLM-drafted commentary

  Scenarios:
    GET  /api/scenarios        List demo scenarios
    POST /api/scenarios/load   Load a demo scenario (resets the store)
    POST /api/scenarios/reset  Wipe the store

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, same-period copy, blend cycle
  - 404: Unknown fiscal period
  - 503: Explanation service not configured
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/arakawak223/stdcost/costing"
	"github.com/arakawak223/stdcost/explain"
	"github.com/arakawak223/stdcost/reconcile"
	"github.com/arakawak223/stdcost/report"
	"github.com/arakawak223/stdcost/variance"
)

// Defaults applied when a request omits the optional thresholds.
var (
	defaultVarianceThreshold  = decimal.NewFromFloat(5.0) // percent
	defaultReconcileThreshold = decimal.NewFromInt(1000)  // yen
)

// Store is the full persistence surface the handlers consume.
type Store interface {
	costing.Store
	costing.SeedStore
	variance.Store
	reconcile.Store
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      Store
	Log        *logrus.Logger
	Calculator *costing.Calculator
	Analyzer   *variance.Analyzer
	Reconciler *reconcile.Engine
	Explain    *explain.Client

	validate        *validator.Validate
	currentScenario string
}

// NewHandler wires the engines around the given store.
func NewHandler(store Store, log *logrus.Logger, explainClient *explain.Client) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if explainClient == nil {
		explainClient = explain.NewFromEnv()
	}
	return &Handler{
		Store:      store,
		Log:        log,
		Calculator: costing.NewCalculator(store, log),
		Analyzer:   variance.NewAnalyzer(store, log),
		Reconciler: reconcile.NewEngine(store, log),
		Explain:    explainClient,
		validate:   validator.New(),
	}
}

// =============================================================================
// COSTING HANDLERS
// =============================================================================

// Calculate runs (or simulates) the two-stage calculation for a period.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := costing.CalculationInput{
		Period:   costing.PeriodID(req.PeriodID),
		Simulate: req.Simulate,
	}
	for _, id := range req.ProductIDs {
		input.ProductIDs = append(input.ProductIDs, costing.ProductID(id))
	}
	if req.Overrides != nil {
		input.Overrides = toOverrides(*req.Overrides)
	}

	result, err := h.Calculator.Calculate(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, "Calculation failed", err)
		return
	}

	resp := CalculateResponse{
		PeriodID:                string(result.Period),
		Simulated:               req.Simulate,
		CrudeProductsCalculated: result.CrudeProductsCalculated,
		ProductsCalculated:      result.ProductsCalculated,
		TotalCrudeProductCost:   result.TotalCrudeProductCost,
		TotalProductCost:        result.TotalProductCost,
	}
	for _, c := range result.CrudeProductCosts {
		resp.CrudeProductCosts = append(resp.CrudeProductCosts, toCrudeStandardCostDTO(c))
	}
	for _, p := range result.ProductCosts {
		resp.ProductCosts = append(resp.ProductCosts, toStandardCostDTO(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toOverrides(dto OverridesDTO) costing.Overrides {
	out := costing.Overrides{}
	if len(dto.MaterialPrices) > 0 {
		out.MaterialPrices = make(map[costing.MaterialID]decimal.Decimal, len(dto.MaterialPrices))
		for id, price := range dto.MaterialPrices {
			out.MaterialPrices[costing.MaterialID(id)] = price
		}
	}
	if len(dto.BudgetChanges) > 0 {
		out.BudgetChanges = make(map[costing.CostCenterID]costing.BudgetChange, len(dto.BudgetChanges))
		for id, bc := range dto.BudgetChanges {
			out.BudgetChanges[costing.CostCenterID(id)] = costing.BudgetChange{
				LaborBudget:       bc.LaborBudget,
				OverheadBudget:    bc.OverheadBudget,
				OutsourcingBudget: bc.OutsourcingBudget,
			}
		}
	}
	if len(dto.CategoryRateChanges) > 0 {
		out.CategoryRateChanges = make(map[costing.MaterialCategory]decimal.Decimal, len(dto.CategoryRateChanges))
		for cat, rate := range dto.CategoryRateChanges {
			out.CategoryRateChanges[costing.MaterialCategory(cat)] = rate
		}
	}
	return out
}

// Copy replicates standard costs from one period to another.
func (h *Handler) Copy(w http.ResponseWriter, r *http.Request) {
	var req CopyRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := costing.CopyStandardCosts(r.Context(), h.Store, costing.CopyInput{
		SourcePeriod: costing.PeriodID(req.SourcePeriodID),
		TargetPeriod: costing.PeriodID(req.TargetPeriodID),
		Overwrite:    req.Overwrite,
	})
	if err != nil {
		h.writeDomainError(w, "Copy failed", err)
		return
	}

	writeJSON(w, http.StatusOK, CopyResponse{
		SourcePeriodID:       req.SourcePeriodID,
		TargetPeriodID:       req.TargetPeriodID,
		CrudeProductsCopied:  result.CrudeProductsCopied,
		CrudeProductsSkipped: result.CrudeProductsSkipped,
		CrudeProductsUpdated: result.CrudeProductsUpdated,
		ProductsCopied:       result.ProductsCopied,
		ProductsSkipped:      result.ProductsSkipped,
		ProductsUpdated:      result.ProductsUpdated,
	})
}

// GetStandardCosts returns the period's product standard costs.
func (h *Handler) GetStandardCosts(w http.ResponseWriter, r *http.Request) {
	period := costing.PeriodID(chi.URLParam(r, "period"))
	costs, err := h.Store.StandardCostsForPeriod(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load standard costs", err)
		return
	}
	dtos := make([]StandardCostDTO, len(costs))
	for i, c := range costs {
		dtos[i] = toStandardCostDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCrudeStandardCosts returns the period's crude product standard costs.
func (h *Handler) GetCrudeStandardCosts(w http.ResponseWriter, r *http.Request) {
	period := costing.PeriodID(chi.URLParam(r, "period"))
	costs, err := h.Store.CrudeStandardCostsForPeriod(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load crude standard costs", err)
		return
	}
	dtos := make([]CrudeStandardCostDTO, len(costs))
	for i, c := range costs {
		dtos[i] = toCrudeStandardCostDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAllocations returns the period's allocation audit trail.
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	period := costing.PeriodID(chi.URLParam(r, "period"))
	allocations, err := h.Store.CostAllocationsForPeriod(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load allocations", err)
		return
	}
	dtos := make([]CostAllocationDTO, len(allocations))
	for i, ca := range allocations {
		dto := CostAllocationDTO{
			ID:                 ca.ID,
			RuleID:             string(ca.RuleID),
			PeriodID:           string(ca.PeriodID),
			SourceCostCenterID: string(ca.SourceCostCenterID),
			TargetItemID:       ca.TargetItemID,
			AllocatedAmount:    ca.AllocatedAmount,
			BasisQuantity:      ca.BasisQuantity,
			Ratio:              ca.Ratio,
			ExecutedAt:         ca.ExecutedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if ca.CostElement != nil {
			dto.CostElement = string(*ca.CostElement)
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// VARIANCE HANDLERS
// =============================================================================

// AnalyzeVariances runs variance analysis for a period.
func (h *Handler) AnalyzeVariances(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !h.decode(w, r, &req) {
		return
	}

	threshold := defaultVarianceThreshold
	if req.ThresholdPercent != nil {
		threshold = *req.ThresholdPercent
	}
	in := variance.AnalyzeInput{
		Period:           costing.PeriodID(req.PeriodID),
		ThresholdPercent: threshold,
	}
	for _, id := range req.ProductIDs {
		in.ProductIDs = append(in.ProductIDs, costing.ProductID(id))
	}

	result, err := h.Analyzer.Analyze(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, "Variance analysis failed", err)
		return
	}

	resp := AnalyzeResponse{
		PeriodID:         string(result.Period),
		RecordsCreated:   result.RecordsCreated,
		FlaggedCount:     result.FlaggedCount,
		ProductsAnalyzed: result.ProductsAnalyzed,
		TotalStandard:    result.TotalStandard,
		TotalActual:      result.TotalActual,
		TotalVariance:    result.TotalVariance,
	}
	for _, pv := range result.Details {
		dto := ProductVarianceDTO{
			ProductID:       string(pv.ProductID),
			ProductCode:     pv.ProductCode,
			ProductName:     pv.ProductName,
			TotalStandard:   pv.TotalStandard,
			TotalActual:     pv.TotalActual,
			TotalVariance:   pv.TotalVariance,
			VariancePercent: pv.VariancePercent,
			IsFavorable:     pv.IsFavorable,
		}
		for _, ev := range pv.Elements {
			dto.Elements = append(dto.Elements, ElementVarianceDTO{
				CostElement:     string(ev.Element),
				StandardAmount:  ev.StandardAmount,
				ActualAmount:    ev.ActualAmount,
				VarianceAmount:  ev.VarianceAmount,
				VariancePercent: ev.VariancePercent,
				IsFavorable:     ev.IsFavorable,
			})
		}
		resp.Details = append(resp.Details, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetVarianceSummary returns the aggregated variance summary for a period.
func (h *Handler) GetVarianceSummary(w http.ResponseWriter, r *http.Request) {
	period := costing.PeriodID(chi.URLParam(r, "period"))
	summary, err := h.Analyzer.Summarize(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize variances", err)
		return
	}
	writeJSON(w, http.StatusOK, toVarianceSummaryResponse(summary))
}

func toVarianceSummaryResponse(s *variance.Summary) VarianceSummaryResponse {
	resp := VarianceSummaryResponse{
		PeriodID:               string(s.Period),
		TotalStandard:          s.TotalStandard,
		TotalActual:            s.TotalActual,
		TotalVariance:          s.TotalVariance,
		AverageVariancePercent: s.AverageVariancePercent,
		RecordCount:            s.RecordCount,
		FlaggedCount:           s.FlaggedCount,
		ProductCount:           s.ProductCount,
	}
	for _, es := range s.Elements {
		resp.Elements = append(resp.Elements, ElementSummaryDTO{
			CostElement:            string(es.Element),
			TotalStandard:          es.TotalStandard,
			TotalActual:            es.TotalActual,
			TotalVariance:          es.TotalVariance,
			AverageVariancePercent: es.AverageVariancePercent,
			FavorableCount:         es.FavorableCount,
			UnfavorableCount:       es.UnfavorableCount,
			FlaggedCount:           es.FlaggedCount,
		})
	}
	return resp
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// RunReconciliation reconciles the period's actuals across source systems.
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if !h.decode(w, r, &req) {
		return
	}

	threshold := defaultReconcileThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	result, err := h.Reconciler.ReconcilePeriod(r.Context(), costing.PeriodID(req.PeriodID), threshold)
	if err != nil {
		h.writeDomainError(w, "Reconciliation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ReconcileResponse{
		PeriodID:      string(result.Period),
		Matched:       result.Matched,
		Unmatched:     result.Unmatched,
		Discrepancies: result.Discrepancies,
		Total:         result.Total,
	})
}

// GetReconciliationSummary returns the aggregated reconciliation summary.
func (h *Handler) GetReconciliationSummary(w http.ResponseWriter, r *http.Request) {
	period := costing.PeriodID(chi.URLParam(r, "period"))
	summary, err := h.Reconciler.Summarize(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize reconciliation", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileSummaryResponse{
		PeriodID:        string(summary.Period),
		Matched:         summary.Matched,
		Unmatched:       summary.Unmatched,
		Discrepancies:   summary.Discrepancies,
		Total:           summary.Total,
		TotalDifference: summary.TotalDifference,
	})
}

// =============================================================================
// REPORT / EXPLANATION HANDLERS
// =============================================================================

// DownloadVarianceReport streams the variance summary workbook.
func (h *Handler) DownloadVarianceReport(w http.ResponseWriter, r *http.Request) {
	periodID := costing.PeriodID(chi.URLParam(r, "period"))
	period, err := h.Store.GetPeriod(r.Context(), periodID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load period", err)
		return
	}
	if period == nil {
		writeError(w, http.StatusNotFound, "Fiscal period not found", nil)
		return
	}

	summary, err := h.Analyzer.Summarize(r.Context(), periodID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize variances", err)
		return
	}

	filename := fmt.Sprintf("variance_%d%02d.xlsx", period.Year, period.Month)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := report.WriteVarianceSummary(w, period.Year, period.Month, summary); err != nil {
		h.Log.WithError(err).Error("failed to write variance workbook")
	}
}

// ExplainVariance drafts report commentary for the period's variances.
func (h *Handler) ExplainVariance(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if !h.decode(w, r, &req) {
		return
	}

	periodID := costing.PeriodID(req.PeriodID)
	period, err := h.Store.GetPeriod(r.Context(), periodID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load period", err)
		return
	}
	if period == nil {
		writeError(w, http.StatusNotFound, "Fiscal period not found", nil)
		return
	}

	summary, err := h.Analyzer.Summarize(r.Context(), periodID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize variances", err)
		return
	}

	text, err := h.Explain.ExplainVariance(r.Context(), period.Year, period.Month, summary)
	if errors.Is(err, explain.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "Explanation service is not configured", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate explanation", err)
		return
	}

	writeJSON(w, http.StatusOK, ExplainResponse{
		PeriodID:    req.PeriodID,
		Explanation: text,
	})
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// decode parses and validates a JSON request body, writing a 400 on
// failure. Returns false when the request was already answered.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps engine errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case costing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case costing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
