/*
copy.go - Period-to-period replication of standard costs

PURPOSE:
  Copies every crude product and product standard cost from one fiscal
  period to another, typically to seed a new period from the last closed
  one. Existing records in the target are skipped unless Overwrite is
  set, in which case their cost columns are patched in place.

VALIDATION:
  Both periods must exist and must differ. Validated before the first
  write, so a rejected copy leaves the target untouched.
*/
package costing

import "context"

// CopyInput names the source and target periods of one copy run.
type CopyInput struct {
	SourcePeriod PeriodID
	TargetPeriod PeriodID
	Overwrite    bool
}

// CopyResult counts what happened to each record class.
type CopyResult struct {
	CrudeProductsCopied  int
	CrudeProductsSkipped int
	CrudeProductsUpdated int
	ProductsCopied       int
	ProductsSkipped      int
	ProductsUpdated      int
}

// CopyStandardCosts replicates the source period's cost records into the
// target period. Records already present in the target are skipped, or
// updated when in.Overwrite is set. Re-running a copy is safe: a second
// pass reports everything as skipped (or updated) and changes nothing new.
func CopyStandardCosts(ctx context.Context, store Store, in CopyInput) (*CopyResult, error) {
	if in.SourcePeriod == in.TargetPeriod {
		return nil, ErrSamePeriod
	}
	source, err := store.GetPeriod(ctx, in.SourcePeriod)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, &PeriodNotFoundError{Role: "source", PeriodID: in.SourcePeriod}
	}
	target, err := store.GetPeriod(ctx, in.TargetPeriod)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &PeriodNotFoundError{Role: "target", PeriodID: in.TargetPeriod}
	}

	result := &CopyResult{}

	if err := copyCrudeCosts(ctx, store, in, result); err != nil {
		return nil, err
	}
	if err := copyProductCosts(ctx, store, in, result); err != nil {
		return nil, err
	}
	return result, nil
}

func copyCrudeCosts(ctx context.Context, store Store, in CopyInput, result *CopyResult) error {
	sourceCosts, err := store.CrudeStandardCostsForPeriod(ctx, in.SourcePeriod)
	if err != nil {
		return err
	}
	targetCosts, err := store.CrudeStandardCostsForPeriod(ctx, in.TargetPeriod)
	if err != nil {
		return err
	}
	existing := make(map[CrudeProductID]CrudeProductStandardCost, len(targetCosts))
	for _, tc := range targetCosts {
		existing[tc.CrudeProductID] = tc
	}

	for _, sc := range sourceCosts {
		current, present := existing[sc.CrudeProductID]
		switch {
		case present && !in.Overwrite:
			result.CrudeProductsSkipped++
		case present:
			current.ApplyCosts(sc)
			if err := store.UpsertCrudeStandardCost(ctx, &current); err != nil {
				return err
			}
			result.CrudeProductsUpdated++
		default:
			copied := sc
			copied.ID = ""
			copied.PeriodID = in.TargetPeriod
			if err := store.UpsertCrudeStandardCost(ctx, &copied); err != nil {
				return err
			}
			result.CrudeProductsCopied++
		}
	}
	return nil
}

func copyProductCosts(ctx context.Context, store Store, in CopyInput, result *CopyResult) error {
	sourceCosts, err := store.StandardCostsForPeriod(ctx, in.SourcePeriod)
	if err != nil {
		return err
	}
	targetCosts, err := store.StandardCostsForPeriod(ctx, in.TargetPeriod)
	if err != nil {
		return err
	}
	existing := make(map[ProductID]StandardCost, len(targetCosts))
	for _, tc := range targetCosts {
		existing[tc.ProductID] = tc
	}

	for _, sc := range sourceCosts {
		current, present := existing[sc.ProductID]
		switch {
		case present && !in.Overwrite:
			result.ProductsSkipped++
		case present:
			current.ApplyCosts(sc)
			if err := store.UpsertStandardCost(ctx, &current); err != nil {
				return err
			}
			result.ProductsUpdated++
		default:
			copied := sc
			copied.ID = ""
			copied.PeriodID = in.TargetPeriod
			if err := store.UpsertStandardCost(ctx, &copied); err != nil {
				return err
			}
			result.ProductsCopied++
		}
	}
	return nil
}
