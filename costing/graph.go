/*
graph.go - Dependency ordering for crude product costing

PURPOSE:
  A blended crude product's BOM references other crude products, so its
  unit cost depends on theirs. This file builds the explicit dependency
  graph over the crude products being costed and topologically sorts it,
  so blends of any depth are costed after their inputs. A cycle aborts
  the calculation before any write.

Only dependencies inside the costed set constrain the order; a line
referencing a crude product with no BOM this period contributes nothing
and imposes no ordering.
*/
package costing

import "sort"

// OrderByBlendDependencies returns the crude product IDs in an order
// where every blend follows all of its in-set inputs. Ties are broken by
// ID so runs are reproducible. Returns a BlendCycleError when the graph
// cannot be fully ordered.
func OrderByBlendDependencies(boms map[CrudeProductID]BOMHeader) ([]CrudeProductID, error) {
	ids := make([]CrudeProductID, 0, len(boms))
	for id := range boms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// dependents[x] = blends that consume x; indegree = unresolved inputs.
	dependents := make(map[CrudeProductID][]CrudeProductID, len(boms))
	indegree := make(map[CrudeProductID]int, len(boms))
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, id := range ids {
		for _, line := range boms[id].Lines {
			dep := line.CrudeProductID
			if dep == "" {
				continue
			}
			if _, inSet := boms[dep]; !inSet {
				continue
			}
			// A self-reference is a one-node cycle; the edge keeps the
			// node's indegree positive so it surfaces as unresolvable.
			dependents[dep] = append(dependents[dep], id)
			indegree[id]++
		}
	}

	ready := make([]CrudeProductID, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	ordered := make([]CrudeProductID, 0, len(ids))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)

		blocked := dependents[next]
		sort.Slice(blocked, func(i, j int) bool { return blocked[i] < blocked[j] })
		for _, b := range blocked {
			indegree[b]--
			if indegree[b] == 0 {
				ready = append(ready, b)
			}
		}
	}

	if len(ordered) != len(ids) {
		var remaining []CrudeProductID
		for _, id := range ids {
			if indegree[id] > 0 {
				remaining = append(remaining, id)
			}
		}
		return nil, &BlendCycleError{Remaining: remaining}
	}
	return ordered, nil
}
