package costing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakawak223/stdcost/costing"
)

func bomWithCrudeInputs(id costing.CrudeProductID, inputs ...costing.CrudeProductID) costing.BOMHeader {
	h := costing.BOMHeader{CrudeProductID: id, Type: costing.BOMRawMaterialProcess, IsActive: true}
	for _, in := range inputs {
		h.Lines = append(h.Lines, costing.BOMLine{CrudeProductID: in, Quantity: d("1")})
	}
	return h
}

func TestOrderByBlendDependencies_TwoLevelChain(t *testing.T) {
	// GIVEN: base -> mid -> top (top blends mid, mid blends base)
	// WHEN: Ordering
	// THEN: Every blend follows all of its inputs

	boms := map[costing.CrudeProductID]costing.BOMHeader{
		"top":  bomWithCrudeInputs("top", "mid"),
		"mid":  bomWithCrudeInputs("mid", "base"),
		"base": bomWithCrudeInputs("base"),
	}

	order, err := costing.OrderByBlendDependencies(boms)
	require.NoError(t, err)
	require.Len(t, order, 3)

	pos := map[costing.CrudeProductID]int{}
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["base"], pos["mid"])
	assert.Less(t, pos["mid"], pos["top"])
}

func TestOrderByBlendDependencies_OutOfSetInputIsIgnored(t *testing.T) {
	// GIVEN: A blend referencing a crude product with no BOM this period
	// WHEN: Ordering
	// THEN: The dangling reference imposes no ordering and no error

	boms := map[costing.CrudeProductID]costing.BOMHeader{
		"only": bomWithCrudeInputs("only", "missing"),
	}

	order, err := costing.OrderByBlendDependencies(boms)
	require.NoError(t, err)
	assert.Equal(t, []costing.CrudeProductID{"only"}, order)
}

func TestOrderByBlendDependencies_CycleIsRejected(t *testing.T) {
	// GIVEN: a -> b -> a
	// WHEN: Ordering
	// THEN: ErrBlendCycle, with the unresolved products listed

	boms := map[costing.CrudeProductID]costing.BOMHeader{
		"a": bomWithCrudeInputs("a", "b"),
		"b": bomWithCrudeInputs("b", "a"),
	}

	_, err := costing.OrderByBlendDependencies(boms)
	require.Error(t, err)
	assert.ErrorIs(t, err, costing.ErrBlendCycle)

	var cycleErr *costing.BlendCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Len(t, cycleErr.Remaining, 2)
}

func TestOrderByBlendDependencies_SelfReferenceIsRejected(t *testing.T) {
	// GIVEN: A blend whose BOM lists itself as an input
	// WHEN: Ordering
	// THEN: ErrBlendCycle naming the one-node cycle

	boms := map[costing.CrudeProductID]costing.BOMHeader{
		"loop": bomWithCrudeInputs("loop", "loop"),
	}

	_, err := costing.OrderByBlendDependencies(boms)
	require.Error(t, err)
	assert.ErrorIs(t, err, costing.ErrBlendCycle)

	var cycleErr *costing.BlendCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []costing.CrudeProductID{"loop"}, cycleErr.Remaining)
}

func TestOrderByBlendDependencies_Deterministic(t *testing.T) {
	// GIVEN: Independent crude products with no dependencies
	// WHEN: Ordering twice
	// THEN: The order is identical (sorted by ID)

	boms := map[costing.CrudeProductID]costing.BOMHeader{
		"c": bomWithCrudeInputs("c"),
		"a": bomWithCrudeInputs("a"),
		"b": bomWithCrudeInputs("b"),
	}

	first, err := costing.OrderByBlendDependencies(boms)
	require.NoError(t, err)
	second, err := costing.OrderByBlendDependencies(boms)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []costing.CrudeProductID{"a", "b", "c"}, first)
}
