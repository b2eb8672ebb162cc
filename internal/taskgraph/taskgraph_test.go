package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkstage/coordinator/pkg/types"
)

func buildGraphWithProveTasks(t *testing.T, n int) *types.TaskGraph {
	t.Helper()
	g := types.NewTaskGraph("sub-1")
	require.NoError(t, BuildProveTasks(g, n))
	for _, pt := range g.Prove {
		pt.State = types.TaskSuccess
		pt.OutputReceipt = "receipt-" + string(pt.ID)
	}
	return g
}

func TestBuildAggTasks_CountAndFinal(t *testing.T) {
	for n := 2; n <= 64; n++ {
		g := buildGraphWithProveTasks(t, n)
		agg := BuildAggTasks(g)

		require.LessOrEqualf(t, len(agg), n, "n=%d produced %d agg tasks", n, len(agg))

		finals := 0
		ids := map[types.TaskID]*types.AggTask{}
		for _, a := range agg {
			ids[a.ID] = a
			if a.IsFinal {
				finals++
			}
		}
		require.Equal(t, 1, finals, "n=%d", n)
		require.True(t, agg[len(agg)-1].IsFinal, "is_final must be the last-created task, n=%d", n)

		// Valid topological order: every non-passthrough task's children
		// (when they are AggTask references) must already appear earlier
		// in the list.
		seen := map[types.TaskID]bool{}
		for _, a := range agg {
			if a.Left.AggTaskID != "" {
				require.True(t, seen[a.Left.AggTaskID], "left child %s of %s must precede it", a.Left.AggTaskID, a.ID)
			}
			if a.Right != nil && a.Right.AggTaskID != "" {
				require.True(t, seen[a.Right.AggTaskID], "right child of %s must precede it", a.ID)
			}
			seen[a.ID] = true
		}
	}
}

func TestClearChild_OnlyMatchingSlot(t *testing.T) {
	g := buildGraphWithProveTasks(t, 3)
	agg := BuildAggTasks(g)
	require.Len(t, agg, 3)

	real := agg[0] // pairs prove 0 and 1, both resolved already (leaf layer)
	passthrough := agg[1]
	root := agg[2]

	require.True(t, passthrough.Passthrough())
	require.Equal(t, types.TaskSuccess, passthrough.State)

	// Clearing on a passthrough/processed task must not alter its State.
	stateBefore := passthrough.State
	ClearChild(g, passthrough.ID, "ignored")
	require.Equal(t, stateBefore, passthrough.State)

	// root's Left references `real`, Right references `passthrough`(already
	// cleared at construction since passthrough resolves immediately).
	require.Empty(t, root.Right.AggTaskID)
	require.NotEmpty(t, root.Left.AggTaskID)

	ClearChild(g, real.ID, "real-receipt")
	require.Empty(t, root.Left.AggTaskID)
	require.Equal(t, "real-receipt", root.Left.Receipt)
	// The other slot must remain untouched.
	require.Equal(t, passthrough.OutputReceipt, root.Right.Receipt)
}

func TestAdvance_NeverSkipsOrRegresses(t *testing.T) {
	g := buildGraphWithProveTasks(t, 4)
	g.Step = types.StepInSplit
	g.Split.State = types.TaskSuccess

	prev := g.Step
	for i := 0; i < 10; i++ {
		cur := Advance(g, false, false, types.TargetSnark)
		require.GreaterOrEqual(t, int(cur), int(prev), "step must never regress")
		require.LessOrEqual(t, int(cur)-int(prev), 1, "step must never skip more than one stage per Advance call")
		prev = cur
		if cur == types.StepInAgg {
			for _, a := range g.Agg {
				a.State = types.TaskSuccess
			}
		}
		if cur == types.StepInSnark {
			g.Snark.State = types.TaskSuccess
		}
		if cur == types.StepEnd {
			break
		}
	}
	require.Equal(t, types.StepEnd, g.Step)
}

func TestAdvance_ExecuteOnlyStopsAfterSplit(t *testing.T) {
	g := types.NewTaskGraph("sub-2")
	g.Split.State = types.TaskSuccess
	cur := Advance(g, true, false, types.TargetSnark)
	require.Equal(t, types.StepEnd, cur)
	require.Nil(t, g.Prove)
}

func TestAdvance_CompositeProofStopsAfterProve(t *testing.T) {
	g := buildGraphWithProveTasks(t, 4)
	g.Step = types.StepInProve
	cur := Advance(g, false, true, types.TargetSnark)
	require.Equal(t, types.StepEnd, cur)
	require.Nil(t, g.Agg)
}
