package taskgraph

import "github.com/zkstage/coordinator/pkg/types"

// Advance re-evaluates the step machine from current task states and the
// submission's target/short-circuit flags, per §4.3 ("re-evaluated after
// every absorption and on a 200 ms tick") and §9's resolution of the
// target_step open question. It never regresses and never skips a step,
// except the one explicit short-circuit to End that a target_step or
// composite_proof/execute_only flag authorizes, and the jump to End once
// the graph is Terminal (§8 property 3 concerns the
// *task-state*-driven transitions; the short-circuits are submission-level
// policy layered on top, and themselves only ever move forward to End).
func Advance(g *types.TaskGraph, executeOnly, compositeProof bool, target types.TargetStep) types.Step {
	if g.Terminal {
		g.Step = types.StepEnd
		return g.Step
	}

	switch g.Step {
	case types.StepInSplit:
		if g.Split.State != types.TaskSuccess {
			break
		}
		if executeOnly || target == types.TargetSplit {
			g.Step = types.StepEnd
			break
		}
		if g.Prove == nil {
			if err := BuildProveTasks(g, g.Split.TotalSegments); err != nil {
				g.ErrStage = "Split"
				g.ErrMessage = err.Error()
				g.Terminal = true
				g.Step = types.StepEnd
				break
			}
		}
		g.Step = types.StepInProve

	case types.StepInProve:
		if !allProveSuccess(g) {
			break
		}
		if compositeProof || target == types.TargetProve {
			g.Step = types.StepEnd
			break
		}
		if g.Agg == nil {
			BuildAggTasks(g)
		}
		g.Step = types.StepInAgg

	case types.StepInAgg:
		if !allAggSuccess(g) {
			break
		}
		if target == types.TargetAggregate {
			g.Step = types.StepEnd
			break
		}
		if g.Snark == nil {
			g.Snark = &types.SnarkTask{
				ID:    types.SnarkTaskID(g.SubmissionID),
				State: types.TaskUnprocessed,
			}
		}
		g.Step = types.StepInSnark

	case types.StepInSnark:
		if g.Snark.State == types.TaskSuccess {
			g.Step = types.StepEnd
		}

	case types.StepEnd:
		// terminal, nothing to do
	}

	return g.Step
}

func allProveSuccess(g *types.TaskGraph) bool {
	if len(g.Prove) == 0 {
		return false
	}
	for _, t := range g.Prove {
		if t.State != types.TaskSuccess {
			return false
		}
	}
	return true
}

func allAggSuccess(g *types.TaskGraph) bool {
	if len(g.Agg) == 0 {
		return false
	}
	for _, t := range g.Agg {
		if t.State != types.TaskSuccess {
			return false
		}
	}
	return true
}
