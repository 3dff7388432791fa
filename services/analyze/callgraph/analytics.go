// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callgraph

import "fmt"

// Criticality weights. Downstream risk scoring owns the exact values;
// the engine guarantees only that the score is monotonic in fan-in,
// fan-out, and the entry-point flag.
const (
	criticalityEntryFactor      = 2.0
	criticalityHighFanInFactor  = 1.5
	criticalityMidFanInFactor   = 1.2
	criticalityEntryCallerBoost = 1.3
	criticalityHighFanOutFactor = 1.2
	criticalityMidFanOutFactor  = 1.1

	highFanThreshold = 5
	midFanThreshold  = 2
)

// Delegation thresholds.
const (
	// delegationMaxComplexity is the highest own complexity a function
	// may have and still count as a pure orchestrator.
	delegationMaxComplexity = 2

	// delegationCalleeRatio is how much more complex the average callee
	// must be than the function itself.
	delegationCalleeRatio = 2.0
)

// CalculateCriticality scores a function's structural importance.
//
// Description:
//
//	Starts at 1.0 and applies multiplicative boosts: entry points, high
//	fan-in, high fan-out, and being called directly by an entry point
//	all raise the score. Each factor is a nondecreasing step function of
//	its input, so the score is monotonic in fan-in, fan-out, and the
//	entry flag.
//
// Outputs:
//
//	float64 - The score, >= 1.0.
//	error   - ErrGraphBuilding before Freeze, ErrUnknownFunction for
//	          identities not in the graph.
func (g *Graph) CalculateCriticality(id FunctionID) (float64, error) {
	if g.State() != GraphStateReadOnly {
		return 0, fmt.Errorf("criticality: %w", ErrGraphBuilding)
	}
	info, ok := g.Info(id)
	if !ok {
		return 0, fmt.Errorf("criticality %s: %w", id, ErrUnknownFunction)
	}

	criticality := 1.0

	if info.IsEntryPoint {
		criticality *= criticalityEntryFactor
	}

	callers := g.GetCallers(id)
	if len(callers) > highFanThreshold {
		criticality *= criticalityHighFanInFactor
	} else if len(callers) > midFanThreshold {
		criticality *= criticalityMidFanInFactor
	}

	callees := g.GetCallees(id)
	if len(callees) > highFanThreshold {
		criticality *= criticalityHighFanOutFactor
	} else if len(callees) > midFanThreshold {
		criticality *= criticalityMidFanOutFactor
	}

	for _, caller := range callers {
		if callerInfo, ok := g.Info(caller); ok && callerInfo.IsEntryPoint {
			criticality *= criticalityEntryCallerBoost
			break
		}
	}

	return criticality, nil
}

// DelegationReport carries a delegation classification together with the
// counts that produced it, so reporting layers can show their work.
type DelegationReport struct {
	// IsDelegator is true when the function orchestrates rather than
	// computes: low own complexity, meaningfully more complex callees.
	IsDelegator bool

	// Complexity is the function's own cyclomatic complexity.
	Complexity int

	// CalleeCount is the distinct resolved fan-out.
	CalleeCount int

	// AvgCalleeComplexity is the mean complexity of resolved callees
	// present in the graph. 0 when there are none.
	AvgCalleeComplexity float64
}

// DetectDelegationPattern classifies a function as an orchestrator.
//
// A function delegates when its own complexity is at most
// delegationMaxComplexity, it calls at least one other function, and the
// average callee complexity exceeds delegationCalleeRatio times its own.
func (g *Graph) DetectDelegationPattern(id FunctionID) (DelegationReport, error) {
	if g.State() != GraphStateReadOnly {
		return DelegationReport{}, fmt.Errorf("delegation: %w", ErrGraphBuilding)
	}
	info, ok := g.Info(id)
	if !ok {
		return DelegationReport{}, fmt.Errorf("delegation %s: %w", id, ErrUnknownFunction)
	}

	callees := g.GetCallees(id)
	report := DelegationReport{
		Complexity:  info.Complexity,
		CalleeCount: len(callees),
	}

	total := 0.0
	counted := 0
	for _, callee := range callees {
		if calleeInfo, ok := g.Info(callee); ok {
			total += float64(calleeInfo.Complexity)
			counted++
		}
	}
	if counted > 0 {
		report.AvgCalleeComplexity = total / float64(counted)
	}

	report.IsDelegator = info.Complexity <= delegationMaxComplexity &&
		counted > 0 &&
		report.AvgCalleeComplexity > float64(info.Complexity)*delegationCalleeRatio

	return report, nil
}

// IsTestHelper reports whether a function exists only to serve tests:
// it has at least one caller and every caller is a test function.
func (g *Graph) IsTestHelper(id FunctionID) (bool, error) {
	if g.State() != GraphStateReadOnly {
		return false, fmt.Errorf("test helper: %w", ErrGraphBuilding)
	}

	callers := g.GetCallers(id)
	if len(callers) == 0 {
		return false, nil
	}
	for _, caller := range callers {
		info, ok := g.Info(caller)
		if !ok || !info.IsTest {
			return false, nil
		}
	}
	return true, nil
}
