package fravik

// RecommendationDerived reports whether the working group recommendation is
// derived from per-machine decisions rather than edited directly. That is
// the case exactly for machine applications with at least one machine; the
// field must be treated as read-only in any interface while this holds.
func (a *Application) RecommendationDerived() bool {
	return a.Type == TypeMachine && len(a.Machines) > 0
}

// AggregateMachineDecisions derives the working group recommendation from
// the per-machine decisions. The second return value reports whether a new
// value was derived; when it is false the caller must leave the stored
// recommendation untouched.
//
// A recommendation is only derived once every machine has a decision:
// partial coverage means the decision is still pending, not partial. Once
// complete, unanimity maps to approved or rejected and anything mixed to
// partially_approved. Decisions recorded against deleted machines are
// ignored.
func AggregateMachineDecisions(a *Application) (Recommendation, bool) {
	if !a.RecommendationDerived() {
		return RecommendationUnset, false
	}
	if a.Processing == nil || len(a.Processing.MachineDecisions) == 0 {
		return RecommendationUnset, false
	}

	approved, rejected := 0, 0
	decided := 0
	for _, m := range a.Machines {
		d, ok := a.Processing.MachineDecisions[m.ID]
		if !ok || d.Decision == DecisionUnset {
			continue
		}
		decided++
		switch d.Decision {
		case DecisionApproved:
			approved++
		case DecisionRejected:
			rejected++
		}
	}

	if decided == 0 || decided < len(a.Machines) {
		return RecommendationUnset, false
	}

	switch {
	case approved == len(a.Machines):
		return RecommendationApproved, true
	case rejected == len(a.Machines):
		return RecommendationRejected, true
	default:
		return RecommendationPartiallyApproved, true
	}
}

// RecomputeGroupRecommendation applies the derived recommendation onto the
// processing record. It must be called synchronously after every mutation of
// MachineDecisions or the machine collection so dependent reads never see a
// stale value.
func (a *Application) RecomputeGroupRecommendation() {
	if rec, ok := AggregateMachineDecisions(a); ok {
		a.Processing.GroupRecommendation = rec
	}
}
