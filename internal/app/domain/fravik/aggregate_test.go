package fravik

import "testing"

func machineApp(n int) Application {
	app := New()
	app.SetType(TypeMachine)
	for i := 0; i < n; i++ {
		app.AddMachine(Machine{Type: "Gravemaskin"})
	}
	app.Processing = &Processing{MachineDecisions: map[string]MachineDecision{}}
	return app
}

func decide(app *Application, idx int, d Decision) {
	app.Processing.MachineDecisions[app.Machines[idx].ID] = MachineDecision{Decision: d}
}

func TestAggregate_NoMachines(t *testing.T) {
	app := machineApp(0)
	if _, ok := AggregateMachineDecisions(&app); ok {
		t.Fatalf("expected no derivation for empty machine collection")
	}

	infra := New()
	infra.SetType(TypeInfrastructure)
	infra.Processing = &Processing{}
	if _, ok := AggregateMachineDecisions(&infra); ok {
		t.Fatalf("expected no derivation for infrastructure application")
	}
}

func TestAggregate_NoDecisions(t *testing.T) {
	app := machineApp(2)
	if _, ok := AggregateMachineDecisions(&app); ok {
		t.Fatalf("expected no derivation without decisions")
	}
}

func TestAggregate_PartialCoverage(t *testing.T) {
	app := machineApp(2)
	decide(&app, 0, DecisionApproved)

	app.Processing.GroupRecommendation = RecommendationUnset
	app.RecomputeGroupRecommendation()
	if app.Processing.GroupRecommendation != RecommendationUnset {
		t.Fatalf("partial coverage must leave recommendation unchanged, got %q", app.Processing.GroupRecommendation)
	}

	// A prior value must also survive partial coverage.
	app.Processing.GroupRecommendation = RecommendationApproved
	app.RecomputeGroupRecommendation()
	if app.Processing.GroupRecommendation != RecommendationApproved {
		t.Fatalf("prior value clobbered on partial coverage")
	}
}

func TestAggregate_Complete(t *testing.T) {
	cases := []struct {
		name      string
		decisions []Decision
		want      Recommendation
	}{
		{"single approved", []Decision{DecisionApproved}, RecommendationApproved},
		{"single rejected", []Decision{DecisionRejected}, RecommendationRejected},
		{"all approved", []Decision{DecisionApproved, DecisionApproved, DecisionApproved}, RecommendationApproved},
		{"all rejected", []Decision{DecisionRejected, DecisionRejected}, RecommendationRejected},
		{"mixed", []Decision{DecisionApproved, DecisionRejected}, RecommendationPartiallyApproved},
		{"mostly approved", []Decision{DecisionApproved, DecisionApproved, DecisionRejected}, RecommendationPartiallyApproved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := machineApp(len(tc.decisions))
			for i, d := range tc.decisions {
				decide(&app, i, d)
			}
			rec, ok := AggregateMachineDecisions(&app)
			if !ok {
				t.Fatalf("expected derivation with full coverage")
			}
			if rec != tc.want {
				t.Fatalf("got %q, want %q", rec, tc.want)
			}
		})
	}
}

func TestAggregate_SecondDecisionCompletes(t *testing.T) {
	app := machineApp(2)

	decide(&app, 0, DecisionApproved)
	app.RecomputeGroupRecommendation()
	if app.Processing.GroupRecommendation != RecommendationUnset {
		t.Fatalf("one of two decided: expected unset, got %q", app.Processing.GroupRecommendation)
	}

	decide(&app, 1, DecisionRejected)
	app.RecomputeGroupRecommendation()
	if app.Processing.GroupRecommendation != RecommendationPartiallyApproved {
		t.Fatalf("expected partially_approved, got %q", app.Processing.GroupRecommendation)
	}
}

func TestAggregate_OrphanedDecisionIgnored(t *testing.T) {
	app := machineApp(1)
	decide(&app, 0, DecisionApproved)
	app.Processing.MachineDecisions["gone"] = MachineDecision{Decision: DecisionRejected}

	rec, ok := AggregateMachineDecisions(&app)
	if !ok || rec != RecommendationApproved {
		t.Fatalf("orphaned decision must be inert, got %q ok=%v", rec, ok)
	}
}

func TestRecommendationDerived(t *testing.T) {
	app := machineApp(1)
	if !app.RecommendationDerived() {
		t.Fatalf("machine application with machines must derive")
	}

	infra := New()
	infra.SetType(TypeInfrastructure)
	if infra.RecommendationDerived() {
		t.Fatalf("infrastructure application must not derive")
	}
}
