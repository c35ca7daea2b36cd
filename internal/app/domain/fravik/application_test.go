package fravik

import (
	"encoding/json"
	"testing"
)

func TestSetType_ResetsOtherBranch(t *testing.T) {
	app := New()
	app.SetType(TypeMachine)
	app.AddMachine(Machine{Type: "Hjullaster"})
	app.AddMachine(Machine{Type: "Lift"})
	app.Processing = &Processing{MachineDecisions: map[string]MachineDecision{
		app.Machines[0].ID: {Decision: DecisionApproved},
	}}

	app.SetType(TypeInfrastructure)
	if len(app.Machines) != 0 {
		t.Fatalf("machine collection not reset, %d left", len(app.Machines))
	}
	if len(app.Processing.MachineDecisions) != 0 {
		t.Fatalf("machine decisions not pruned on branch switch")
	}

	app.Infrastructure.PowerAccessDescription = "ingen nettilgang"
	app.SetType(TypeMachine)
	if app.Infrastructure != (Infrastructure{}) {
		t.Fatalf("infrastructure branch not reset: %#v", app.Infrastructure)
	}
}

func TestSetType_SameTypeKeepsData(t *testing.T) {
	app := New()
	app.SetType(TypeMachine)
	app.AddMachine(Machine{Type: "Gravemaskin"})
	app.SetType(TypeMachine)
	if len(app.Machines) != 1 {
		t.Fatalf("re-setting the same type must not reset data")
	}
}

func TestMachineLifecycle(t *testing.T) {
	app := New()
	app.SetType(TypeMachine)

	first := app.AddMachine(Machine{Type: "Gravemaskin"})
	second := app.AddMachine(Machine{Type: "Lift"})
	if first.ID == "" || second.ID == "" || first.ID == second.ID {
		t.Fatalf("machines must get distinct generated ids")
	}
	if app.Machines[0].ID != first.ID || app.Machines[1].ID != second.ID {
		t.Fatalf("insertion order not preserved")
	}

	edited := first
	edited.Type = "Hjullaster"
	edited.DetailedReasoning = "ikke tilgjengelig i markedet"
	if !app.ReplaceMachine(edited) {
		t.Fatalf("replace by id failed")
	}
	got, ok := app.MachineByID(first.ID)
	if !ok || got.Type != "Hjullaster" {
		t.Fatalf("edit did not replace record: %#v", got)
	}

	if app.ReplaceMachine(Machine{ID: "unknown"}) {
		t.Fatalf("replace must fail for unknown id")
	}

	app.Processing = &Processing{MachineDecisions: map[string]MachineDecision{
		first.ID:  {Decision: DecisionApproved},
		second.ID: {Decision: DecisionRejected},
	}}
	if !app.RemoveMachine(first.ID) {
		t.Fatalf("remove by id failed")
	}
	if len(app.Machines) != 1 || app.Machines[0].ID != second.ID {
		t.Fatalf("wrong machine removed")
	}
	if _, ok := app.Processing.MachineDecisions[first.ID]; ok {
		t.Fatalf("orphaned decision not pruned")
	}
	if _, ok := app.Processing.MachineDecisions[second.ID]; !ok {
		t.Fatalf("surviving machine's decision was pruned")
	}
}

func TestApplicationJSONContract(t *testing.T) {
	app := New()
	app.ProjectName = "Furuset aktivitetspark"
	app.SetType(TypeMachine)
	app.AddMachine(Machine{Type: "Gravemaskin", Reasons: []string{"Markedsmangel"}})
	app.Processing = &Processing{Status: StatusSubmitted}

	raw, err := json.Marshal(app)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"projectName", "applicationType", "machines", "infrastructure", "processing"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("wire field %q missing from payload", key)
		}
	}
	if doc["applicationType"] != "machine" {
		t.Fatalf("applicationType = %v", doc["applicationType"])
	}
	proc := doc["processing"].(map[string]any)
	if proc["status"] != "submitted" {
		t.Fatalf("processing.status = %v", proc["status"])
	}
}
