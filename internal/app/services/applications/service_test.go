package applications

import (
	"context"
	"errors"
	"testing"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
	"github.com/oslobygg/fravik-service/internal/app/storage/memory"
)

func newMachineApp(t *testing.T, svc *Service) fravik.Application {
	t.Helper()
	app := fravik.New()
	app.ProjectName = "Voldsløkka skole"
	app.SetType(fravik.TypeMachine)
	created, err := svc.Create(context.Background(), app)
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	return created
}

func TestMachineCRUD(t *testing.T) {
	svc := New(memory.New(), nil)
	app := newMachineApp(t, svc)

	_, first, err := svc.AddMachine(context.Background(), app.ID, fravik.Machine{Type: "Gravemaskin"})
	if err != nil {
		t.Fatalf("add machine: %v", err)
	}
	updated, second, err := svc.AddMachine(context.Background(), app.ID, fravik.Machine{Type: "Lift"})
	if err != nil {
		t.Fatalf("add second machine: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("machine ids must be unique")
	}
	if len(updated.Machines) != 2 || updated.Machines[0].ID != first.ID {
		t.Fatalf("insertion order not preserved: %#v", updated.Machines)
	}

	edit := first
	edit.DetailedReasoning = "Ingen elektrisk gravemaskin i denne størrelsen"
	updated, err = svc.UpdateMachine(context.Background(), app.ID, edit)
	if err != nil {
		t.Fatalf("update machine: %v", err)
	}
	got, ok := updated.MachineByID(first.ID)
	if !ok || got.DetailedReasoning != edit.DetailedReasoning {
		t.Fatalf("edit not applied: %#v", got)
	}

	if _, err := svc.UpdateMachine(context.Background(), app.ID, fravik.Machine{ID: "nope"}); !errors.Is(err, ErrMachineNotFound) {
		t.Fatalf("expected ErrMachineNotFound, got %v", err)
	}

	if _, err := svc.RemoveMachine(context.Background(), app.ID, first.ID, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	updated, err = svc.RemoveMachine(context.Background(), app.ID, first.ID, true)
	if err != nil {
		t.Fatalf("remove machine: %v", err)
	}
	if len(updated.Machines) != 1 || updated.Machines[0].ID != second.ID {
		t.Fatalf("wrong machine removed: %#v", updated.Machines)
	}
}

func TestRemoveMachine_PrunesDecision(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	app := newMachineApp(t, svc)

	updated, m, err := svc.AddMachine(context.Background(), app.ID, fravik.Machine{Type: "Gravemaskin"})
	if err != nil {
		t.Fatalf("add machine: %v", err)
	}
	updated.Processing = &fravik.Processing{
		Status: fravik.StatusAwaitingGroupReview,
		MachineDecisions: map[string]fravik.MachineDecision{
			m.ID: {Decision: fravik.DecisionApproved},
		},
	}
	if _, err := svc.Update(context.Background(), updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	final, err := svc.RemoveMachine(context.Background(), app.ID, m.ID, true)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(final.Processing.MachineDecisions) != 0 {
		t.Fatalf("decision for deleted machine not pruned")
	}
}

func TestBranchExclusivity(t *testing.T) {
	svc := New(memory.New(), nil)
	app := newMachineApp(t, svc)

	if _, _, err := svc.AddMachine(context.Background(), app.ID, fravik.Machine{Type: "Gravemaskin"}); err != nil {
		t.Fatalf("add machine: %v", err)
	}

	switched, err := svc.SetType(context.Background(), app.ID, fravik.TypeInfrastructure)
	if err != nil {
		t.Fatalf("set type: %v", err)
	}
	if len(switched.Machines) != 0 {
		t.Fatalf("machine branch not reset on switch")
	}

	switched, err = svc.UpdateInfrastructure(context.Background(), app.ID, fravik.Infrastructure{
		PowerAccessDescription: "Kun 63A tilgjengelig på tomten",
		MobileBatteryConsidered: true,
	})
	if err != nil {
		t.Fatalf("update infrastructure: %v", err)
	}
	if !switched.Infrastructure.MobileBatteryConsidered {
		t.Fatalf("infrastructure update not applied")
	}

	if _, _, err := svc.AddMachine(context.Background(), app.ID, fravik.Machine{Type: "Lift"}); !errors.Is(err, ErrWrongBranch) {
		t.Fatalf("expected ErrWrongBranch, got %v", err)
	}

	switched, err = svc.SetType(context.Background(), app.ID, fravik.TypeMachine)
	if err != nil {
		t.Fatalf("switch back: %v", err)
	}
	if switched.Infrastructure != (fravik.Infrastructure{}) {
		t.Fatalf("infrastructure branch not reset on switch back")
	}
}
