package platform

import (
	"context"
	"testing"
	"time"

	"github.com/ompas-labs/acting-core/internal/domain"
	"github.com/ompas-labs/acting-core/internal/types"
	"github.com/ompas-labs/acting-core/internal/worldstate"
)

func TestExecuteRunsBodyAndAssertsFact(t *testing.T) {
	ws := worldstate.New()
	defer ws.Close()
	reg := domain.New()
	reg.AddCommand(types.CommandDecl{
		Label: "turn_on_light",
		Params: []types.Param{{Name: "r", Type: "room"}},
		Body: types.List(types.Sym("assert"),
			types.List(types.Sym("light.on"), types.Sym("?r")),
			types.Bool(true)),
	})
	if err := reg.Freeze(); err != nil {
		t.Fatalf("unexpected freeze error: %v", err)
	}

	sim := NewLocalSimulator(ws, reg)
	_, err := sim.Execute(context.Background(), "turn_on_light", []types.Value{types.Sym("kitchen")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok := ws.Get(types.StateVariable{types.Sym("light.on"), types.Sym("kitchen")})
	if !ok || !v.BoolV {
		t.Fatalf("expected light.on kitchen to be true, got %v ok=%v", v, ok)
	}
}

func TestExecuteUnknownCommandIsProgrammingError(t *testing.T) {
	ws := worldstate.New()
	defer ws.Close()
	reg := domain.New()
	reg.Freeze()
	sim := NewLocalSimulator(ws, reg)
	_, err := sim.Execute(context.Background(), "nope", nil)
	if err == nil || err.Kind != types.ErrProgramming {
		t.Fatalf("expected programming error, got %v", err)
	}
}

func TestExecuteHonorsCancellationDuringDelay(t *testing.T) {
	ws := worldstate.New()
	defer ws.Close()
	reg := domain.New()
	reg.AddCommand(types.CommandDecl{
		Label: "slow_move",
		Cost:  types.Int(50), // 50 * 20ms = 1s simulated delay
		Body:  types.Bool(true),
	})
	reg.Freeze()

	sim := NewLocalSimulator(ws, reg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := sim.Execute(ctx, "slow_move", nil)
	if err == nil || err.Kind != types.ErrCommandFailure {
		t.Fatalf("expected command-failure error on cancellation, got %v", err)
	}
}
