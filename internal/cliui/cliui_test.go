package cliui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ompas-labs/acting-core/internal/acting"
	"github.com/ompas-labs/acting-core/internal/resource"
	"github.com/ompas-labs/acting-core/internal/types"
)

func TestPrintTreeRendersEveryNode(t *testing.T) {
	tree := acting.New()
	taskID := tree.NewChild(acting.Root, types.KindTask, "pick", []types.Value{types.Sym("r1")})
	tree.Start(taskID)
	methodID := tree.NewChild(taskID, types.KindMethod, "m_pick", nil)
	tree.Start(methodID)
	tree.Finish(methodID, types.StatusSuccess, types.Bool(true), nil)
	tree.Finish(taskID, types.StatusSuccess, types.Bool(true), nil)

	var buf bytes.Buffer
	PrintTree(&buf, tree, taskID)
	out := buf.String()

	if !strings.Contains(out, "pick") || !strings.Contains(out, "m_pick") {
		t.Fatalf("expected both task and method labels in output, got:\n%s", out)
	}
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected exactly two lines (task + method), got:\n%s", out)
	}
}

func TestPrintTreeShowsErrorOnFailedNode(t *testing.T) {
	tree := acting.New()
	taskID := tree.NewChild(acting.Root, types.KindTask, "t", nil)
	tree.Start(taskID)
	tree.Finish(taskID, types.StatusFailure, types.Value{},
		types.NewError(types.ErrRefinementFailure, "ALL_METHODS_FAILED", "every candidate failed"))

	var buf bytes.Buffer
	PrintTree(&buf, tree, taskID)
	out := buf.String()
	if !strings.Contains(out, "ALL_METHODS_FAILED") {
		t.Fatalf("expected the error code in output, got:\n%s", out)
	}
}

func TestClipTruncatesByDisplayWidth(t *testing.T) {
	short := clip("hello", 10)
	if short != "hello" {
		t.Fatalf("expected short string unchanged, got %q", short)
	}
	long := clip("a long message that should be truncated", 10)
	if !strings.HasSuffix(long, "…") {
		t.Fatalf("expected truncated string to end with an ellipsis, got %q", long)
	}
}

func TestPrintResourcesAlignsColumns(t *testing.T) {
	descs := []resource.Descriptor{
		{Label: "R", TotalCapacity: 2, FreeCapacity: 0, WaiterCount: 3},
		{Label: "battery_pack", TotalCapacity: 1, FreeCapacity: 1, WaiterCount: 0},
	}
	var buf bytes.Buffer
	PrintResources(&buf, descs)
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 resource rows, got %d lines:\n%s", len(lines), out)
	}
	for _, want := range []string{"RESOURCE", "R", "battery_pack"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}
