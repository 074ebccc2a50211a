package hub

import (
	"testing"

	"github.com/ynput/ayon-ftrack/internal/ayon"
)

func TestPendingOperationsCleanTree(t *testing.T) {
	h := testHub(t)
	if ops := h.PendingOperations(); len(ops) != 0 {
		t.Errorf("PendingOperations() on clean tree = %v, want none", ops)
	}
	if h.AnatomyDirty() {
		t.Error("AnatomyDirty() on clean tree = true")
	}
}

func TestPendingOperationsCreateOrder(t *testing.T) {
	h := testHub(t)
	parent := h.AddFolder("sq03", "Sequence", h.Project().ID)
	child := h.AddFolder("sh010", "Shot", parent.ID)
	task, err := h.AddTask("layout", "Layout", child.ID)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	ops := h.PendingOperations()
	if len(ops) != 3 {
		t.Fatalf("PendingOperations() returned %d ops, want 3: %v", len(ops), ops)
	}
	pos := map[string]int{}
	for i, op := range ops {
		if op.Type != ayon.OpCreate {
			t.Errorf("op[%d].Type = %s, want create", i, op.Type)
		}
		pos[op.EntityID] = i
	}
	if !(pos[parent.ID] < pos[child.ID] && pos[child.ID] < pos[task.ID]) {
		t.Errorf("create order = %v, want parent before child before task", pos)
	}

	// A folder created at project root must not carry parentId.
	if _, ok := ops[pos[parent.ID]].Data["parentId"]; ok {
		t.Error("root-level folder create carries parentId")
	}
	if got := ops[pos[child.ID]].Data["parentId"]; got != parent.ID {
		t.Errorf("child create parentId = %v, want %s", got, parent.ID)
	}
	if got := ops[pos[task.ID]].Data["folderId"]; got != child.ID {
		t.Errorf("task create folderId = %v, want %s", got, child.ID)
	}
}

func TestPendingOperationsUpdate(t *testing.T) {
	h := testHub(t)
	e, _ := h.Get("f2")
	e.Name = "sh011"
	e.Attribs.Set("frameStart", 1001)

	ops := h.PendingOperations()
	if len(ops) != 1 {
		t.Fatalf("PendingOperations() returned %d ops, want 1: %v", len(ops), ops)
	}
	op := ops[0]
	if op.Type != ayon.OpUpdate || op.EntityID != "f2" {
		t.Fatalf("op = %+v, want update of f2", op)
	}
	if op.Data["name"] != "sh011" {
		t.Errorf("update name = %v, want sh011", op.Data["name"])
	}
	attrib, ok := op.Data["attrib"].(map[string]any)
	if !ok || attrib["frameStart"] != 1001 {
		t.Errorf("update attrib = %v, want frameStart 1001", op.Data["attrib"])
	}
}

func TestPendingOperationsMoveToRoot(t *testing.T) {
	h := testHub(t)
	if err := h.SetParent("f2", h.Project().ID); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	ops := h.PendingOperations()
	if len(ops) != 1 {
		t.Fatalf("PendingOperations() returned %d ops, want 1: %v", len(ops), ops)
	}
	// Moving under the project serializes as a nil parent, not the
	// project id.
	if got, ok := ops[0].Data["parentId"]; !ok || got != nil {
		t.Errorf("move-to-root parentId = %v (present=%v), want explicit nil", got, ok)
	}
}

func TestPendingOperationsDeleteOrder(t *testing.T) {
	h := testHub(t)
	h.Delete("f1")

	ops := h.PendingOperations()
	if len(ops) != 3 {
		t.Fatalf("PendingOperations() returned %d ops, want 3: %v", len(ops), ops)
	}
	pos := map[string]int{}
	for i, op := range ops {
		if op.Type != ayon.OpDelete {
			t.Errorf("op[%d].Type = %s, want delete", i, op.Type)
		}
		pos[op.EntityID] = i
	}
	if !(pos["t1"] < pos["f2"] && pos["f2"] < pos["f1"]) {
		t.Errorf("delete order = %v, want t1 before f2 before f1", pos)
	}
}

func TestAnatomyDirtyOnProjectAttribs(t *testing.T) {
	h := testHub(t)
	h.Project().Attribs.Set("fps", 24.0)
	if !h.AnatomyDirty() {
		t.Error("AnatomyDirty() = false after project attribute change")
	}
	if ops := h.PendingOperations(); len(ops) != 0 {
		t.Errorf("project attribute change produced entity ops: %v", ops)
	}
}
