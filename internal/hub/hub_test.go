package hub

import (
	"errors"
	"testing"

	"github.com/ynput/ayon-ftrack/internal/ayon"
)

// testHub builds a small loaded tree without a server:
//
//	testproj
//	└── sq01 (f1)
//	    └── SH_010 (f2, has products)
//	        └── animation (t1)
//	└── sq02 (f3)
func testHub(t *testing.T) *Hub {
	t.Helper()
	h := New(nil, "testproj", nil)
	h.Populate(
		&ayon.ProjectModel{
			Name:   "testproj",
			Active: true,
			Attrib: ayon.Attrib{"fps": 25.0},
			Statuses: []ayon.StatusDef{
				{Name: "Not Ready", State: "not_started"},
				{Name: "In Progress", State: "in_progress", Scope: []string{"task"}},
				{Name: "Omitted", State: "done", Scope: []string{"folder", "task"}},
			},
		},
		[]ayon.FolderModel{
			{ID: "f1", Name: "sq01", FolderType: "Sequence", Active: true},
			{ID: "f2", Name: "SH_010", FolderType: "Shot", ParentID: "f1", Active: true, HasProducts: true},
			{ID: "f3", Name: "sq02", FolderType: "Sequence", Active: true},
		},
		[]ayon.TaskModel{
			{ID: "t1", Name: "animation", TaskType: "Animation", FolderID: "f2", Active: true},
		},
	)
	return h
}

func TestPopulateTree(t *testing.T) {
	h := testHub(t)

	if h.Project().Name != "testproj" {
		t.Errorf("Project().Name = %q, want testproj", h.Project().Name)
	}
	all := h.All()
	if len(all) != 4 {
		t.Fatalf("All() returned %d entities, want 4", len(all))
	}
	// Breadth-first: both sequences precede the shot, the shot
	// precedes the task.
	order := map[string]int{}
	for i, e := range all {
		order[e.ID] = i
	}
	if !(order["f1"] < order["f2"] && order["f2"] < order["t1"]) {
		t.Errorf("All() order = %v, want f1 before f2 before t1", order)
	}

	if got := h.Children("f2"); len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("Children(f2) = %v, want [t1]", got)
	}
	if e, ok := h.Get("f2"); !ok || e.ParentID != "f1" {
		t.Errorf("Get(f2) = %v, %v; want entity with parent f1", e, ok)
	}
}

func TestAddTaskOnProjectRejected(t *testing.T) {
	h := testHub(t)
	if _, err := h.AddTask("generic", "Generic", h.Project().ID); !errors.Is(err, ErrTaskOnProject) {
		t.Errorf("AddTask on project root err = %v, want ErrTaskOnProject", err)
	}
	if err := h.SetParent("t1", h.Project().ID); !errors.Is(err, ErrTaskOnProject) {
		t.Errorf("SetParent task onto root err = %v, want ErrTaskOnProject", err)
	}
}

func TestDeleteSubtree(t *testing.T) {
	h := testHub(t)
	h.Delete("f1")

	for _, id := range []string{"f1", "f2", "t1"} {
		if _, ok := h.Get(id); ok {
			t.Errorf("Get(%s) still alive after subtree delete", id)
		}
	}
	if _, ok := h.Get("f3"); !ok {
		t.Error("Get(f3) gone; sibling must survive the delete")
	}
	if len(h.removed) != 3 {
		t.Errorf("removed set size = %d, want 3", len(h.removed))
	}
}

func TestDeleteCreatedDiscards(t *testing.T) {
	h := testHub(t)
	e := h.AddFolder("temp", "Folder", "f3")
	h.Delete(e.ID)
	if len(h.removed) != 0 {
		t.Errorf("removed set size = %d after deleting a local create, want 0", len(h.removed))
	}
}

func TestImmutableForHierarchy(t *testing.T) {
	h := testHub(t)

	tests := []struct {
		id   string
		want bool
	}{
		{id: "f2", want: true},  // carries products itself
		{id: "f1", want: true},  // ancestor of f2
		{id: "t1", want: false}, // task below the products, not above
		{id: "f3", want: false},
	}
	for _, tt := range tests {
		if got := h.ImmutableForHierarchy(tt.id); got != tt.want {
			t.Errorf("ImmutableForHierarchy(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}

	// Moving the shot invalidates cached answers on both branches.
	if err := h.SetParent("f2", "f3"); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	if h.ImmutableForHierarchy("f1") {
		t.Error("ImmutableForHierarchy(f1) = true after the shot moved away")
	}
	if !h.ImmutableForHierarchy("f3") {
		t.Error("ImmutableForHierarchy(f3) = false after the shot moved in")
	}
}

func TestStatusInScope(t *testing.T) {
	h := testHub(t)

	tests := []struct {
		name       string
		status     string
		entityType EntityType
		wantName   string
		wantOK     bool
	}{
		{name: "unscoped matches folder", status: "Not Ready", entityType: EntityFolder, wantName: "Not Ready", wantOK: true},
		{name: "case insensitive returns anatomy casing", status: "in progress", entityType: EntityTask, wantName: "In Progress", wantOK: true},
		{name: "scope excludes folder", status: "In Progress", entityType: EntityFolder, wantOK: false},
		{name: "multi scope", status: "Omitted", entityType: EntityFolder, wantName: "Omitted", wantOK: true},
		{name: "unknown status", status: "Final", entityType: EntityTask, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.StatusInScope(tt.status, tt.entityType)
			if ok != tt.wantOK || got != tt.wantName {
				t.Errorf("StatusInScope(%q, %s) = %q, %v; want %q, %v",
					tt.status, tt.entityType, got, ok, tt.wantName, tt.wantOK)
			}
		})
	}
}

func TestFindChildBySlug(t *testing.T) {
	h := testHub(t)
	if e, ok := h.FindChildBySlug("f1", "SH 010"); !ok || e.ID != "f2" {
		t.Errorf("FindChildBySlug(f1, SH 010) = %v, %v; want f2", e, ok)
	}
	if _, ok := h.FindChildBySlug("f1", "sh020"); ok {
		t.Error("FindChildBySlug(f1, sh020) = true, want false")
	}
}

func TestPath(t *testing.T) {
	h := testHub(t)
	tests := []struct {
		id   string
		want string
	}{
		{id: "f1", want: "/sq01"},
		{id: "f2", want: "/sq01/SH_010"},
		{id: "t1", want: "/sq01/SH_010/animation"},
	}
	for _, tt := range tests {
		if got := h.Path(tt.id); got != tt.want {
			t.Errorf("Path(%s) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestAddTaskType(t *testing.T) {
	h := testHub(t)
	h.SetTaskTypes([]ayon.TaskTypeDef{{Name: "Animation"}})
	h.anatomyDirty = false

	h.AddTaskType(ayon.TaskTypeDef{Name: "animation"})
	if h.anatomyDirty {
		t.Error("AddTaskType with case-folded duplicate marked anatomy dirty")
	}
	h.AddTaskType(ayon.TaskTypeDef{Name: "Compositing"})
	if !h.anatomyDirty {
		t.Error("AddTaskType with new type did not mark anatomy dirty")
	}
	if len(h.TaskTypes()) != 2 {
		t.Errorf("TaskTypes() size = %d, want 2", len(h.TaskTypes()))
	}
}
