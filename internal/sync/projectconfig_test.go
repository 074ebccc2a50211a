package sync

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
)

func TestTaskTypeShortName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "single word", in: "Animation", want: "animation"},
		{name: "spaces removed", in: "FX Simulation", want: "fxsimulation"},
		{name: "punctuation removed", in: "Look-Dev", want: "lookdev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := taskTypeShortName(tt.in); got != tt.want {
				t.Errorf("taskTypeShortName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFolderTypesFromSchema(t *testing.T) {
	schema := &ftrack.ProjectSchema{
		ObjectTypes: []ftrack.ObjectType{
			{ID: "o3", Name: "Shot", Sort: 3},
			{ID: "o1", Name: "Folder", Sort: 1},
			{ID: "o4", Name: "Task", Sort: 4},
			{ID: "o5", Name: "Milestone", Sort: 5},
			{ID: "o2", Name: "Sequence", Sort: 2},
		},
	}
	got := folderTypesFromSchema(schema)
	want := []ayon.FolderType{
		{Name: "Folder"},
		{Name: "Sequence"},
		{Name: "Shot"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("folderTypesFromSchema() mismatch (-want +got):\n%s", diff)
	}
}

func TestTaskTypesFromSchema(t *testing.T) {
	schema := &ftrack.ProjectSchema{
		TaskTypeSchema: ftrack.TypeSchema{Types: []ftrack.TaskType{
			{ID: "t2", Name: "FX Simulation", Sort: 2},
			{ID: "t1", Name: "Animation", Sort: 1},
		}},
	}
	got := taskTypesFromSchema(schema)
	want := []ayon.TaskTypeDef{
		{Name: "Animation", ShortName: "animation"},
		{Name: "FX Simulation", ShortName: "fxsimulation"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("taskTypesFromSchema() mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusesFromSchema(t *testing.T) {
	inProgress := ftrack.Status{ID: "s1", Name: "In Progress", Sort: 2, State: ftrack.State{Name: "In Progress"}}
	ready := ftrack.Status{ID: "s2", Name: "Ready", Sort: 1, State: ftrack.State{Name: "Not Started"}}
	approved := ftrack.Status{ID: "s3", Name: "Approved", Sort: 3, State: ftrack.State{Name: "Done"}}
	omitted := ftrack.Status{ID: "s4", Name: "Omitted", Sort: 4, State: ftrack.State{Name: "Blocked"}}
	odd := ftrack.Status{ID: "s5", Name: "Odd", Sort: 5, State: ftrack.State{Name: "Weird"}}

	schema := &ftrack.ProjectSchema{
		TaskWorkflowSchema: ftrack.WorkflowSchema{Statuses: []ftrack.Status{ready, inProgress}},
		TaskWorkflowOverrides: []ftrack.SchemaStatusOverride{
			{TypeID: "tt1", WorkflowSchema: ftrack.WorkflowSchema{Statuses: []ftrack.Status{omitted}}},
		},
		AssetVersionWorkflow: ftrack.WorkflowSchema{Statuses: []ftrack.Status{approved, inProgress}},
		Schemas: []ftrack.Schema{
			{ObjectTypeID: "o1", WorkflowSchema: ftrack.WorkflowSchema{Statuses: []ftrack.Status{ready, odd}}},
		},
	}

	got := statusesFromSchema(schema)
	// Representations and workfiles have no tracker workflow, so every
	// status covers them; version-workflow statuses cover both
	// products and versions.
	want := []ayon.StatusDef{
		{Name: "Ready", State: "not_started", Scope: []string{"representation", "workfile", "folder", "task"}},
		{Name: "In Progress", State: "in_progress", Scope: []string{"representation", "workfile", "task", "product", "version"}},
		{Name: "Approved", State: "done", Scope: []string{"representation", "workfile", "product", "version"}},
		{Name: "Omitted", State: "blocked", Scope: []string{"representation", "workfile", "task"}},
		// Unknown workflow states fall back to in_progress.
		{Name: "Odd", State: "in_progress", Scope: []string{"representation", "workfile", "folder"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("statusesFromSchema() mismatch (-want +got):\n%s", diff)
	}
}
