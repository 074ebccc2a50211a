package sync

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
)

// Object type names that never become hub folder types.
var ignoredFolderTypeNames = map[string]bool{
	"task":      true,
	"milestone": true,
}

// stateNameMapping maps tracker workflow states onto hub states.
var stateNameMapping = map[string]string{
	"Blocked":     "blocked",
	"Not Started": "not_started",
	"In Progress": "in_progress",
	"Done":        "done",
}

var nonWordRe = regexp.MustCompile(`\W+`)

// taskTypeShortName derives the hub short name of a task type:
// lowercased, non-word runs removed.
func taskTypeShortName(name string) string {
	return nonWordRe.ReplaceAllString(strings.ToLower(name), "")
}

// folderTypesFromSchema converts the schema's object types into hub
// folder types, tracker sort order preserved.
func folderTypesFromSchema(schema *ftrack.ProjectSchema) []ayon.FolderType {
	types := append([]ftrack.ObjectType(nil), schema.ObjectTypes...)
	sort.SliceStable(types, func(i, j int) bool { return types[i].Sort < types[j].Sort })
	var out []ayon.FolderType
	for _, ot := range types {
		if ignoredFolderTypeNames[strings.ToLower(ot.Name)] {
			continue
		}
		out = append(out, ayon.FolderType{Name: ot.Name})
	}
	return out
}

// taskTypesFromSchema converts the schema's task types.
func taskTypesFromSchema(schema *ftrack.ProjectSchema) []ayon.TaskTypeDef {
	types := append([]ftrack.TaskType(nil), schema.TaskTypeSchema.Types...)
	sort.SliceStable(types, func(i, j int) bool { return types[i].Sort < types[j].Sort })
	out := make([]ayon.TaskTypeDef, 0, len(types))
	for _, tt := range types {
		out = append(out, ayon.TaskTypeDef{
			Name:      tt.Name,
			ShortName: taskTypeShortName(tt.Name),
		})
	}
	return out
}

// statusesFromSchema merges every workflow schema of the project into
// hub status definitions with their scopes: task statuses from the
// task workflow (overrides included), product and version statuses
// from the asset version workflow, folder statuses from the
// per-object-type schemas. Every status also covers representations
// and workfiles, which have no tracker workflow of their own. A
// status appearing in several workflows accumulates scopes. Order
// follows the tracker sort value.
func statusesFromSchema(schema *ftrack.ProjectSchema) []ayon.StatusDef {
	type slot struct {
		status ftrack.Status
		scope  map[string]bool
	}
	slots := map[string]*slot{}
	order := []string{}
	add := func(st ftrack.Status, scope string) {
		s, ok := slots[st.Name]
		if !ok {
			s = &slot{status: st, scope: map[string]bool{}}
			slots[st.Name] = s
			order = append(order, st.Name)
		}
		s.scope[scope] = true
	}

	for _, st := range schema.TaskWorkflowSchema.Statuses {
		add(st, "task")
	}
	for _, override := range schema.TaskWorkflowOverrides {
		for _, st := range override.WorkflowSchema.Statuses {
			add(st, "task")
		}
	}
	for _, st := range schema.AssetVersionWorkflow.Statuses {
		add(st, "product")
		add(st, "version")
	}
	for _, objectSchema := range schema.Schemas {
		for _, st := range objectSchema.WorkflowSchema.Statuses {
			add(st, "folder")
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return slots[order[i]].status.Sort < slots[order[j]].status.Sort
	})

	out := make([]ayon.StatusDef, 0, len(order))
	for _, name := range order {
		s := slots[name]
		state, ok := stateNameMapping[s.status.State.Name]
		if !ok {
			state = "in_progress"
		}
		scopes := []string{"representation", "workfile"}
		for _, candidate := range []string{"folder", "task", "product", "version"} {
			if s.scope[candidate] {
				scopes = append(scopes, candidate)
			}
		}
		out = append(out, ayon.StatusDef{
			Name:  s.status.Name,
			State: state,
			Color: s.status.Color,
			Scope: scopes,
		})
	}
	return out
}
