package sync

import (
	"log/slog"
	"testing"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/hub"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

func TestAutoSyncEnabled(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		want  bool
	}{
		{name: "missing", attrs: map[string]any{}, want: false},
		{name: "bool on", attrs: map[string]any{mapping.AutoSyncAttr: true}, want: true},
		{name: "bool off", attrs: map[string]any{mapping.AutoSyncAttr: false}, want: false},
		{name: "string one", attrs: map[string]any{mapping.AutoSyncAttr: "1"}, want: true},
		{name: "string true folded", attrs: map[string]any{mapping.AutoSyncAttr: "True"}, want: true},
		{name: "string zero", attrs: map[string]any{mapping.AutoSyncAttr: "0"}, want: false},
		{name: "number", attrs: map[string]any{mapping.AutoSyncAttr: float64(1)}, want: true},
		{name: "unexpected type", attrs: map[string]any{mapping.AutoSyncAttr: []any{}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := &ftrack.Project{CustomAttributes: tt.attrs}
			if got := autoSyncEnabled(project); got != tt.want {
				t.Errorf("autoSyncEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaimant(t *testing.T) {
	tree := hub.New(nil, "testproj", nil)
	tree.Populate(
		&ayon.ProjectModel{Name: "testproj", Active: true},
		[]ayon.FolderModel{
			{ID: "f1", Name: "sh010", FolderType: "Shot", Active: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "c1"}, OwnAttrib: []string{mapping.TrackerIDKey}},
			{ID: "f2", Name: "sh010_copy", FolderType: "Shot", Active: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "dup"}, OwnAttrib: []string{mapping.TrackerIDKey}},
			{ID: "f3", Name: "sh010_copy2", FolderType: "Shot", Active: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "dup"}, OwnAttrib: []string{mapping.TrackerIDKey}},
			{ID: "f4", Name: "orphan", FolderType: "Shot", Active: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: mapping.RemovedIDValue}, OwnAttrib: []string{mapping.TrackerIDKey}},
		},
		nil,
	)
	r := &processRun{logger: slog.Default(), tree: tree}
	r.indexTree()

	if e, ok := r.claimant("c1"); !ok || e.ID != "f1" {
		t.Errorf("claimant(c1) = %v, %v; want f1", e, ok)
	}
	// Two claimants is ambiguous: nothing is returned.
	if e, ok := r.claimant("dup"); ok || e != nil {
		t.Errorf("claimant(dup) = %v, %v; want none", e, ok)
	}
	if _, ok := r.claimant("unknown"); ok {
		t.Error("claimant(unknown) = true")
	}
	// The removed sentinel never indexes.
	if _, ok := r.claimant(mapping.RemovedIDValue); ok {
		t.Error("claimant(removed sentinel) = true")
	}
}
