package sync

import (
	"testing"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/hub"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

// syncFixture wires a FullSync with an in-memory hub tree and a
// hand-built tracker hierarchy, skipping the server round trips of
// preflight.
func syncFixture(t *testing.T, folders []ayon.FolderModel, tasks []ayon.TaskModel, contexts []ftrack.TypedContext) *FullSync {
	t.Helper()
	tree := hub.New(nil, "testproj", nil)
	tree.Populate(&ayon.ProjectModel{Name: "testproj", Active: true}, folders, tasks)

	s := NewFullSync(nil, &ftrack.Session{}, "testproj", mapping.MappingSettings{}, nil)
	s.tree = tree
	s.trackerProject = &ftrack.Project{ID: "proj-t", FullName: "testproj"}
	s.contexts = map[string]*ftrack.TypedContext{}
	s.childOrder = map[string][]string{}
	for i := range contexts {
		tc := &contexts[i]
		s.contexts[tc.ID] = tc
		s.childOrder[tc.ParentID] = append(s.childOrder[tc.ParentID], tc.ID)
	}
	s.objectTypes = []ftrack.ObjectType{
		{ID: "ot-folder", Name: "Folder"},
		{ID: "ot-shot", Name: "Shot"},
		{ID: "ot-task", Name: "Task"},
		{ID: "ot-mile", Name: "Milestone"},
	}
	s.objectTypeName = map[string]string{}
	for _, ot := range s.objectTypes {
		s.objectTypeName[ot.ID] = ot.Name
	}
	s.taskTypeName = map[string]string{"tt-anim": "Animation"}
	s.statusName = map[string]string{}
	return s
}

func TestMatchExistingCreates(t *testing.T) {
	s := syncFixture(t, nil, nil, []ftrack.TypedContext{
		{ID: "c1", Name: "Shot 010", ParentID: "proj-t", ObjectTypeID: "ot-shot"},
		{ID: "c2", Name: "animation", ParentID: "c1", ObjectTypeID: "ot-task", TypeID: "tt-anim"},
		{ID: "c3", Name: "delivery", ParentID: "proj-t", ObjectTypeID: "ot-mile"},
	})
	s.matchExisting()

	if s.stats.Created != 2 {
		t.Fatalf("stats.Created = %d, want 2 (milestone skipped)", s.stats.Created)
	}
	shotID, ok := s.ids.HubID("c1")
	if !ok {
		t.Fatal("tracker shot c1 not mapped")
	}
	shot, _ := s.tree.Get(shotID)
	if shot.Name != "Shot_010" || shot.Label != "Shot 010" || shot.SubType != "Shot" {
		t.Errorf("created shot = %q label %q type %q; want slugged name with raw label", shot.Name, shot.Label, shot.SubType)
	}
	taskID, ok := s.ids.HubID("c2")
	if !ok {
		t.Fatal("tracker task c2 not mapped")
	}
	task, _ := s.tree.Get(taskID)
	if task.Type != hub.EntityTask || task.SubType != "Animation" || task.ParentID != shotID {
		t.Errorf("created task = %+v; want Animation task under the shot", task)
	}
	if _, ok := s.ids.HubID("c3"); ok {
		t.Error("milestone c3 was mapped; want skipped")
	}
}

func TestMatchExistingPairsBySlug(t *testing.T) {
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f1", Name: "Shot_010", FolderType: "Folder", Active: false},
		},
		nil,
		[]ftrack.TypedContext{
			{ID: "c1", Name: "shot 010", ParentID: "proj-t", ObjectTypeID: "ot-shot"},
		},
	)
	s.matchExisting()

	if s.stats.Matched != 1 || s.stats.Created != 0 {
		t.Fatalf("stats = %+v, want one match and no creates", s.stats)
	}
	if s.stats.Updated != 1 {
		t.Errorf("stats.Updated = %d, want the reactivated folder counted", s.stats.Updated)
	}
	e, _ := s.tree.Get("f1")
	if !e.Active {
		t.Error("matched entity stayed inactive")
	}
	if e.SubType != "Shot" {
		t.Errorf("matched entity SubType = %q, want refreshed to Shot", e.SubType)
	}
	if id, _ := s.ids.HubID("c1"); id != "f1" {
		t.Errorf("c1 mapped to %q, want f1", id)
	}
}

func TestMatchExistingDuplicateSiblings(t *testing.T) {
	s := syncFixture(t, nil, nil, []ftrack.TypedContext{
		{ID: "c1", Name: "Shot 010", ParentID: "proj-t", ObjectTypeID: "ot-shot"},
		{ID: "c2", Name: "shot_010", ParentID: "proj-t", ObjectTypeID: "ot-shot"},
	})
	s.matchExisting()

	// Tracker order decides: the first sibling wins, the second is
	// reported and flagged.
	if _, ok := s.ids.HubID("c1"); !ok {
		t.Error("first sibling c1 not mapped")
	}
	if _, ok := s.ids.HubID("c2"); ok {
		t.Error("second sibling c2 mapped despite the name collision")
	}
	if len(s.report.DuplicatedNames) != 1 || s.report.DuplicatedNames[0].TrackerID != "c2" {
		t.Errorf("DuplicatedNames = %+v, want one entry for c2", s.report.DuplicatedNames)
	}
	if s.failed["c2"] == "" {
		t.Error("c2 not flagged as failed")
	}
}

func TestMatchExistingTypeMismatchRecreates(t *testing.T) {
	// The hub holds "comp" as a folder; the tracker says it is a task.
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f0", Name: "shots", FolderType: "Folder", Active: true},
			{ID: "f1", Name: "comp", FolderType: "Folder", ParentID: "f0", Active: true},
		},
		nil,
		[]ftrack.TypedContext{
			{ID: "c1", Name: "shots", ParentID: "proj-t", ObjectTypeID: "ot-folder"},
			{ID: "c2", Name: "comp", ParentID: "c1", ObjectTypeID: "ot-task", TypeID: "tt-anim"},
		},
	)
	s.matchExisting()

	if s.stats.Removed != 1 {
		t.Fatalf("stats.Removed = %d, want the mismatched folder removed", s.stats.Removed)
	}
	newID, ok := s.ids.HubID("c2")
	if !ok {
		t.Fatal("c2 not mapped after recreate")
	}
	if newID == "f1" {
		t.Fatal("c2 mapped onto the old folder id; want a fresh task")
	}
	e, _ := s.tree.Get(newID)
	if e.Type != hub.EntityTask {
		t.Errorf("recreated entity type = %s, want task", e.Type)
	}
	if _, ok := s.tree.Get("f1"); ok {
		t.Error("mismatched folder f1 still alive")
	}
}

func TestMatchImmutableRenamesTrackerBack(t *testing.T) {
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f1", Name: "sh010", FolderType: "Shot", Active: true, HasProducts: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "c1"}, OwnAttrib: []string{mapping.TrackerIDKey}},
		},
		nil,
		[]ftrack.TypedContext{
			{ID: "c1", Name: "sh010_renamed", ParentID: "proj-t", ObjectTypeID: "ot-shot"},
		},
	)
	s.matchImmutable()

	if id, _ := s.ids.HubID("c1"); id != "f1" {
		t.Fatalf("c1 mapped to %q, want pinned to f1", id)
	}
	// The hub name wins on a published subtree; the tracker side is
	// renamed back.
	if len(s.report.RenamedBack) != 1 {
		t.Errorf("RenamedBack = %+v, want one entry", s.report.RenamedBack)
	}
	if got := s.session.PendingOperations(); got != 1 {
		t.Errorf("PendingOperations() = %d, want the tracker rename recorded", got)
	}
	if s.contexts["c1"].Name != "sh010" {
		t.Errorf("tracker mirror name = %q, want sh010", s.contexts["c1"].Name)
	}
	if len(s.failed) != 0 {
		t.Errorf("failed = %v, want the reverted rename not flagged", s.failed)
	}
	e, _ := s.tree.Get("f1")
	if e.Name != "sh010" {
		t.Errorf("hub name = %q, want unchanged sh010", e.Name)
	}
}

func TestMatchImmutableMovesTrackerBack(t *testing.T) {
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f0", Name: "sq01", FolderType: "Folder", Active: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "c0"}, OwnAttrib: []string{mapping.TrackerIDKey}},
			{ID: "f1", Name: "sh010", FolderType: "Shot", ParentID: "f0", Active: true, HasProducts: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "c1"}, OwnAttrib: []string{mapping.TrackerIDKey}},
		},
		nil,
		[]ftrack.TypedContext{
			{ID: "c0", Name: "sq01", ParentID: "proj-t", ObjectTypeID: "ot-folder"},
			{ID: "c9", Name: "trash", ParentID: "proj-t", ObjectTypeID: "ot-folder"},
			// The tracker moved the published shot under another folder.
			{ID: "c1", Name: "sh010", ParentID: "c9", ObjectTypeID: "ot-shot"},
		},
	)
	s.matchImmutable()

	if len(s.report.MovedBack) != 1 {
		t.Fatalf("MovedBack = %+v, want one entry", s.report.MovedBack)
	}
	if s.contexts["c1"].ParentID != "c0" {
		t.Errorf("tracker mirror parent = %q, want reverted to c0", s.contexts["c1"].ParentID)
	}
	for _, id := range s.childOrder["c9"] {
		if id == "c1" {
			t.Error("c1 still listed under the old tracker parent")
		}
	}
	if got := s.session.PendingOperations(); got != 1 {
		t.Errorf("PendingOperations() = %d, want the tracker reparent recorded", got)
	}
}

func TestMatchImmutableRecoversBySlug(t *testing.T) {
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f1", Name: "sh_010", FolderType: "Shot", Active: true, HasProducts: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "gone"}, OwnAttrib: []string{mapping.TrackerIDKey}},
		},
		nil,
		[]ftrack.TypedContext{
			{ID: "c1", Name: "SH 010", ParentID: "proj-t", ObjectTypeID: "ot-shot"},
		},
	)
	s.matchImmutable()

	if id, _ := s.ids.HubID("c1"); id != "f1" {
		t.Errorf("c1 mapped to %q, want recovered via slug match", id)
	}
}

func TestMatchImmutableIgnoresTaskWithSameName(t *testing.T) {
	// A tracker task is never the counterpart of a published folder,
	// even with a matching name; the folder is recreated instead.
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f1", Name: "comp", FolderType: "Folder", Active: true, HasProducts: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "gone"}, OwnAttrib: []string{mapping.TrackerIDKey}},
		},
		nil,
		[]ftrack.TypedContext{
			{ID: "c1", Name: "comp", ParentID: "proj-t", ObjectTypeID: "ot-task", TypeID: "tt-anim"},
		},
	)
	s.matchImmutable()

	if _, ok := s.ids.HubID("c1"); ok {
		t.Error("published folder claimed a tracker task as its counterpart")
	}
	trackerID, ok := s.ids.TrackerID("f1")
	if !ok || trackerID == "c1" {
		t.Fatalf("f1 mapped to %q, want a freshly created tracker folder", trackerID)
	}
	if s.stats.Recreated != 1 {
		t.Errorf("stats.Recreated = %d, want 1", s.stats.Recreated)
	}
}

func TestMatchImmutableRecreatesLost(t *testing.T) {
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f1", Name: "sh010", FolderType: "Shot", Active: true, HasProducts: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "gone"}, OwnAttrib: []string{mapping.TrackerIDKey}},
		},
		nil,
		nil,
	)
	s.matchImmutable()
	s.matchExisting()
	s.deactivateUnmatched()

	trackerID, ok := s.ids.TrackerID("f1")
	if !ok {
		t.Fatal("lost published folder not bound to a recreated tracker entity")
	}
	tc, ok := s.contexts[trackerID]
	if !ok || tc.Name != "sh010" || tc.ParentID != "proj-t" {
		t.Fatalf("recreated context = %+v, want sh010 under the project", tc)
	}
	if tc.ObjectTypeID != "ot-shot" {
		t.Errorf("recreated object type = %q, want ot-shot", tc.ObjectTypeID)
	}
	if got := s.session.PendingOperations(); got != 1 {
		t.Errorf("PendingOperations() = %d, want the tracker create recorded", got)
	}
	if len(s.report.Recreated) != 1 {
		t.Errorf("Recreated = %+v, want one entry", s.report.Recreated)
	}
	// The published folder survives the unmatched sweep untouched.
	e, _ := s.tree.Get("f1")
	if !e.Active {
		t.Error("published folder deactivated by the unmatched sweep")
	}
}

func TestMatchImmutableUnreachableParent(t *testing.T) {
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f0", Name: "shots", FolderType: "Folder", Active: true},
			{ID: "f1", Name: "sh010", FolderType: "Shot", ParentID: "f0", Active: true, HasProducts: true},
		},
		nil,
		nil,
	)
	// Settle only the child; its parent has no tracker binding, so
	// the identity ends on the removed sentinel.
	f1, _ := s.tree.Get("f1")
	s.matchImmutableEntity(f1)

	if v, _ := f1.Attribs.Get(mapping.TrackerIDKey); v != mapping.RemovedIDValue {
		t.Errorf("tracker identity = %v, want removed sentinel", v)
	}
	if len(s.report.NotFound) != 1 {
		t.Errorf("NotFound = %+v, want one entry", s.report.NotFound)
	}

	// Sentinel or not, the settled folder is never deactivated.
	s.deactivateUnmatched()
	if !f1.Active {
		t.Error("published folder deactivated despite the sentinel identity")
	}
	unsettled, _ := s.tree.Get("f0")
	if unsettled.Active {
		t.Error("unmatched mutable parent not deactivated")
	}
}

func TestMatchImmutableWalksInactive(t *testing.T) {
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f1", Name: "sh010", FolderType: "Shot", Active: false, HasProducts: true,
				Attrib: ayon.Attrib{mapping.TrackerIDKey: "c1"}, OwnAttrib: []string{mapping.TrackerIDKey}},
		},
		nil,
		[]ftrack.TypedContext{
			{ID: "c1", Name: "sh010", ParentID: "proj-t", ObjectTypeID: "ot-shot"},
		},
	)
	s.matchImmutable()

	if id, _ := s.ids.HubID("c1"); id != "f1" {
		t.Errorf("c1 mapped to %q, want the deactivated published folder pinned", id)
	}
}

func TestDeactivateUnmatched(t *testing.T) {
	s := syncFixture(t,
		[]ayon.FolderModel{
			{ID: "f1", Name: "sh010", FolderType: "Shot", Active: true},
			{ID: "f2", Name: "sh020", FolderType: "Shot", Active: true},
		},
		nil,
		[]ftrack.TypedContext{
			{ID: "c1", Name: "sh010", ParentID: "proj-t", ObjectTypeID: "ot-shot"},
		},
	)
	s.matchExisting()
	s.deactivateUnmatched()

	matched, _ := s.tree.Get("f1")
	if !matched.Active {
		t.Error("matched folder deactivated")
	}
	unmatched, _ := s.tree.Get("f2")
	if unmatched.Active {
		t.Error("unmatched folder still active")
	}
	if s.stats.Deactivated != 1 {
		t.Errorf("stats.Deactivated = %d, want 1", s.stats.Deactivated)
	}
}

func TestTrackerPath(t *testing.T) {
	s := syncFixture(t, nil, nil, []ftrack.TypedContext{
		{ID: "c1", Name: "sq01", ParentID: "proj-t"},
		{ID: "c2", Name: "sh010", ParentID: "c1"},
	})
	if got := s.trackerPath("c2"); got != "/sq01/sh010" {
		t.Errorf("trackerPath(c2) = %q, want /sq01/sh010", got)
	}
	// Memoized answer survives.
	if got := s.trackerPath("c2"); got != "/sq01/sh010" {
		t.Errorf("memoized trackerPath(c2) = %q", got)
	}
}

func TestDateOnly(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "timestamp", in: "2024-03-01T12:30:00", want: "2024-03-01"},
		{name: "bare date", in: "2024-03-01", want: "2024-03-01"},
		{name: "empty", in: "", want: ""},
		{name: "short garbage", in: "2024", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dateOnly(tt.in); got != tt.want {
				t.Errorf("dateOnly(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeStored(t *testing.T) {
	tests := []struct {
		name    string
		hubName string
		value   any
		want    any
		wantOK  bool
	}{
		{name: "non fps passthrough", hubName: "handles", value: "8", want: "8", wantOK: true},
		{name: "fps float", hubName: "fps", value: 25.0, want: 25.0, wantOK: true},
		{name: "fps string rational", hubName: "fps", value: "24000/1001", want: 24000.0 / 1001.0, wantOK: true},
		{name: "fps comma", hubName: "fps", value: "23,976", want: 23.976, wantOK: true},
		{name: "fps garbage dropped", hubName: "fps", value: "fast", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeStored(tt.hubName, tt.value)
			if ok != tt.wantOK {
				t.Fatalf("normalizeStored() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && got != tt.want {
				t.Errorf("normalizeStored() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLabelFor(t *testing.T) {
	if got := labelFor("Shot 010", "Shot_010"); got != "Shot 010" {
		t.Errorf("labelFor changed name = %q, want raw name", got)
	}
	if got := labelFor("sh010", "sh010"); got != "" {
		t.Errorf("labelFor unchanged name = %q, want empty", got)
	}
}

func TestReportSummary(t *testing.T) {
	r := &Report{}
	if !r.Empty() {
		t.Fatal("empty report Empty() = false")
	}
	r.DuplicatedNames = append(r.DuplicatedNames, ReportItem{Name: "sh010", Detail: "collision"})
	if r.Empty() {
		t.Fatal("non-empty report Empty() = true")
	}
	summary := r.Summary()
	if summary == "" || summary == "sync finished without conflicts" {
		t.Errorf("Summary() = %q, want the conflict listed", summary)
	}
}
