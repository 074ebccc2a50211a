package hub

import (
	"strings"

	"github.com/google/uuid"
)

// EntityType discriminates the tree node kinds.
type EntityType string

const (
	EntityProject EntityType = "project"
	EntityFolder  EntityType = "folder"
	EntityTask    EntityType = "task"
)

// entityBase is the scalar-field snapshot taken when an entity's
// baseline is locked.
type entityBase struct {
	name      string
	label     string
	subType   string
	parentID  string
	status    string
	active    bool
	thumbnail string
	assignees []string
}

// Entity is one node of the project tree.
type Entity struct {
	// Identity. ID is stable across commits.
	ID   string
	Type EntityType

	// Core fields.
	Name     string
	Label    string
	SubType  string // folder type or task type; empty on the project
	ParentID string // empty on the project
	Status   string
	Active   bool

	// Thumbnail is the hub-side thumbnail id; the sync never writes
	// it but must not clobber it either.
	Thumbnail string

	// Assignees is task-only.
	Assignees []string

	// Attribs carries the attribute bag with its own baseline.
	Attribs *Attributes

	created bool
	base    entityBase
}

// NewID mints a hub entity id: 32 lowercase hex chars.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsCreated reports whether the entity only exists locally.
func (e *Entity) IsCreated() bool {
	return e.created
}

// lock snapshots the scalar fields; attribute baselines are locked
// separately by the bag.
func (e *Entity) lock() {
	e.base = entityBase{
		name:      e.Name,
		label:     e.Label,
		subType:   e.SubType,
		parentID:  e.ParentID,
		status:    e.Status,
		active:    e.Active,
		thumbnail: e.Thumbnail,
		assignees: append([]string(nil), e.Assignees...),
	}
}

// fieldChanges returns the patch of scalar fields that differ from
// the locked baseline, keyed by server field name.
func (e *Entity) fieldChanges() map[string]any {
	out := map[string]any{}
	if e.Name != e.base.name {
		out["name"] = e.Name
	}
	if e.Label != e.base.label {
		out["label"] = e.Label
	}
	if e.SubType != e.base.subType {
		switch e.Type {
		case EntityFolder:
			out["folderType"] = e.SubType
		case EntityTask:
			out["taskType"] = e.SubType
		}
	}
	if e.ParentID != e.base.parentID {
		switch e.Type {
		case EntityFolder:
			out["parentId"] = e.ParentID
		case EntityTask:
			out["folderId"] = e.ParentID
		}
	}
	if e.Status != e.base.status {
		out["status"] = e.Status
	}
	if e.Active != e.base.active {
		out["active"] = e.Active
	}
	if e.Type == EntityTask && !equalStringSets(e.Assignees, e.base.assignees) {
		out["assignees"] = e.Assignees
	}
	return out
}

// Dirty reports whether any scalar field or attribute differs from
// the baseline.
func (e *Entity) Dirty() bool {
	if len(e.fieldChanges()) > 0 {
		return true
	}
	return len(e.Attribs.Changes()) > 0
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
		if seen[s] < 0 {
			return false
		}
	}
	return true
}

// Slugify normalizes an entity name for matching: runs of characters
// outside [A-Za-z0-9_.-] collapse to a single underscore and leading
// or trailing separators are trimmed. Case is preserved; comparisons
// fold it separately.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range name {
		valid := r == '.' || r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if !valid {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "_.-")
}

// SlugsEqual compares two names by their slugs, case-insensitively.
func SlugsEqual(a, b string) bool {
	return strings.EqualFold(Slugify(a), Slugify(b))
}
