package hub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ynput/ayon-ftrack/internal/ayon"
)

// Hub is the in-memory project tree.
type Hub struct {
	client  *ayon.Client
	logger  *slog.Logger
	project string

	root     *Entity
	entities map[string]*Entity
	children map[string][]string

	// removed holds entities marked for deletion, keyed by id, with
	// the parent they hung under at removal time.
	removed       map[string]*Entity
	removedParent map[string]string

	// hasProducts marks folders with published output directly
	// beneath them; immutable caches the subtree answer.
	hasProducts map[string]bool
	immutable   map[string]bool

	// Project anatomy, patched through UpdateProject on commit.
	folderTypes  []ayon.FolderType
	taskTypes    []ayon.TaskTypeDef
	statuses     []ayon.StatusDef
	anatomyDirty bool
}

// New returns an unloaded hub for one project.
func New(client *ayon.Client, project string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		client:  client,
		logger:  logger,
		project: project,
	}
}

// Load fetches the project, its folders, and its tasks, and locks
// every baseline. It replaces any previously loaded state.
func (h *Hub) Load(ctx context.Context) error {
	project, err := h.client.GetProject(ctx, h.project)
	if err != nil {
		return fmt.Errorf("load project %s: %w", h.project, err)
	}
	folders, err := h.client.ListFolders(ctx, h.project)
	if err != nil {
		return fmt.Errorf("load folders of %s: %w", h.project, err)
	}
	tasks, err := h.client.ListTasks(ctx, h.project)
	if err != nil {
		return fmt.Errorf("load tasks of %s: %w", h.project, err)
	}
	h.Populate(project, folders, tasks)
	return nil
}

// Populate rebuilds the tree from already-fetched entity models and
// locks every baseline. Load is Populate plus the fetching; callers
// that batch their own requests can feed the models in directly.
func (h *Hub) Populate(project *ayon.ProjectModel, folders []ayon.FolderModel, tasks []ayon.TaskModel) {
	h.entities = make(map[string]*Entity, len(folders)+len(tasks)+1)
	h.children = make(map[string][]string)
	h.removed = map[string]*Entity{}
	h.removedParent = map[string]string{}
	h.hasProducts = make(map[string]bool, len(folders))
	h.immutable = map[string]bool{}

	h.root = &Entity{
		ID:      h.project,
		Type:    EntityProject,
		Name:    project.Name,
		Active:  project.Active,
		Attribs: NewAttributes(project.Attrib, ownKeysOf(project.Attrib)),
	}
	h.root.lock()
	h.entities[h.root.ID] = h.root

	h.folderTypes = project.FolderTypes
	h.taskTypes = project.TaskTypes
	h.statuses = project.Statuses
	h.anatomyDirty = false

	for _, f := range folders {
		parent := f.ParentID
		if parent == "" {
			parent = h.root.ID
		}
		e := &Entity{
			ID:        f.ID,
			Type:      EntityFolder,
			Name:      f.Name,
			Label:     f.Label,
			SubType:   f.FolderType,
			ParentID:  parent,
			Status:    f.Status,
			Active:    f.Active,
			Thumbnail: f.ThumbnailID,
			Attribs:   NewAttributes(f.Attrib, f.OwnAttrib),
		}
		e.lock()
		h.entities[e.ID] = e
		h.children[parent] = append(h.children[parent], e.ID)
		if f.HasProducts {
			h.hasProducts[e.ID] = true
		}
	}
	for _, t := range tasks {
		e := &Entity{
			ID:        t.ID,
			Type:      EntityTask,
			Name:      t.Name,
			Label:     t.Label,
			SubType:   t.TaskType,
			ParentID:  t.FolderID,
			Status:    t.Status,
			Active:    t.Active,
			Thumbnail: t.ThumbnailID,
			Assignees: t.Assignees,
			Attribs:   NewAttributes(t.Attrib, t.OwnAttrib),
		}
		e.lock()
		h.entities[e.ID] = e
		h.children[t.FolderID] = append(h.children[t.FolderID], e.ID)
	}
}

func ownKeysOf(attrib map[string]any) []string {
	keys := make([]string, 0, len(attrib))
	for k := range attrib {
		keys = append(keys, k)
	}
	return keys
}

// ProjectName returns the project the hub was loaded for.
func (h *Hub) ProjectName() string { return h.project }

// Project returns the root entity.
func (h *Hub) Project() *Entity { return h.root }

// Get returns a live (non-removed) entity by id.
func (h *Hub) Get(id string) (*Entity, bool) {
	e, ok := h.entities[id]
	return e, ok
}

// Children returns the live children of an entity, in insertion
// order.
func (h *Hub) Children(id string) []*Entity {
	ids := h.children[id]
	out := make([]*Entity, 0, len(ids))
	for _, cid := range ids {
		if e, ok := h.entities[cid]; ok {
			out = append(out, e)
		}
	}
	return out
}

// All returns every live entity, the project excluded, in
// breadth-first order from the root.
func (h *Hub) All() []*Entity {
	var out []*Entity
	queue := []string{h.root.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range h.Children(id) {
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out
}

// AddFolder creates a new folder entity under parentID.
func (h *Hub) AddFolder(name, folderType, parentID string) *Entity {
	e := &Entity{
		ID:       NewID(),
		Type:     EntityFolder,
		Name:     name,
		SubType:  folderType,
		ParentID: parentID,
		Active:   true,
		Attribs:  NewAttributes(nil, nil),
		created:  true,
	}
	h.entities[e.ID] = e
	h.children[parentID] = append(h.children[parentID], e.ID)
	h.invalidateUp(parentID)
	return e
}

// ErrTaskOnProject reports an attempt to hang a task directly on the
// project root, which the hub's data model forbids.
var ErrTaskOnProject = fmt.Errorf("hub: a task cannot be parented to the project")

// AddTask creates a new task entity under the folder parentID.
func (h *Hub) AddTask(name, taskType, parentID string) (*Entity, error) {
	if parentID == h.root.ID {
		return nil, ErrTaskOnProject
	}
	e := &Entity{
		ID:       NewID(),
		Type:     EntityTask,
		Name:     name,
		SubType:  taskType,
		ParentID: parentID,
		Active:   true,
		Attribs:  NewAttributes(nil, nil),
		created:  true,
	}
	h.entities[e.ID] = e
	h.children[parentID] = append(h.children[parentID], e.ID)
	return e, nil
}

// SetParent moves an entity under a new parent. Moving a task onto
// the project root is rejected.
func (h *Hub) SetParent(id, parentID string) error {
	e, ok := h.entities[id]
	if !ok {
		return fmt.Errorf("hub: unknown entity %s", id)
	}
	if e.Type == EntityTask && parentID == h.root.ID {
		return ErrTaskOnProject
	}
	if e.ParentID == parentID {
		return nil
	}
	old := e.ParentID
	h.children[old] = removeID(h.children[old], id)
	e.ParentID = parentID
	h.children[parentID] = append(h.children[parentID], id)
	h.invalidateUp(old)
	h.invalidateUp(parentID)
	h.invalidateDown(id)
	return nil
}

// Delete marks an entity and its whole subtree as removed. Removing
// an entity created locally simply discards it.
func (h *Hub) Delete(id string) {
	e, ok := h.entities[id]
	if !ok {
		return
	}
	for _, child := range h.Children(id) {
		h.Delete(child.ID)
	}
	parent := e.ParentID
	h.children[parent] = removeID(h.children[parent], id)
	delete(h.entities, id)
	if !e.created {
		h.removed[id] = e
		h.removedParent[id] = parent
	}
	h.invalidateUp(parent)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// ImmutableForHierarchy reports whether the entity or any descendant
// carries published output. Answers are cached until a structural
// change touches the subtree.
func (h *Hub) ImmutableForHierarchy(id string) bool {
	if v, ok := h.immutable[id]; ok {
		return v
	}
	result := h.hasProducts[id]
	if !result {
		for _, child := range h.Children(id) {
			if h.ImmutableForHierarchy(child.ID) {
				result = true
				break
			}
		}
	}
	h.immutable[id] = result
	return result
}

// invalidateUp drops cached immutability from id up to the root.
func (h *Hub) invalidateUp(id string) {
	for id != "" {
		delete(h.immutable, id)
		e, ok := h.entities[id]
		if !ok {
			return
		}
		id = e.ParentID
	}
}

// invalidateDown drops cached immutability for id's whole subtree.
func (h *Hub) invalidateDown(id string) {
	delete(h.immutable, id)
	for _, child := range h.Children(id) {
		h.invalidateDown(child.ID)
	}
}

// SetFolderTypes replaces the project's folder type anatomy.
func (h *Hub) SetFolderTypes(types []ayon.FolderType) {
	h.folderTypes = types
	h.anatomyDirty = true
}

// SetTaskTypes replaces the project's task type anatomy.
func (h *Hub) SetTaskTypes(types []ayon.TaskTypeDef) {
	h.taskTypes = types
	h.anatomyDirty = true
}

// TaskTypes returns the current task type anatomy.
func (h *Hub) TaskTypes() []ayon.TaskTypeDef { return h.taskTypes }

// AddTaskType appends one task type when it is not present yet.
func (h *Hub) AddTaskType(t ayon.TaskTypeDef) {
	for _, existing := range h.taskTypes {
		if strings.EqualFold(existing.Name, t.Name) {
			return
		}
	}
	h.taskTypes = append(h.taskTypes, t)
	h.anatomyDirty = true
}

// SetStatuses replaces the project's status anatomy.
func (h *Hub) SetStatuses(statuses []ayon.StatusDef) {
	h.statuses = statuses
	h.anatomyDirty = true
}

// Statuses returns the current status anatomy.
func (h *Hub) Statuses() []ayon.StatusDef { return h.statuses }

// StatusInScope reports whether a status of the given name may be
// set on the given entity type ("folder" or "task"), matching names
// case-insensitively. The returned name carries the anatomy's exact
// casing.
func (h *Hub) StatusInScope(name string, entityType EntityType) (string, bool) {
	scope := string(entityType)
	for _, st := range h.statuses {
		if !strings.EqualFold(st.Name, name) {
			continue
		}
		if len(st.Scope) == 0 {
			return st.Name, true
		}
		for _, s := range st.Scope {
			if s == scope {
				return st.Name, true
			}
		}
	}
	return "", false
}

// FindChildBySlug returns the live child of parentID whose slugified
// name matches, case-insensitively.
func (h *Hub) FindChildBySlug(parentID, name string) (*Entity, bool) {
	for _, child := range h.Children(parentID) {
		if SlugsEqual(child.Name, name) {
			return child, true
		}
	}
	return nil, false
}

// Path returns the slash-joined folder path of an entity, the project
// excluded. Tasks contribute their own name as the last segment.
func (h *Hub) Path(id string) string {
	var parts []string
	for id != "" && id != h.root.ID {
		e, ok := h.entities[id]
		if !ok {
			break
		}
		parts = append(parts, e.Name)
		id = e.ParentID
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}
