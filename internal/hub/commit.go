package hub

import (
	"context"
	"fmt"

	"github.com/ynput/ayon-ftrack/internal/ayon"
)

// PendingOperations returns the operations a Commit would submit, in
// submission order: creates parent-before-child, then updates, then
// deletes child-before-parent. The project anatomy patch is not an
// operation and is reported separately by AnatomyDirty.
func (h *Hub) PendingOperations() []ayon.Operation {
	var ops []ayon.Operation

	// Creates walk the tree breadth-first, so a created child always
	// follows its created parent.
	for _, e := range h.All() {
		if !e.created {
			continue
		}
		data := map[string]any{
			"name":   e.Name,
			"active": e.Active,
		}
		if e.Label != "" {
			data["label"] = e.Label
		}
		if e.Status != "" {
			data["status"] = e.Status
		}
		if attrs := ownAttribView(e.Attribs); len(attrs) > 0 {
			data["attrib"] = attrs
		}
		switch e.Type {
		case EntityFolder:
			data["folderType"] = e.SubType
			if e.ParentID != h.root.ID {
				data["parentId"] = e.ParentID
			}
		case EntityTask:
			data["taskType"] = e.SubType
			data["folderId"] = e.ParentID
			if len(e.Assignees) > 0 {
				data["assignees"] = e.Assignees
			}
		}
		ops = append(ops, ayon.Operation{
			Type:       ayon.OpCreate,
			EntityType: string(e.Type),
			EntityID:   e.ID,
			Data:       data,
		})
	}

	for _, e := range h.All() {
		if e.created {
			continue
		}
		data := e.fieldChanges()
		if parent, ok := data["parentId"]; ok && parent == h.root.ID {
			data["parentId"] = nil
		}
		if attrs := e.Attribs.Changes(); len(attrs) > 0 {
			data["attrib"] = attrs
		}
		if len(data) == 0 {
			continue
		}
		ops = append(ops, ayon.Operation{
			Type:       ayon.OpUpdate,
			EntityType: string(e.Type),
			EntityID:   e.ID,
			Data:       data,
		})
	}

	// Deletes go leaf-first: an entity whose removal-time parent is
	// also removed must be deleted before that parent.
	ordered := h.orderedRemovals()
	for _, e := range ordered {
		ops = append(ops, ayon.Operation{
			Type:       ayon.OpDelete,
			EntityType: string(e.Type),
			EntityID:   e.ID,
		})
	}
	return ops
}

// orderedRemovals returns removed entities children-before-parents.
func (h *Hub) orderedRemovals() []*Entity {
	depth := func(e *Entity) int {
		d := 0
		id := h.removedParent[e.ID]
		for id != "" && id != h.root.ID {
			if parent, ok := h.removed[id]; ok {
				d++
				id = h.removedParent[parent.ID]
				continue
			}
			if parent, ok := h.entities[id]; ok {
				id = parent.ParentID
				continue
			}
			break
		}
		return d
	}
	out := make([]*Entity, 0, len(h.removed))
	for _, e := range h.removed {
		out = append(out, e)
	}
	// Insertion sort by descending depth keeps deepest removals
	// first; the sets involved are small.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && depth(out[j]) > depth(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func ownAttribView(a *Attributes) map[string]any {
	out := map[string]any{}
	for k := range a.own {
		out[k] = a.current[k]
	}
	return out
}

// AnatomyDirty reports whether the project anatomy (folder types,
// task types, statuses) or the project attribute bag changed since
// the last commit.
func (h *Hub) AnatomyDirty() bool {
	return h.anatomyDirty || len(h.root.Attribs.Changes()) > 0
}

// Commit pushes every pending change to the server: first the
// project anatomy patch when dirty, then the entity operations batch.
// On success all baselines are re-locked; ids never change.
func (h *Hub) Commit(ctx context.Context) error {
	if h.AnatomyDirty() {
		patch := map[string]any{
			"folderTypes": h.folderTypes,
			"taskTypes":   h.taskTypes,
			"statuses":    h.statuses,
		}
		if attrs := h.root.Attribs.Changes(); len(attrs) > 0 {
			patch["attrib"] = attrs
		}
		if err := h.client.UpdateProject(ctx, h.project, patch); err != nil {
			return fmt.Errorf("commit project anatomy: %w", err)
		}
		h.anatomyDirty = false
		h.root.Attribs.Lock()
		h.root.lock()
	}

	ops := h.PendingOperations()
	if len(ops) == 0 {
		return nil
	}
	if _, err := h.client.PostOperations(ctx, h.project, ops); err != nil {
		return fmt.Errorf("commit %d entity operations: %w", len(ops), err)
	}

	for _, e := range h.entities {
		e.created = false
		e.lock()
		e.Attribs.Lock()
	}
	h.removed = map[string]*Entity{}
	h.removedParent = map[string]string{}
	return nil
}
