// Package events classifies the raw event payloads of both backends
// into the actions the sync workers act on.
package events

import (
	"encoding/json"
	"fmt"
)

// Tracker entity actions after classification.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionUpdate = "update"
)

// Base entity types the sync is interested in. Everything else in a
// tracker event batch is noise.
var interestBaseTypes = map[string]bool{
	"show": true,
	"task": true,
}

// Entity subtypes never synchronized.
var ignoredEntityTypes = map[string]bool{
	"Milestone": true,
}

// Change keys that never trigger hierarchy or attribute work in the
// tracker-to-hub direction; status has its own propagation path and
// thumbnails are not synced.
var ignoredChangeKeys = map[string]bool{
	"statusid": true,
	"thumbid":  true,
}

// TrackerChange is one changed key with both sides of the edit.
// Tracker values arrive stringly typed.
type TrackerChange struct {
	New any `json:"new"`
	Old any `json:"old"`
}

// NewString renders the new value as the tracker's string form; a
// nil value is the empty string.
func (c TrackerChange) NewString() string {
	return stringify(c.New)
}

// OldString renders the old value.
func (c TrackerChange) OldString() string {
	return stringify(c.Old)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// TrackerParent is one ancestor reference carried on an entity
// event.
type TrackerParent struct {
	EntityID string `json:"entityId"`
	ParentID string `json:"parentId"`
}

// TrackerEntityEvent is one entity entry of a leeched tracker event.
type TrackerEntityEvent struct {
	Action       string                   `json:"action"`
	BaseType     string                   `json:"entityType"`
	EntityType   string                   `json:"entity_type"`
	EntityID     string                   `json:"entityId"`
	ObjectTypeID string                   `json:"objectTypeId"`
	Keys         []string                 `json:"keys"`
	Changes      map[string]TrackerChange `json:"changes"`
	Parents      []TrackerParent          `json:"parents"`
}

// ParentID returns the entity's direct parent id from the parents
// chain.
func (e *TrackerEntityEvent) ParentID() string {
	for _, p := range e.Parents {
		if p.EntityID == e.EntityID {
			return p.ParentID
		}
	}
	return ""
}

// ProjectID returns the root of the parents chain, which is the
// tracker project.
func (e *TrackerEntityEvent) ProjectID() string {
	for _, p := range e.Parents {
		if p.ParentID == "" {
			return p.EntityID
		}
	}
	return ""
}

// TrackerEventData is the payload of one leeched tracker event.
type TrackerEventData struct {
	Entities []TrackerEntityEvent `json:"entities"`
}

// Classification is a tracker event batch split by action, with
// uninteresting entries already dropped.
type Classification struct {
	Added   []TrackerEntityEvent
	Removed []TrackerEntityEvent
	Updated []TrackerEntityEvent

	// AutoSyncProject is the tracker project id whose automatic
	// synchronization toggle flipped on in this batch, if any.
	AutoSyncProject string

	// ProjectID is the tracker project the batch belongs to, taken
	// from the first classified entity's ancestry.
	ProjectID string
}

// Empty reports whether nothing in the batch needs work.
func (c *Classification) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 &&
		len(c.Updated) == 0 && c.AutoSyncProject == ""
}

// ClassifyTracker filters and splits a tracker event payload. Move
// actions count as updates; ignored change keys are stripped, and an
// update left with no keys is dropped.
func ClassifyTracker(data TrackerEventData) Classification {
	var out Classification
	for _, entity := range data.Entities {
		if !interestBaseTypes[entity.BaseType] {
			continue
		}
		if ignoredEntityTypes[entity.EntityType] {
			continue
		}
		if entity.BaseType == "show" {
			if change, ok := entity.Changes["auto_sync_enabled"]; ok && change.NewString() == "1" {
				out.AutoSyncProject = entity.EntityID
			}
			if out.ProjectID == "" {
				out.ProjectID = entity.EntityID
			}
			continue
		}
		if out.ProjectID == "" {
			out.ProjectID = entity.ProjectID()
		}
		switch entity.Action {
		case "add":
			out.Added = append(out.Added, entity)
		case "remove":
			out.Removed = append(out.Removed, entity)
		case "update", "move":
			filtered := make(map[string]TrackerChange, len(entity.Changes))
			for key, change := range entity.Changes {
				if !ignoredChangeKeys[key] {
					filtered[key] = change
				}
			}
			if len(filtered) == 0 {
				continue
			}
			entity.Changes = filtered
			entity.Action = ActionUpdate
			out.Updated = append(out.Updated, entity)
		}
	}
	return out
}
