package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/events"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

// Transmitter propagates hub entity events back to the tracker:
// status, assignee, and attribute changes, renames, and mirrored
// comments.
type Transmitter struct {
	client   *ayon.Client
	session  *ftrack.Session
	settings mapping.MappingSettings
	logger   *slog.Logger
}

// NewTransmitter builds the hub-to-tracker propagator.
func NewTransmitter(client *ayon.Client, session *ftrack.Session, settings mapping.MappingSettings, logger *slog.Logger) *Transmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transmitter{client: client, session: session, settings: settings, logger: logger}
}

// hubEntity is the transmitter's uniform view over folder, task, and
// version entities.
type hubEntity struct {
	kind         string // "folder", "task", "version"
	id           string
	name         string
	taskType     string
	trackerID    string
	attribs      map[string]any
	trackerType  string // tracker entity type for operations
	objectTypeID string // filled from the tracker entity
}

type entityEventPayload struct {
	OldValue json.RawMessage `json:"oldValue"`
	NewValue json.RawMessage `json:"newValue"`
}

// HandleEvent processes one claimed hub entity event. Topics outside
// events.SourceTopics are skipped, as are events about entities
// without a tracker counterpart; both are normal states.
func (t *Transmitter) HandleEvent(ctx context.Context, event *ayon.Event) error {
	if !events.IsSourceTopic(event.Topic) {
		t.logger.Debug("hub topic not consumed", "topic", event.Topic)
		return nil
	}
	topic, err := events.ParseHubTopic(event.Topic)
	if err != nil {
		return err
	}
	var summary struct {
		EntityID string `json:"entityId"`
	}
	if err := json.Unmarshal(event.Summary, &summary); err != nil || summary.EntityID == "" {
		return fmt.Errorf("event %s has no entity id in summary", event.ID)
	}
	var payload entityEventPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode payload of %s: %w", event.ID, err)
		}
	}

	entity, err := t.resolveEntity(ctx, event.Project, topic.EntityType, summary.EntityID)
	if err != nil {
		return err
	}
	if entity == nil || entity.trackerID == "" || entity.trackerID == mapping.RemovedIDValue {
		t.logger.Debug("entity has no tracker counterpart, skipping",
			"project", event.Project, "entity", summary.EntityID, "topic", event.Topic)
		return nil
	}

	switch topic.UpdateKey() {
	case "name":
		return t.pushRename(ctx, entity, payload)
	case "status":
		return t.pushStatus(ctx, event.Project, entity, payload)
	case "assignees":
		return t.pushAssignees(ctx, entity, payload)
	case "attrib":
		return t.pushAttribs(ctx, entity, payload)
	}
	t.logger.Debug("unhandled hub topic", "topic", event.Topic)
	return nil
}

func (t *Transmitter) resolveEntity(ctx context.Context, project, entityType, id string) (*hubEntity, error) {
	out := &hubEntity{kind: entityType, id: id}
	switch entityType {
	case "folder":
		model, err := t.client.GetFolder(ctx, project, id)
		if err != nil {
			return nil, err
		}
		out.name = model.Name
		out.attribs = model.Attrib
	case "task":
		model, err := t.client.GetTask(ctx, project, id)
		if err != nil {
			return nil, err
		}
		out.name = model.Name
		out.taskType = model.TaskType
		out.attribs = model.Attrib
	case "version":
		model, err := t.client.GetVersion(ctx, project, id)
		if err != nil {
			return nil, err
		}
		out.attribs = model.Attrib
		out.trackerType = "AssetVersion"
	default:
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}
	if v, ok := out.attribs[mapping.TrackerIDKey]; ok {
		out.trackerID, _ = v.(string)
	}
	if out.trackerType == "" {
		out.trackerType = ftrack.EntityTypeTypedContext
		contexts, err := t.session.TypedContextsByID(ctx, []string{out.trackerID})
		if err != nil {
			return nil, err
		}
		if len(contexts) == 0 {
			return nil, nil
		}
		out.objectTypeID = contexts[0].ObjectTypeID
	}
	return out, nil
}

// pushRename follows a hub rename on the tracker entity.
func (t *Transmitter) pushRename(ctx context.Context, entity *hubEntity, payload entityEventPayload) error {
	var newName string
	if err := json.Unmarshal(payload.NewValue, &newName); err != nil || newName == "" {
		return fmt.Errorf("rename payload carries no name")
	}
	t.session.Update(entity.trackerType, []string{entity.trackerID},
		map[string]any{"name": newName})
	return t.session.Commit(ctx)
}

// pushStatus sets the tracker status matching the hub status by
// name, but only when that status is valid for the entity under the
// project's workflow schemas. No valid status means no change.
func (t *Transmitter) pushStatus(ctx context.Context, project string, entity *hubEntity, payload entityEventPayload) error {
	var newStatus string
	if err := json.Unmarshal(payload.NewValue, &newStatus); err != nil || newStatus == "" {
		return fmt.Errorf("status payload carries no status name")
	}

	trackerProject, err := t.session.ProjectByName(ctx, project)
	if err != nil {
		return err
	}
	if trackerProject == nil {
		return fmt.Errorf("%w: %s on tracker", ErrProjectNotFound, project)
	}
	schema, err := t.session.ProjectSchemaByID(ctx, trackerProject.ProjectSchemaID)
	if err != nil {
		return err
	}
	if schema == nil {
		return fmt.Errorf("project schema %s not found", trackerProject.ProjectSchemaID)
	}

	valid := t.validStatuses(ctx, schema, entity)
	for _, st := range valid {
		if strings.EqualFold(st.Name, newStatus) {
			t.session.Update(entity.trackerType, []string{entity.trackerID},
				map[string]any{"status_id": st.ID})
			return t.session.Commit(ctx)
		}
	}
	t.logger.Info("status not valid for tracker entity, skipping",
		"status", newStatus, "trackerId", entity.trackerID)
	return nil
}

// validStatuses picks the workflow statuses applicable to the
// entity: the version workflow for versions, the task workflow with
// per-type overrides for tasks, and the object type's schema for
// folders.
func (t *Transmitter) validStatuses(ctx context.Context, schema *ftrack.ProjectSchema, entity *hubEntity) []ftrack.Status {
	switch entity.kind {
	case "version":
		return schema.AssetVersionWorkflow.Statuses

	case "task":
		contexts, err := t.session.TypedContextsByID(ctx, []string{entity.trackerID})
		if err == nil && len(contexts) == 1 {
			for _, override := range schema.TaskWorkflowOverrides {
				if override.TypeID == contexts[0].TypeID {
					return override.WorkflowSchema.Statuses
				}
			}
		}
		return schema.TaskWorkflowSchema.Statuses

	default:
		for _, objectSchema := range schema.Schemas {
			if objectSchema.ObjectTypeID == entity.objectTypeID {
				return objectSchema.WorkflowSchema.Statuses
			}
		}
		return nil
	}
}

// pushAssignees reconciles tracker assignments with the hub's
// assignee list. Hub users without a tracker counterpart are
// ignored.
func (t *Transmitter) pushAssignees(ctx context.Context, entity *hubEntity, payload entityEventPayload) error {
	var newNames []string
	if err := json.Unmarshal(payload.NewValue, &newNames); err != nil {
		return fmt.Errorf("assignees payload is not a name list")
	}

	trackerUsers, err := t.session.ActiveUsers(ctx)
	if err != nil {
		return err
	}
	hubUsers, err := t.client.ListUsers(ctx)
	if err != nil {
		return err
	}
	userMap := mapping.MapUsers(trackerUsers, mappingUsers(hubUsers))
	trackerIDByName := map[string]string{}
	for trackerID, hubName := range userMap {
		if hubName != "" {
			trackerIDByName[hubName] = trackerID
		}
	}

	wanted := map[string]bool{}
	for _, name := range newNames {
		if trackerID, ok := trackerIDByName[name]; ok {
			wanted[trackerID] = true
		}
	}

	assignments, err := t.session.Assignments(ctx, []string{entity.trackerID})
	if err != nil {
		return err
	}
	current := map[string]string{}
	for _, a := range assignments {
		current[a.ResourceID] = a.ID
	}

	for trackerUserID := range wanted {
		if _, ok := current[trackerUserID]; !ok {
			t.session.Create(ftrack.EntityTypeAppointment, map[string]any{
				"context_id":  entity.trackerID,
				"resource_id": trackerUserID,
				"type":        "assignment",
			})
		}
	}
	for trackerUserID, appointmentID := range current {
		if !wanted[trackerUserID] {
			t.session.Delete(ftrack.EntityTypeAppointment, []string{appointmentID})
		}
	}
	if t.session.PendingOperations() == 0 {
		return nil
	}
	return t.session.Commit(ctx)
}

// Hub attributes mapped onto built-in tracker fields rather than
// custom attributes.
var builtinAttrFields = map[string]string{
	"startDate":   "start_date",
	"endDate":     "end_date",
	"description": "description",
}

// pushAttribs writes changed hub attributes to the tracker: schedule
// and description fields directly, everything else through the custom
// attribute mapping. A nil value on a hierarchical attribute deletes
// the tracker value row; on a standard attribute the entity's current
// hub value substitutes, so the tracker never loses a value the hub
// still shows through inheritance.
func (t *Transmitter) pushAttribs(ctx context.Context, entity *hubEntity, payload entityEventPayload) error {
	var newValues map[string]any
	if err := json.Unmarshal(payload.NewValue, &newValues); err != nil {
		return fmt.Errorf("attrib payload is not an object")
	}

	configs, err := t.session.CustomAttributeConfigs(ctx)
	if err != nil {
		return err
	}
	hubAttrs, err := t.client.ListAttributes(ctx)
	if err != nil {
		return err
	}
	attrsMapping := mapping.BuildAttributesMapping(
		hubAttributes(hubAttrs), configs, t.settings)

	fieldPatch := map[string]any{}
	for key, value := range newValues {
		if field, ok := builtinAttrFields[key]; ok {
			fieldPatch[field] = value
			continue
		}
		if entity.kind == "version" {
			continue
		}
		entry, ok := attrsMapping.Get(key)
		if !ok {
			continue
		}
		conf := entry.ConfigFor(mapping.ConfEntityTypeContext, entity.objectTypeID)
		if conf == nil {
			continue
		}
		if err := t.pushOneAttr(ctx, entity, key, conf, value); err != nil {
			t.logger.Warn("custom attribute write failed",
				"key", key, "trackerId", entity.trackerID, "error", err)
		}
	}
	if len(fieldPatch) > 0 {
		t.session.Update(entity.trackerType, []string{entity.trackerID}, fieldPatch)
	}
	if t.session.PendingOperations() == 0 {
		return nil
	}
	return t.session.Commit(ctx)
}

func (t *Transmitter) pushOneAttr(ctx context.Context, entity *hubEntity, key string, conf *ftrack.CustomAttributeConfig, value any) error {
	if value == nil {
		if conf.IsHierarchical {
			t.session.Delete(ftrack.EntityTypeContextAttrValue,
				[]string{entity.trackerID, conf.ID})
			return nil
		}
		// The hub fell back to an inherited value; mirror that
		// effective value instead of blanking the tracker.
		value = entity.attribs[key]
		if value == nil {
			return nil
		}
	}

	rows, err := t.session.CustomAttributeValues(ctx,
		[]string{entity.trackerID}, []string{conf.ID})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		t.session.Update(ftrack.EntityTypeContextAttrValue,
			[]string{entity.trackerID, conf.ID},
			map[string]any{"value": value})
		return nil
	}
	t.session.Create(ftrack.EntityTypeContextAttrValue, map[string]any{
		"entity_id":        entity.trackerID,
		"configuration_id": conf.ID,
		"value":            value,
	})
	return nil
}
