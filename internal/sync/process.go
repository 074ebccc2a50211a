package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/events"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/hub"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

// Processor applies classified tracker event batches to the hub.
// One Processor serves many events; per-event state lives in a
// processRun.
type Processor struct {
	client   *ayon.Client
	session  *ftrack.Session
	settings mapping.MappingSettings
	logger   *slog.Logger
}

// NewProcessor builds the tracker-to-hub event processor.
func NewProcessor(client *ayon.Client, session *ftrack.Session, settings mapping.MappingSettings, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{client: client, session: session, settings: settings, logger: logger}
}

// NeedsFullSync reports whether the batch asks for a full pull
// instead of incremental work.
func (p *Processor) NeedsFullSync(cls events.Classification) bool {
	return cls.AutoSyncProject != ""
}

// RunFullSync performs the full pull for the tracker project named in
// the batch and returns its report.
func (p *Processor) RunFullSync(ctx context.Context, trackerProjectID string) (*Report, error) {
	project, err := p.session.ProjectByID(ctx, trackerProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: tracker project %s", ErrProjectNotFound, trackerProjectID)
	}
	fs := NewFullSync(p.client, p.session, project.FullName, p.settings, p.logger)
	return fs.Run(ctx)
}

// processRun is the per-event working state: the loaded hub tree,
// lazily filled caches, and the sets of entities whose tracker
// identity must be rewritten afterwards.
type processRun struct {
	p       *Processor
	logger  *slog.Logger
	project *ftrack.Project
	tree    *hub.Hub

	byTrackerID map[string][]*hub.Entity

	objectTypeName map[string]string
	taskTypeByID   map[string]ftrack.TaskType
	attrConfigs    []ftrack.CustomAttributeConfig
	attrsMapping   *mapping.CustomAttributesMapping

	// Tracker ids to back-propagate after the commit: created,
	// re-parented, re-mapped, and failed.
	touched map[string]bool
	failed  map[string]string
}

// ProcessEvent applies one classified batch. The project must have
// automatic synchronization enabled, otherwise the batch is dropped.
// Each phase runs under its own error boundary: a failing phase is
// logged and the rest still run, so one poisoned entity does not
// starve the batch.
func (p *Processor) ProcessEvent(ctx context.Context, cls events.Classification) error {
	if cls.Empty() || cls.ProjectID == "" {
		return nil
	}
	project, err := p.session.ProjectByID(ctx, cls.ProjectID)
	if err != nil {
		return fmt.Errorf("resolve tracker project: %w", err)
	}
	if project == nil {
		p.logger.Debug("dropping event for unknown tracker project", "trackerProjectId", cls.ProjectID)
		return nil
	}
	if !autoSyncEnabled(project) {
		p.logger.Debug("automatic sync disabled for project", "project", project.FullName)
		return nil
	}

	run := &processRun{
		p:       p,
		logger:  p.logger.With("project", project.FullName),
		project: project,
		touched: map[string]bool{},
		failed:  map[string]string{},
	}
	run.tree = hub.New(p.client, project.FullName, run.logger)
	if err := run.tree.Load(ctx); err != nil {
		return fmt.Errorf("load hub project: %w", err)
	}
	run.indexTree()

	phases := []struct {
		name string
		fn   func(context.Context, events.Classification) error
	}{
		{"create entities", run.processCreated},
		{"hierarchy changes", run.processHierarchyChanges},
		{"removed entities", run.processRemoved},
		{"attribute changes", run.processAttributeChanges},
	}
	for _, phase := range phases {
		if err := phase.fn(ctx, cls); err != nil {
			run.logger.Error("sync phase failed", "phase", phase.name, "error", err)
		}
	}

	if err := run.tree.Commit(ctx); err != nil {
		return fmt.Errorf("commit hub changes: %w", err)
	}
	if err := run.propagateIdentity(ctx); err != nil {
		run.logger.Error("tracker identity write-back failed", "error", err)
	}
	return nil
}

func autoSyncEnabled(project *ftrack.Project) bool {
	v, ok := project.CustomAttributes[mapping.AutoSyncAttr]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	case float64:
		return t != 0
	}
	return false
}

// indexTree builds the tracker-id claim index over live hub entities.
func (r *processRun) indexTree() {
	r.byTrackerID = map[string][]*hub.Entity{}
	for _, e := range r.tree.All() {
		id := attrString(e, mapping.TrackerIDKey)
		if id == "" || id == mapping.RemovedIDValue {
			continue
		}
		r.byTrackerID[id] = append(r.byTrackerID[id], e)
	}
}

// claimant returns the single hub entity mapped to a tracker id.
// ok is false both for zero and for more than one claimant; ambiguous
// mappings are left for the next full pull.
func (r *processRun) claimant(trackerID string) (*hub.Entity, bool) {
	claims := r.byTrackerID[trackerID]
	if len(claims) == 1 {
		return claims[0], true
	}
	if len(claims) > 1 {
		r.logger.Warn("tracker id claimed by multiple hub entities",
			"trackerId", trackerID, "claims", len(claims))
	}
	return nil, false
}

// Lazy tracker-side caches; each fetches at most once per run.

func (r *processRun) objectTypes(ctx context.Context) (map[string]string, error) {
	if r.objectTypeName != nil {
		return r.objectTypeName, nil
	}
	types, err := r.p.session.ObjectTypes(ctx)
	if err != nil {
		return nil, err
	}
	r.objectTypeName = map[string]string{}
	for _, ot := range types {
		r.objectTypeName[ot.ID] = ot.Name
	}
	return r.objectTypeName, nil
}

func (r *processRun) taskTypes(ctx context.Context) (map[string]ftrack.TaskType, error) {
	if r.taskTypeByID != nil {
		return r.taskTypeByID, nil
	}
	types, err := r.p.session.TaskTypes(ctx)
	if err != nil {
		return nil, err
	}
	r.taskTypeByID = map[string]ftrack.TaskType{}
	for _, tt := range types {
		r.taskTypeByID[tt.ID] = tt
	}
	return r.taskTypeByID, nil
}

func (r *processRun) attributes(ctx context.Context) (*mapping.CustomAttributesMapping, []ftrack.CustomAttributeConfig, error) {
	if r.attrsMapping != nil {
		return r.attrsMapping, r.attrConfigs, nil
	}
	configs, err := r.p.session.CustomAttributeConfigs(ctx)
	if err != nil {
		return nil, nil, err
	}
	hubAttrs, err := r.p.client.ListAttributes(ctx)
	if err != nil {
		return nil, nil, err
	}
	r.attrConfigs = configs
	r.attrsMapping = mapping.BuildAttributesMapping(
		hubAttributes(hubAttrs), configs, r.p.settings)
	return r.attrsMapping, r.attrConfigs, nil
}

// processCreated builds hub entities for tracker additions.
func (r *processRun) processCreated(ctx context.Context, cls events.Classification) error {
	for _, entity := range cls.Added {
		if _, err := r.ensureEntity(ctx, entity.EntityID); err != nil {
			r.logger.Warn("could not create entity from tracker addition",
				"trackerId", entity.EntityID, "error", err)
			r.failed[entity.EntityID] = "creation failed"
		}
	}
	return nil
}

// ensureEntity returns the hub entity for a tracker id, creating it
// (and, recursively, its missing ancestors) when absent. A tracker id
// claimed by several hub entities resolves to nothing.
func (r *processRun) ensureEntity(ctx context.Context, trackerID string) (*hub.Entity, error) {
	if e, ok := r.claimant(trackerID); ok {
		return e, nil
	}
	if len(r.byTrackerID[trackerID]) > 1 {
		return nil, fmt.Errorf("tracker id %s is ambiguous on the hub", trackerID)
	}

	contexts, err := r.p.session.TypedContextsByID(ctx, []string{trackerID})
	if err != nil {
		return nil, err
	}
	if len(contexts) == 0 {
		return nil, fmt.Errorf("tracker entity %s no longer exists", trackerID)
	}
	tc := contexts[0]

	objectTypes, err := r.objectTypes(ctx)
	if err != nil {
		return nil, err
	}
	typeName := objectTypes[tc.ObjectTypeID]
	if typeName == "Milestone" {
		return nil, fmt.Errorf("milestones are not synchronized")
	}
	isTask := typeName == "Task"

	var parent *hub.Entity
	if tc.ParentID == r.project.ID {
		if isTask {
			return nil, hub.ErrTaskOnProject
		}
		parent = r.tree.Project()
	} else {
		parent, err = r.ensureEntity(ctx, tc.ParentID)
		if err != nil {
			return nil, fmt.Errorf("create parent of %s: %w", tc.Name, err)
		}
	}

	slug := hub.Slugify(tc.Name)

	// A same-named hub entity is reused only when its tracker
	// identity is empty or points at a tracker entity that no
	// longer exists; a live claim means a genuine name collision.
	if existing, ok := r.tree.FindChildBySlug(parent.ID, tc.Name); ok {
		stored := attrString(existing, mapping.TrackerIDKey)
		stale := stored == "" || stored == mapping.RemovedIDValue || !r.trackerEntityExists(ctx, stored)
		if !stale {
			return nil, fmt.Errorf("name %q already taken under the same parent", tc.Name)
		}
		existing.Attribs.Set(mapping.TrackerIDKey, tc.ID)
		existing.Active = true
		r.byTrackerID[tc.ID] = []*hub.Entity{existing}
		r.touched[tc.ID] = true
		return existing, nil
	}

	var created *hub.Entity
	if isTask {
		taskTypes, err := r.taskTypes(ctx)
		if err != nil {
			return nil, err
		}
		typeDef := taskTypes[tc.TypeID]
		r.tree.AddTaskType(ayon.TaskTypeDef{
			Name:      typeDef.Name,
			ShortName: taskTypeShortName(typeDef.Name),
		})
		created, err = r.tree.AddTask(slug, typeDef.Name, parent.ID)
		if err != nil {
			return nil, err
		}
	} else {
		created = r.tree.AddFolder(slug, typeName, parent.ID)
	}
	created.Label = labelFor(tc.Name, slug)
	created.Attribs.Set(mapping.TrackerIDKey, tc.ID)
	if err := r.applyStoredAttributes(ctx, created, &tc); err != nil {
		r.logger.Warn("could not fetch attribute values for created entity",
			"trackerId", tc.ID, "error", err)
	}
	r.byTrackerID[tc.ID] = []*hub.Entity{created}
	r.touched[tc.ID] = true
	return created, nil
}

func (r *processRun) trackerEntityExists(ctx context.Context, trackerID string) bool {
	contexts, err := r.p.session.TypedContextsByID(ctx, []string{trackerID})
	if err != nil {
		// Assume it exists on query failure; reusing a hub entity
		// on flaky evidence re-maps identities wrongly.
		return true
	}
	return len(contexts) > 0
}

// applyStoredAttributes copies the tracker's stored custom attribute
// values onto a freshly created hub entity, hierarchical values
// preferred over per-type ones.
func (r *processRun) applyStoredAttributes(ctx context.Context, e *hub.Entity, tc *ftrack.TypedContext) error {
	attrsMapping, _, err := r.attributes(ctx)
	if err != nil {
		return err
	}
	values, err := r.p.session.CustomAttributeValues(ctx, []string{tc.ID}, attrsMapping.ConfigIDs())
	if err != nil {
		return err
	}
	byConfig := map[string]any{}
	for _, v := range values {
		byConfig[v.ConfigurationID] = v.Value
	}
	for _, entry := range attrsMapping.All() {
		conf := entry.ConfigFor(mapping.ConfEntityTypeContext, tc.ObjectTypeID)
		if conf == nil {
			continue
		}
		value, ok := byConfig[conf.ID]
		if !ok || value == nil {
			continue
		}
		if normalized, ok := normalizeStored(entry.HubName, value); ok {
			e.Attribs.Set(entry.HubName, normalized)
		}
	}
	if v := dateOnly(tc.StartDate); v != "" {
		e.Attribs.Set("startDate", v)
	}
	if v := dateOnly(tc.EndDate); v != "" {
		e.Attribs.Set("endDate", v)
	}
	if tc.Description != "" {
		e.Attribs.Set("description", tc.Description)
	}
	return nil
}

// hierarchyItem is one queued rename/move.
type hierarchyItem struct {
	event events.TrackerEntityEvent
}

// processHierarchyChanges drains renames and moves through a queue:
// an item whose new parent is not on the hub yet is requeued, and a
// full pass that resolves nothing fails every remaining item. That
// guard keeps a parent cycle in a malformed batch from looping
// forever.
func (r *processRun) processHierarchyChanges(ctx context.Context, cls events.Classification) error {
	var queue []hierarchyItem
	for _, entity := range cls.Updated {
		_, hasName := entity.Changes["name"]
		_, hasParent := entity.Changes["parent_id"]
		if hasName || hasParent {
			queue = append(queue, hierarchyItem{event: entity})
		}
	}

	for len(queue) > 0 {
		var requeued []hierarchyItem
		for _, item := range queue {
			retry, err := r.applyHierarchyChange(ctx, item.event)
			if err != nil {
				r.logger.Warn("hierarchy change rejected",
					"trackerId", item.event.EntityID, "error", err)
				r.failed[item.event.EntityID] = err.Error()
				continue
			}
			if retry {
				requeued = append(requeued, item)
			}
		}
		if len(requeued) == len(queue) {
			for _, item := range requeued {
				r.logger.Warn("hierarchy change unresolved after full pass",
					"trackerId", item.event.EntityID)
				r.failed[item.event.EntityID] = "unresolvable hierarchy change"
			}
			break
		}
		queue = requeued
	}
	return nil
}

// applyHierarchyChange applies one rename/move. retry is true when
// the change depends on a parent that may materialize later in the
// queue.
func (r *processRun) applyHierarchyChange(ctx context.Context, event events.TrackerEntityEvent) (retry bool, err error) {
	e, ok := r.claimant(event.EntityID)
	if !ok {
		if len(r.byTrackerID[event.EntityID]) > 1 {
			return false, fmt.Errorf("ambiguous hub mapping")
		}
		// Never seen on the hub; treat the change as a creation.
		if _, err := r.ensureEntity(ctx, event.EntityID); err != nil {
			return false, err
		}
		return false, nil
	}

	newName := e.Name
	if change, ok := event.Changes["name"]; ok {
		newName = hub.Slugify(change.NewString())
		if newName == "" {
			return false, fmt.Errorf("name %q slugs to nothing", change.NewString())
		}
	}
	newParentTracker := ""
	if change, ok := event.Changes["parent_id"]; ok {
		newParentTracker = change.NewString()
	}

	// A published subtree accepts only cosmetic renames: the new
	// name must already slug to the current hub name and the parent
	// must stay put.
	if e.Type == hub.EntityFolder && r.tree.ImmutableForHierarchy(e.ID) {
		if newParentTracker != "" || !strings.EqualFold(newName, e.Name) {
			return false, fmt.Errorf("subtree carries published output")
		}
	}

	if newParentTracker != "" {
		var parentHubID string
		if newParentTracker == r.project.ID {
			if e.Type == hub.EntityTask {
				return false, hub.ErrTaskOnProject
			}
			parentHubID = r.tree.Project().ID
		} else {
			parent, ok := r.claimant(newParentTracker)
			if !ok {
				if len(r.byTrackerID[newParentTracker]) > 1 {
					return false, fmt.Errorf("ambiguous parent mapping")
				}
				return true, nil
			}
			parentHubID = parent.ID
		}
		if err := r.tree.SetParent(e.ID, parentHubID); err != nil {
			return false, err
		}
	}

	if change, ok := event.Changes["name"]; ok {
		e.Name = newName
		e.Label = labelFor(change.NewString(), newName)
	}
	r.touched[event.EntityID] = true
	return false, nil
}

// processRemoved retires hub entities whose tracker counterpart was
// deleted. A same-named replacement under the same tracker parent
// re-maps instead; a published subtree only loses its identity
// attribute; everything else is deleted from the hub.
func (r *processRun) processRemoved(ctx context.Context, cls events.Classification) error {
	for _, event := range cls.Removed {
		e, ok := r.claimant(event.EntityID)
		if !ok {
			continue
		}
		if replacement := r.findReplacement(ctx, e, event); replacement != "" {
			e.Attribs.Set(mapping.TrackerIDKey, replacement)
			delete(r.byTrackerID, event.EntityID)
			r.byTrackerID[replacement] = []*hub.Entity{e}
			r.touched[replacement] = true
			continue
		}
		if e.Type == hub.EntityFolder && r.tree.ImmutableForHierarchy(e.ID) {
			e.Attribs.Set(mapping.TrackerIDKey, mapping.RemovedIDValue)
			continue
		}
		r.tree.Delete(e.ID)
		delete(r.byTrackerID, event.EntityID)
	}
	return nil
}

// findReplacement looks for another live tracker entity with the
// same name under the removed entity's tracker parent. This covers
// delete-and-recreate editing patterns without losing hub history.
func (r *processRun) findReplacement(ctx context.Context, e *hub.Entity, event events.TrackerEntityEvent) string {
	parentID := event.ParentID()
	if parentID == "" {
		return ""
	}
	siblings, err := r.p.session.ContextsByParent(ctx, parentID)
	if err != nil {
		r.logger.Warn("replacement lookup failed", "trackerId", event.EntityID, "error", err)
		return ""
	}
	for _, sibling := range siblings {
		if sibling.ID == event.EntityID {
			continue
		}
		if !hub.SlugsEqual(sibling.Name, e.Name) {
			continue
		}
		if len(r.byTrackerID[sibling.ID]) > 0 {
			continue
		}
		return sibling.ID
	}
	return ""
}

// processAttributeChanges propagates attribute edits and task type
// changes.
func (r *processRun) processAttributeChanges(ctx context.Context, cls events.Classification) error {
	for _, event := range cls.Updated {
		e, ok := r.claimant(event.EntityID)
		if !ok {
			continue
		}
		for key, change := range event.Changes {
			switch key {
			case "name", "parent_id":
				// Handled by the hierarchy phase.
			case "typeid":
				if err := r.applyTaskTypeChange(ctx, e, change); err != nil {
					r.logger.Warn("task type change failed",
						"trackerId", event.EntityID, "error", err)
				}
			case "startdate":
				if v := dateOnly(change.NewString()); v != "" {
					e.Attribs.Set("startDate", v)
				}
			case "enddate":
				if v := dateOnly(change.NewString()); v != "" {
					e.Attribs.Set("endDate", v)
				}
			case "description":
				e.Attribs.Set("description", change.NewString())
			default:
				if err := r.applyCustomAttributeChange(ctx, e, event, key, change); err != nil {
					r.logger.Warn("attribute change failed",
						"trackerId", event.EntityID, "key", key, "error", err)
				}
			}
		}
	}
	return nil
}

// applyTaskTypeChange follows a tracker task re-typing, extending the
// project's task types when the new one is unknown.
func (r *processRun) applyTaskTypeChange(ctx context.Context, e *hub.Entity, change events.TrackerChange) error {
	if e.Type != hub.EntityTask {
		return nil
	}
	taskTypes, err := r.taskTypes(ctx)
	if err != nil {
		return err
	}
	typeDef, ok := taskTypes[change.NewString()]
	if !ok {
		return fmt.Errorf("unknown task type id %q", change.NewString())
	}
	r.tree.AddTaskType(ayon.TaskTypeDef{
		Name:      typeDef.Name,
		ShortName: taskTypeShortName(typeDef.Name),
	})
	e.SubType = typeDef.Name
	return nil
}

// applyCustomAttributeChange converts and writes one custom
// attribute edit. Unsupported attribute types and unmapped keys are
// skipped silently; an emptied value unsets the hub attribute.
func (r *processRun) applyCustomAttributeChange(ctx context.Context, e *hub.Entity, event events.TrackerEntityEvent, key string, change events.TrackerChange) error {
	attrsMapping, configs, err := r.attributes(ctx)
	if err != nil {
		return err
	}

	var conf *ftrack.CustomAttributeConfig
	for i := range configs {
		c := &configs[i]
		if c.Key != key {
			continue
		}
		if c.IsHierarchical {
			conf = c
			break
		}
		if c.EntityType == mapping.ConfEntityTypeContext && c.ObjectTypeID == event.ObjectTypeID && conf == nil {
			conf = c
		}
	}
	if conf == nil {
		return nil
	}
	entry, ok := attrsMapping.ByConfigID(conf.ID)
	if !ok {
		return nil
	}

	raw := change.NewString()
	if raw == "" {
		e.Attribs.Unset(entry.HubName)
		return nil
	}
	if mapping.FPSKeys[entry.HubName] {
		fps, err := mapping.ConvertFPS(raw)
		if err != nil {
			return err
		}
		e.Attribs.Set(entry.HubName, fps)
		return nil
	}
	value, ok := mapping.Convert(conf, raw)
	if !ok {
		return nil
	}
	e.Attribs.Set(entry.HubName, value)
	return nil
}

// propagateIdentity rewrites tracker identity attributes for every
// entity this run created, re-parented, re-mapped, or failed, after
// verifying the tracker entities still exist.
func (r *processRun) propagateIdentity(ctx context.Context) error {
	ids := make([]string, 0, len(r.touched)+len(r.failed))
	for id := range r.touched {
		ids = append(ids, id)
	}
	for id := range r.failed {
		if !r.touched[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	alive, err := r.p.session.TypedContextsByID(ctx, ids)
	if err != nil {
		return err
	}
	liveSet := map[string]*ftrack.TypedContext{}
	for i := range alive {
		liveSet[alive[i].ID] = &alive[i]
	}

	_, configs, err := r.attributes(ctx)
	if err != nil {
		return err
	}
	confs := map[string]*ftrack.CustomAttributeConfig{}
	for i := range configs {
		c := &configs[i]
		if !c.IsHierarchical {
			continue
		}
		for _, key := range mapping.MandatoryTrackerAttrs {
			if c.Key == key {
				confs[key] = c
			}
		}
	}

	expected := map[string]map[string]any{}
	for trackerID := range r.touched {
		tc := liveSet[trackerID]
		if tc == nil {
			continue
		}
		e, ok := r.claimant(trackerID)
		if !ok {
			continue
		}
		row := map[string]any{
			mapping.HubIDAttr:      e.ID,
			mapping.SyncFailedAttr: false,
		}
		if e.Type != hub.EntityTask {
			row[mapping.HubPathAttr] = r.tree.Path(e.ID)
		}
		expected[trackerID] = row
	}
	for trackerID := range r.failed {
		if liveSet[trackerID] == nil {
			continue
		}
		expected[trackerID] = map[string]any{
			mapping.HubIDAttr:      "",
			mapping.HubPathAttr:    "",
			mapping.SyncFailedAttr: true,
		}
	}
	return writeIdentityAttributes(ctx, r.p.session, confs, expected)
}
