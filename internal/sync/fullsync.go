package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ynput/ayon-ftrack/internal/ayon"
	"github.com/ynput/ayon-ftrack/internal/ftrack"
	"github.com/ynput/ayon-ftrack/internal/hub"
	"github.com/ynput/ayon-ftrack/internal/mapping"
)

// ErrProjectNotFound is returned when the project is missing on
// either side.
var ErrProjectNotFound = errors.New("sync: project not found")

// MissingAttributesError lists mandatory tracker custom attributes
// absent from the server. A full pull cannot run without them.
type MissingAttributesError struct {
	Missing []string
}

func (e *MissingAttributesError) Error() string {
	return fmt.Sprintf("sync: mandatory tracker custom attributes missing: %s",
		strings.Join(e.Missing, ", "))
}

// Stats counts what one run did. Recreated counts tracker-side
// creations for published hub folders; everything else counts hub
// entities.
type Stats struct {
	Matched     int
	Created     int
	Updated     int
	Deactivated int
	Removed     int
	Recreated   int
}

// FullSync performs one full project pull from the tracker into the
// hub. A FullSync is single-use: build one per run.
type FullSync struct {
	client   *ayon.Client
	session  *ftrack.Session
	project  string
	settings mapping.MappingSettings
	logger   *slog.Logger

	tree   *hub.Hub
	ids    *mapping.IDMapping
	report *Report
	stats  Stats

	trackerProject *ftrack.Project
	contexts       map[string]*ftrack.TypedContext
	childOrder     map[string][]string
	objectTypes    []ftrack.ObjectType
	objectTypeName map[string]string
	taskTypeName   map[string]string
	statusName     map[string]string
	schema         *ftrack.ProjectSchema
	attrConfigs    []ftrack.CustomAttributeConfig
	attrsMapping   *mapping.CustomAttributesMapping
	pathCache      map[string]string

	// failed marks tracker ids whose sync outcome must be flagged
	// on the tracker side.
	failed map[string]string

	// processed marks hub ids the immutable phase settled; the
	// unmatched sweep never touches them.
	processed map[string]bool
}

// NewFullSync builds a run for one project.
func NewFullSync(client *ayon.Client, session *ftrack.Session, project string, settings mapping.MappingSettings, logger *slog.Logger) *FullSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &FullSync{
		client:    client,
		session:   session,
		project:   project,
		settings:  settings,
		logger:    logger.With("project", project),
		ids:       mapping.NewIDMapping(),
		report:    &Report{},
		pathCache: map[string]string{},
		failed:    map[string]string{},
		processed: map[string]bool{},
	}
}

// Stats returns the run counters.
func (s *FullSync) Stats() Stats { return s.stats }

// Run executes every phase in order and returns the conflict report.
func (s *FullSync) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	if err := s.preflight(ctx); err != nil {
		return s.report, err
	}
	if err := s.syncProjectConfig(ctx); err != nil {
		return s.report, fmt.Errorf("sync project configuration: %w", err)
	}
	s.matchImmutable()
	if s.session.PendingOperations() > 0 {
		if err := s.session.Commit(ctx); err != nil {
			return s.report, fmt.Errorf("restore published subtrees on tracker: %w", err)
		}
	}
	s.matchExisting()
	s.deactivateUnmatched()
	if err := s.updateAssignees(ctx); err != nil {
		return s.report, fmt.Errorf("update assignees: %w", err)
	}
	if err := s.updateAttributes(ctx); err != nil {
		return s.report, fmt.Errorf("update attributes: %w", err)
	}
	if err := s.tree.Commit(ctx); err != nil {
		return s.report, fmt.Errorf("commit hub changes: %w", err)
	}
	if err := s.propagateTrackerAttributes(ctx); err != nil {
		return s.report, fmt.Errorf("write tracker identity attributes: %w", err)
	}
	s.logger.Info("full sync finished",
		"duration", time.Since(started).Round(time.Millisecond),
		"matched", s.stats.Matched,
		"created", s.stats.Created,
		"updated", s.stats.Updated,
		"deactivated", s.stats.Deactivated,
		"removed", s.stats.Removed,
		"recreated", s.stats.Recreated,
	)
	return s.report, nil
}

// preflight verifies both projects exist, the mandatory tracker
// custom attributes are configured, and loads everything the later
// phases read.
func (s *FullSync) preflight(ctx context.Context) error {
	project, err := s.session.ProjectByName(ctx, s.project)
	if err != nil {
		return fmt.Errorf("query tracker project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("%w: %s on tracker", ErrProjectNotFound, s.project)
	}
	s.trackerProject = project

	s.attrConfigs, err = s.session.CustomAttributeConfigs(ctx)
	if err != nil {
		return fmt.Errorf("query custom attribute configurations: %w", err)
	}
	var missing []string
	for _, key := range mapping.MandatoryTrackerAttrs {
		if s.mandatoryConf(key) == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &MissingAttributesError{Missing: missing}
	}

	s.tree = hub.New(s.client, s.project, s.logger)
	if err := s.tree.Load(ctx); err != nil {
		if errors.Is(err, ayon.ErrNotFound) {
			return fmt.Errorf("%w: %s on hub", ErrProjectNotFound, s.project)
		}
		return err
	}

	contexts, err := s.session.TypedContexts(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("query tracker hierarchy: %w", err)
	}
	s.contexts = make(map[string]*ftrack.TypedContext, len(contexts))
	s.childOrder = map[string][]string{}
	for i := range contexts {
		tc := &contexts[i]
		s.contexts[tc.ID] = tc
		s.childOrder[tc.ParentID] = append(s.childOrder[tc.ParentID], tc.ID)
	}

	s.objectTypes, err = s.session.ObjectTypes(ctx)
	if err != nil {
		return fmt.Errorf("query object types: %w", err)
	}
	s.objectTypeName = map[string]string{}
	for _, ot := range s.objectTypes {
		s.objectTypeName[ot.ID] = ot.Name
	}

	taskTypes, err := s.session.TaskTypes(ctx)
	if err != nil {
		return fmt.Errorf("query task types: %w", err)
	}
	s.taskTypeName = map[string]string{}
	for _, tt := range taskTypes {
		s.taskTypeName[tt.ID] = tt.Name
	}

	statuses, err := s.session.Statuses(ctx)
	if err != nil {
		return fmt.Errorf("query statuses: %w", err)
	}
	s.statusName = map[string]string{}
	for _, st := range statuses {
		s.statusName[st.ID] = st.Name
	}

	s.schema, err = s.session.ProjectSchemaByID(ctx, project.ProjectSchemaID)
	if err != nil {
		return fmt.Errorf("query project schema: %w", err)
	}
	if s.schema == nil {
		return fmt.Errorf("sync: project schema %s not found", project.ProjectSchemaID)
	}

	hubAttrs, err := s.client.ListAttributes(ctx)
	if err != nil {
		return fmt.Errorf("list hub attributes: %w", err)
	}
	s.attrsMapping = mapping.BuildAttributesMapping(
		hubAttributes(hubAttrs), s.attrConfigs, s.settings)
	return nil
}

func hubAttributes(schemas []ayon.AttributeSchema) []mapping.HubAttribute {
	out := make([]mapping.HubAttribute, 0, len(schemas))
	for _, a := range schemas {
		out = append(out, mapping.HubAttribute{
			Name:    a.Name,
			Type:    a.DataType,
			Builtin: a.Builtin,
		})
	}
	return out
}

// mandatoryConf finds the hierarchical configuration of a mandatory
// tracker attribute, or the project-scoped one for the auto-sync
// toggle.
func (s *FullSync) mandatoryConf(key string) *ftrack.CustomAttributeConfig {
	for i := range s.attrConfigs {
		conf := &s.attrConfigs[i]
		if conf.Key != key {
			continue
		}
		if conf.IsHierarchical || conf.EntityType == mapping.ConfEntityTypeProject {
			return conf
		}
	}
	return nil
}

// syncProjectConfig pushes folder types, task types, and scoped
// statuses derived from the project schema, committed before any
// hierarchy work so created entities can reference them.
func (s *FullSync) syncProjectConfig(ctx context.Context) error {
	s.tree.SetFolderTypes(folderTypesFromSchema(s.schema))
	s.tree.SetTaskTypes(taskTypesFromSchema(s.schema))
	s.tree.SetStatuses(statusesFromSchema(s.schema))
	return s.tree.Commit(ctx)
}

// matchImmutable walks hub folders that carry published output and
// pins their tracker identity before the general matching may claim
// those tracker entities for anything else. The hub side always wins
// inside immutable subtrees: a diverging tracker name or parent is
// forced back to the hub's, and a counterpart the tracker lost is
// recreated there. The recorded tracker operations are committed by
// Run once the walk finishes. Inactive folders are walked too, so a
// deactivated published subtree keeps its identity pinned.
func (s *FullSync) matchImmutable() {
	for _, e := range s.tree.All() {
		if e.Type != hub.EntityFolder {
			continue
		}
		if !s.tree.ImmutableForHierarchy(e.ID) {
			continue
		}
		s.matchImmutableEntity(e)
	}
}

func (s *FullSync) matchImmutableEntity(e *hub.Entity) {
	s.processed[e.ID] = true
	trackerParent, parentKnown := s.trackerParentOf(e)

	expected := attrString(e, mapping.TrackerIDKey)
	if expected != "" && expected != mapping.RemovedIDValue {
		if tc, ok := s.contexts[expected]; ok {
			if _, claimed := s.ids.HubID(tc.ID); !claimed {
				s.claimImmutable(e, tc, trackerParent, parentKnown)
				return
			}
		}
	}
	// Identity lost; look for a same-named folder sibling under the
	// mapped tracker parent. A task with the same name is never a
	// counterpart for a published folder.
	if parentKnown {
		for _, childID := range s.childOrder[trackerParent] {
			tc := s.contexts[childID]
			if _, claimed := s.ids.HubID(tc.ID); claimed {
				continue
			}
			if s.objectTypeName[tc.ObjectTypeID] == "Task" {
				continue
			}
			if hub.SlugsEqual(tc.Name, e.Name) {
				s.claimImmutable(e, tc, trackerParent, parentKnown)
				return
			}
		}
		s.recreateContext(e, trackerParent)
		return
	}
	e.Attribs.Set(mapping.TrackerIDKey, mapping.RemovedIDValue)
	s.report.NotFound = append(s.report.NotFound, ReportItem{
		HubID:  e.ID,
		Name:   e.Name,
		Detail: "published subtree has no reachable tracker parent",
	})
}

func (s *FullSync) claimImmutable(e *hub.Entity, tc *ftrack.TypedContext, trackerParent string, parentKnown bool) {
	s.ids.Set(tc.ID, e.ID)
	s.stats.Matched++
	if !hub.SlugsEqual(tc.Name, e.Name) {
		s.session.Update(ftrack.EntityTypeTypedContext, []string{tc.ID},
			map[string]any{"name": e.Name})
		s.report.RenamedBack = append(s.report.RenamedBack, ReportItem{
			TrackerID: tc.ID,
			HubID:     e.ID,
			Name:      e.Name,
			Detail:    fmt.Sprintf("tracker name %q forced back to %q", tc.Name, e.Name),
		})
		tc.Name = e.Name
	}
	if parentKnown && trackerParent != tc.ParentID {
		s.session.Update(ftrack.EntityTypeTypedContext, []string{tc.ID},
			map[string]any{"parent_id": trackerParent})
		s.report.MovedBack = append(s.report.MovedBack, ReportItem{
			TrackerID: tc.ID,
			HubID:     e.ID,
			Name:      e.Name,
			Detail:    "tracker move reverted for published subtree",
		})
		s.reparentContext(tc, trackerParent)
	}
}

// recreateContext rebuilds a published hub folder on the tracker. The
// id is minted client side, the way tracker sessions create entities,
// so the pair can be bound before the operations are committed.
func (s *FullSync) recreateContext(e *hub.Entity, trackerParent string) {
	objectTypeID := s.objectTypeIDFor(e.SubType)
	tc := &ftrack.TypedContext{
		ID:           uuid.NewString(),
		Name:         e.Name,
		ParentID:     trackerParent,
		ObjectTypeID: objectTypeID,
	}
	s.session.Create(ftrack.EntityTypeTypedContext, map[string]any{
		"id":             tc.ID,
		"name":           tc.Name,
		"object_type_id": objectTypeID,
		"parent_id":      trackerParent,
		"project_id":     s.trackerProject.ID,
	})
	s.contexts[tc.ID] = tc
	s.childOrder[trackerParent] = append(s.childOrder[trackerParent], tc.ID)
	s.ids.Set(tc.ID, e.ID)
	s.stats.Recreated++
	s.report.Recreated = append(s.report.Recreated, ReportItem{
		TrackerID: tc.ID,
		HubID:     e.ID,
		Name:      e.Name,
		Detail:    "tracker counterpart of published folder recreated",
	})
}

// objectTypeIDFor resolves a folder type name to a tracker object
// type id, falling back to the generic Folder type and then to any
// known type.
func (s *FullSync) objectTypeIDFor(folderType string) string {
	var defaultID, firstID string
	for _, ot := range s.objectTypes {
		if ot.Name == folderType {
			return ot.ID
		}
		if firstID == "" {
			firstID = ot.ID
		}
		if defaultID == "" && ot.Name == "Folder" {
			defaultID = ot.ID
		}
	}
	if defaultID != "" {
		return defaultID
	}
	return firstID
}

// reparentContext moves a tracker context in the local mirror so the
// later phases see the reverted hierarchy.
func (s *FullSync) reparentContext(tc *ftrack.TypedContext, newParent string) {
	siblings := s.childOrder[tc.ParentID]
	for i, id := range siblings {
		if id == tc.ID {
			s.childOrder[tc.ParentID] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	tc.ParentID = newParent
	s.childOrder[newParent] = append(s.childOrder[newParent], tc.ID)
}

// trackerParentOf resolves the tracker id the entity's hub parent is
// mapped to, falling back to the parent's stored identity attribute.
func (s *FullSync) trackerParentOf(e *hub.Entity) (string, bool) {
	if e.ParentID == s.tree.Project().ID {
		return s.trackerProject.ID, true
	}
	if id, ok := s.ids.TrackerID(e.ParentID); ok {
		return id, true
	}
	parent, ok := s.tree.Get(e.ParentID)
	if !ok {
		return "", false
	}
	stored := attrString(parent, mapping.TrackerIDKey)
	if stored == "" || stored == mapping.RemovedIDValue {
		return "", false
	}
	if _, exists := s.contexts[stored]; !exists {
		return "", false
	}
	return stored, true
}

// matchExisting walks the tracker tree breadth-first and pairs every
// context with a hub entity: an unclaimed same-named sibling is
// updated in place, a type mismatch is recreated, and everything else
// is created new. Sibling name collisions are decided by tracker
// order; later claimants are reported and flagged.
func (s *FullSync) matchExisting() {
	type item struct{ trackerID, hubID string }
	queue := []item{{s.trackerProject.ID, s.tree.Project().ID}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, childID := range s.childOrder[current.trackerID] {
			tc := s.contexts[childID]
			typeName := s.objectTypeName[tc.ObjectTypeID]
			if typeName == "Milestone" {
				continue
			}
			if hubID, ok := s.ids.HubID(tc.ID); ok {
				// Claimed by the immutable phase.
				queue = append(queue, item{tc.ID, hubID})
				continue
			}
			hubID, ok := s.matchContext(tc, typeName == "Task", current.hubID)
			if ok {
				queue = append(queue, item{tc.ID, hubID})
			}
		}
	}
}

func (s *FullSync) matchContext(tc *ftrack.TypedContext, isTask bool, hubParentID string) (string, bool) {
	typeName := s.objectTypeName[tc.ObjectTypeID]
	slug := hub.Slugify(tc.Name)

	if existing, ok := s.tree.FindChildBySlug(hubParentID, tc.Name); ok {
		if _, claimed := s.ids.TrackerID(existing.ID); claimed {
			s.report.DuplicatedNames = append(s.report.DuplicatedNames, ReportItem{
				TrackerID: tc.ID,
				Name:      tc.Name,
				Detail:    "sibling with the same name already synchronized",
			})
			s.failed[tc.ID] = "duplicated name"
			return "", false
		}
		if (existing.Type == hub.EntityTask) != isTask {
			// The kinds diverged; the hub entity is rebuilt under
			// the right kind.
			s.tree.Delete(existing.ID)
			s.stats.Removed++
		} else {
			subType := typeName
			if isTask {
				subType = s.taskTypeName[tc.TypeID]
			}
			label := labelFor(tc.Name, slug)
			if existing.Name != slug || existing.Label != label ||
				!existing.Active || existing.SubType != subType {
				s.stats.Updated++
			}
			existing.Name = slug
			existing.Label = label
			existing.Active = true
			existing.SubType = subType
			s.ids.Set(tc.ID, existing.ID)
			s.stats.Matched++
			return existing.ID, true
		}
	}

	if isTask {
		created, err := s.tree.AddTask(slug, s.taskTypeName[tc.TypeID], hubParentID)
		if err != nil {
			s.logger.Warn("skipping task placed on project root",
				"name", tc.Name, "trackerId", tc.ID)
			s.failed[tc.ID] = "task on project root"
			return "", false
		}
		created.Label = labelFor(tc.Name, slug)
		s.ids.Set(tc.ID, created.ID)
		s.stats.Created++
		return created.ID, true
	}
	created := s.tree.AddFolder(slug, typeName, hubParentID)
	created.Label = labelFor(tc.Name, slug)
	s.ids.Set(tc.ID, created.ID)
	s.stats.Created++
	return created.ID, true
}

// labelFor keeps the tracker's raw name as a label when slugging
// changed it.
func labelFor(raw, slug string) string {
	if raw == slug {
		return ""
	}
	return raw
}

// deactivateUnmatched retires hub entities no tracker context
// claimed. Entities the immutable phase settled are never touched
// here, even when their identity ended on the removed sentinel.
func (s *FullSync) deactivateUnmatched() {
	for _, e := range s.tree.All() {
		if e.IsCreated() || !e.Active || s.processed[e.ID] {
			continue
		}
		if _, ok := s.ids.TrackerID(e.ID); ok {
			continue
		}
		e.Active = false
		s.stats.Deactivated++
	}
}

// updateAssignees mirrors tracker assignments onto mapped tasks. Hub
// assignees without any tracker counterpart stay untouched.
func (s *FullSync) updateAssignees(ctx context.Context) error {
	var taskTrackerIDs []string
	for _, e := range s.tree.All() {
		if e.Type != hub.EntityTask {
			continue
		}
		if trackerID, ok := s.ids.TrackerID(e.ID); ok {
			taskTrackerIDs = append(taskTrackerIDs, trackerID)
		}
	}
	if len(taskTrackerIDs) == 0 {
		return nil
	}

	assignments, err := s.session.Assignments(ctx, taskTrackerIDs)
	if err != nil {
		return err
	}
	trackerUsers, err := s.session.ActiveUsers(ctx)
	if err != nil {
		return err
	}
	hubUsers, err := s.client.ListUsers(ctx)
	if err != nil {
		return err
	}
	userMap := mapping.MapUsers(trackerUsers, mappingUsers(hubUsers))

	claimed := map[string]bool{}
	for _, name := range userMap {
		if name != "" {
			claimed[name] = true
		}
	}
	byContext := map[string][]string{}
	for _, a := range assignments {
		byContext[a.ContextID] = append(byContext[a.ContextID], a.ResourceID)
	}

	for _, e := range s.tree.All() {
		if e.Type != hub.EntityTask {
			continue
		}
		trackerID, ok := s.ids.TrackerID(e.ID)
		if !ok {
			continue
		}
		next := map[string]bool{}
		for _, userID := range byContext[trackerID] {
			if name := userMap[userID]; name != "" {
				next[name] = true
			}
		}
		for _, name := range e.Assignees {
			if !claimed[name] {
				next[name] = true
			}
		}
		names := make([]string, 0, len(next))
		for name := range next {
			names = append(names, name)
		}
		sort.Strings(names)
		e.Assignees = names
	}
	return nil
}

func mappingUsers(users []ayon.UserModel) []mapping.HubUser {
	out := make([]mapping.HubUser, 0, len(users))
	for _, u := range users {
		if !u.Active {
			continue
		}
		out = append(out, mapping.HubUser{Name: u.Name, Email: u.Attrib.Email})
	}
	return out
}

// updateAttributes writes tracker identity, status, schedule fields,
// and mapped custom attribute values onto every paired entity.
func (s *FullSync) updateAttributes(ctx context.Context) error {
	entityIDs := make([]string, 0, s.ids.Len()+1)
	entityIDs = append(entityIDs, s.trackerProject.ID)
	for _, e := range s.tree.All() {
		if trackerID, ok := s.ids.TrackerID(e.ID); ok {
			entityIDs = append(entityIDs, trackerID)
		}
	}
	values, err := s.session.CustomAttributeValues(ctx, entityIDs, s.attrsMapping.ConfigIDs())
	if err != nil {
		return err
	}
	byEntity := map[string]map[string]any{}
	for _, v := range values {
		if byEntity[v.EntityID] == nil {
			byEntity[v.EntityID] = map[string]any{}
		}
		byEntity[v.EntityID][v.ConfigurationID] = v.Value
	}

	s.applyProjectAttributes(byEntity[s.trackerProject.ID])

	for _, e := range s.tree.All() {
		trackerID, ok := s.ids.TrackerID(e.ID)
		if !ok {
			continue
		}
		tc := s.contexts[trackerID]
		if tc == nil {
			continue
		}
		e.Attribs.Set(mapping.TrackerIDKey, trackerID)
		e.Attribs.Set(mapping.TrackerPathKey, s.trackerPath(trackerID))

		if name, ok := s.statusName[tc.StatusID]; ok {
			if scoped, ok := s.tree.StatusInScope(name, e.Type); ok {
				e.Status = scoped
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
		s.applyMappedAttributes(e, tc, byEntity[trackerID])
	}
	return nil
}

func (s *FullSync) applyProjectAttributes(values map[string]any) {
	if values == nil {
		return
	}
	project := s.tree.Project()
	for _, entry := range s.attrsMapping.All() {
		conf := entry.ConfigFor(mapping.ConfEntityTypeProject, "")
		if conf == nil {
			continue
		}
		value, ok := values[conf.ID]
		if !ok || value == nil {
			// The project never clears attributes from tracker
			// emptiness; defaults would cascade everywhere.
			continue
		}
		if normalized, ok := normalizeStored(entry.HubName, value); ok {
			project.Attribs.Set(entry.HubName, normalized)
		}
	}
}

func (s *FullSync) applyMappedAttributes(e *hub.Entity, tc *ftrack.TypedContext, values map[string]any) {
	if values == nil {
		return
	}
	for _, entry := range s.attrsMapping.All() {
		conf := entry.ConfigFor(mapping.ConfEntityTypeContext, tc.ObjectTypeID)
		if conf == nil {
			continue
		}
		value, ok := values[conf.ID]
		if !ok {
			continue
		}
		if value == nil {
			e.Attribs.Unset(entry.HubName)
			continue
		}
		if normalized, ok := normalizeStored(entry.HubName, value); ok {
			e.Attribs.Set(entry.HubName, normalized)
		}
	}
}

// normalizeStored adapts a stored tracker value for the hub
// attribute. Frame-rate attributes pass through fps parsing; a value
// that fails it is dropped rather than written broken.
func normalizeStored(hubName string, value any) (any, bool) {
	if !mapping.FPSKeys[hubName] {
		return value, true
	}
	switch v := value.(type) {
	case string:
		fps, err := mapping.ConvertFPS(v)
		if err != nil {
			return nil, false
		}
		return fps, true
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return nil, false
}

// dateOnly trims a tracker timestamp to its date part.
func dateOnly(v string) string {
	if len(v) >= 10 {
		return v[:10]
	}
	return ""
}

// trackerPath renders the tracker-side path of a context, project
// excluded, memoized across the run.
func (s *FullSync) trackerPath(trackerID string) string {
	if p, ok := s.pathCache[trackerID]; ok {
		return p
	}
	var parts []string
	id := trackerID
	for {
		tc, ok := s.contexts[id]
		if !ok {
			break
		}
		parts = append(parts, tc.Name)
		id = tc.ParentID
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	p := "/" + strings.Join(parts, "/")
	s.pathCache[trackerID] = p
	return p
}

// propagateTrackerAttributes writes hub identity back into tracker
// custom attributes: every paired context gets the hub id and, for
// folders, the hub path; contexts flagged as failed get the failure
// marker and blanked identity so the next run retries them cleanly.
func (s *FullSync) propagateTrackerAttributes(ctx context.Context) error {
	confs := map[string]*ftrack.CustomAttributeConfig{}
	for _, key := range mapping.MandatoryTrackerAttrs {
		confs[key] = s.mandatoryConf(key)
	}

	expected := map[string]map[string]any{}
	for _, e := range s.tree.All() {
		trackerID, ok := s.ids.TrackerID(e.ID)
		if !ok {
			continue
		}
		row := map[string]any{
			mapping.HubIDAttr:      e.ID,
			mapping.SyncFailedAttr: false,
		}
		if e.Type != hub.EntityTask {
			row[mapping.HubPathAttr] = s.tree.Path(e.ID)
		}
		expected[trackerID] = row
	}
	for trackerID, reason := range s.failed {
		expected[trackerID] = map[string]any{
			mapping.HubIDAttr:      "",
			mapping.HubPathAttr:    "",
			mapping.SyncFailedAttr: true,
		}
		s.report.Failed = append(s.report.Failed, ReportItem{
			TrackerID: trackerID,
			Name:      s.contextName(trackerID),
			Detail:    reason,
		})
	}
	return writeIdentityAttributes(ctx, s.session, confs, expected)
}

func (s *FullSync) contextName(trackerID string) string {
	if tc, ok := s.contexts[trackerID]; ok {
		return tc.Name
	}
	return trackerID
}

func attrValuesEqual(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func attrString(e *hub.Entity, key string) string {
	v, ok := e.Attribs.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}
