package ftrack

import (
	"context"
	"fmt"
)

const typedContextSelect = "select id, name, parent_id, object_type_id," +
	" type_id, status_id, start_date, end_date, description from TypedContext"

// ProjectByName fetches one project by its short name.
func (s *Session) ProjectByName(ctx context.Context, name string) (*Project, error) {
	rows, err := query[Project](ctx, s, fmt.Sprintf(
		`select id, name, full_name, project_schema_id, custom_attributes`+
			` from Project where name is "%s"`, name))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ProjectByID fetches one project by id.
func (s *Session) ProjectByID(ctx context.Context, id string) (*Project, error) {
	rows, err := query[Project](ctx, s, fmt.Sprintf(
		`select id, name, full_name, project_schema_id, custom_attributes`+
			` from Project where id is "%s"`, id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// TypedContexts fetches every hierarchical entity of a project.
func (s *Session) TypedContexts(ctx context.Context, projectID string) ([]TypedContext, error) {
	return query[TypedContext](ctx, s, fmt.Sprintf(
		`%s where project_id is "%s"`, typedContextSelect, projectID))
}

// TypedContextsByID fetches specific entities by id, chunked.
func (s *Session) TypedContextsByID(ctx context.Context, ids []string) ([]TypedContext, error) {
	var out []TypedContext
	for _, chunk := range Chunks(ids, DefaultChunkSize) {
		rows, err := query[TypedContext](ctx, s, fmt.Sprintf(
			`%s where id in (%s)`, typedContextSelect, JoinFilterValues(chunk)))
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// ContextsByParent fetches the direct children of one context.
func (s *Session) ContextsByParent(ctx context.Context, parentID string) ([]TypedContext, error) {
	return query[TypedContext](ctx, s, fmt.Sprintf(
		`%s where parent_id is "%s"`, typedContextSelect, parentID))
}

// ObjectTypes fetches all object types known to the server.
func (s *Session) ObjectTypes(ctx context.Context) ([]ObjectType, error) {
	return query[ObjectType](ctx, s,
		`select id, name, sort, is_time_reportable from ObjectType`)
}

// TaskTypes fetches all task types known to the server.
func (s *Session) TaskTypes(ctx context.Context) ([]TaskType, error) {
	return query[TaskType](ctx, s, `select id, name, sort, color from Type`)
}

// ProjectSchemaByID fetches a project schema with its workflow
// schemas, overrides, object types, and task types.
func (s *Session) ProjectSchemaByID(ctx context.Context, id string) (*ProjectSchema, error) {
	rows, err := query[ProjectSchema](ctx, s, fmt.Sprintf(
		`select id, name, object_types, task_workflow_schema,`+
			` task_workflow_schema_overrides, asset_version_workflow_schema,`+
			` task_type_schema, object_type_schemas`+
			` from ProjectSchema where id is "%s"`, id))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CustomAttributeConfigs fetches every custom attribute
// configuration, including type, group, and config blob.
func (s *Session) CustomAttributeConfigs(ctx context.Context) ([]CustomAttributeConfig, error) {
	return query[CustomAttributeConfig](ctx, s,
		`select id, key, entity_type, object_type_id, is_hierarchical,`+
			` default, config, type.name, group.name`+
			` from CustomAttributeConfiguration`)
}

// CustomAttributeValues fetches stored values for the given entity
// ids limited to the given configuration ids. Hierarchical and
// standard value rows are both returned.
func (s *Session) CustomAttributeValues(ctx context.Context, entityIDs, configIDs []string) ([]CustomAttributeValue, error) {
	if len(entityIDs) == 0 || len(configIDs) == 0 {
		return nil, nil
	}
	configFilter := JoinFilterValues(configIDs)
	var out []CustomAttributeValue
	for _, chunk := range Chunks(entityIDs, AttrValueChunkSize(len(configIDs))) {
		entityFilter := JoinFilterValues(chunk)
		for _, table := range []string{EntityTypeContextAttrValue, EntityTypeAttrValue} {
			rows, err := query[CustomAttributeValue](ctx, s, fmt.Sprintf(
				`select entity_id, configuration_id, value from %s`+
					` where entity_id in (%s) and configuration_id in (%s)`,
				table, entityFilter, configFilter))
			if err != nil {
				return nil, err
			}
			out = append(out, rows...)
		}
	}
	return out, nil
}

// Assignments fetches assignment appointments for the given context
// ids, chunked to keep expressions bounded.
func (s *Session) Assignments(ctx context.Context, contextIDs []string) ([]Appointment, error) {
	var out []Appointment
	for _, chunk := range Chunks(contextIDs, 50) {
		rows, err := query[Appointment](ctx, s, fmt.Sprintf(
			`select id, context_id, resource_id, type from Appointment`+
				` where type is "assignment" and context_id in (%s)`,
			JoinFilterValues(chunk)))
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// ActiveUsers fetches all active accounts.
func (s *Session) ActiveUsers(ctx context.Context) ([]User, error) {
	return query[User](ctx, s,
		`select id, username, email, is_active from User where is_active is true`)
}

// Statuses fetches all workflow statuses with their states.
func (s *Session) Statuses(ctx context.Context) ([]Status, error) {
	return query[Status](ctx, s,
		`select id, name, color, sort, state.id, state.name from Status`)
}
