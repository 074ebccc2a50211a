package ftrack

// Entity type names used in query expressions and operations.
const (
	EntityTypeProject      = "Project"
	EntityTypeTypedContext = "TypedContext"
	EntityTypeTask         = "Task"
	EntityTypeMilestone    = "Milestone"
	EntityTypeAppointment  = "Appointment"
	EntityTypeNote         = "Note"
	EntityTypeMetadata     = "Metadata"
)

// Custom attribute value entity types. Hierarchical values live on
// ContextCustomAttributeValue, standard values on
// CustomAttributeValue.
const (
	EntityTypeContextAttrValue = "ContextCustomAttributeValue"
	EntityTypeAttrValue        = "CustomAttributeValue"
)

// Project is a tracker project record.
type Project struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	FullName         string         `json:"full_name"`
	ProjectSchemaID  string         `json:"project_schema_id"`
	CustomAttributes map[string]any `json:"custom_attributes"`
}

// TypedContext is any hierarchical tracker entity below the project:
// folders, shots, sequences, tasks, milestones. The object type
// distinguishes them.
type TypedContext struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ParentID     string `json:"parent_id"`
	ObjectTypeID string `json:"object_type_id"`
	TypeID       string `json:"type_id"`
	StatusID     string `json:"status_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Description  string `json:"description"`
}

// ObjectType names a TypedContext subclass (Folder, Shot, Task, ...).
type ObjectType struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Sort      int    `json:"sort"`
	IsTimeRep bool   `json:"is_time_reportable"`
}

// TaskType is a tracker "Type" record assigned to tasks.
type TaskType struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Sort   float64 `json:"sort"`
	Color  string  `json:"color"`
	Billab bool    `json:"is_billable"`
}

// State is the terminal workflow state behind a status.
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Status is a workflow status with its backing state.
type Status struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color string  `json:"color"`
	Sort  float64 `json:"sort"`
	State State   `json:"state"`
}

// WorkflowSchema groups the statuses valid for one kind of entity.
type WorkflowSchema struct {
	ID       string   `json:"id"`
	Statuses []Status `json:"statuses"`
}

// TypeSchema lists the task types a project schema allows.
type TypeSchema struct {
	ID    string     `json:"id"`
	Types []TaskType `json:"types"`
}

// SchemaStatusOverride maps one task type to an alternate workflow
// schema within a project schema.
type SchemaStatusOverride struct {
	TypeID         string         `json:"type_id"`
	WorkflowSchema WorkflowSchema `json:"workflow_schema"`
}

// Schema is one entry of ProjectSchema.Schemas: it binds an object
// type to its status workflow.
type Schema struct {
	ID             string         `json:"id"`
	ObjectTypeID   string         `json:"type_id"`
	WorkflowSchema WorkflowSchema `json:"statuses"`
}

// ProjectSchema carries everything the project configuration sync
// needs: task workflow (with per-type overrides), version workflow,
// object types and their schemas, and the allowed task types.
type ProjectSchema struct {
	ID                    string                 `json:"id"`
	Name                  string                 `json:"name"`
	ObjectTypes           []ObjectType           `json:"object_types"`
	TaskWorkflowSchema    WorkflowSchema         `json:"task_workflow_schema"`
	TaskWorkflowOverrides []SchemaStatusOverride `json:"task_workflow_schema_overrides"`
	AssetVersionWorkflow  WorkflowSchema         `json:"asset_version_workflow_schema"`
	TaskTypeSchema        TypeSchema             `json:"task_type_schema"`
	Schemas               []Schema               `json:"object_type_schemas"`
}

// AttributeType is the nested type record of a custom attribute
// configuration ("text", "number", "boolean", ...).
type AttributeType struct {
	Name string `json:"name"`
}

// AttributeGroup is the security/grouping record of a custom
// attribute configuration.
type AttributeGroup struct {
	Name string `json:"name"`
}

// CustomAttributeConfig describes one tracker custom attribute.
// Config holds a type-specific JSON blob (isdecimal for numbers,
// multiSelect for enumerators).
type CustomAttributeConfig struct {
	ID             string         `json:"id"`
	Key            string         `json:"key"`
	EntityType     string         `json:"entity_type"`
	ObjectTypeID   string         `json:"object_type_id"`
	IsHierarchical bool           `json:"is_hierarchical"`
	Default        any            `json:"default"`
	Config         string         `json:"config"`
	Type           AttributeType  `json:"type"`
	Group          AttributeGroup `json:"group"`
}

// CustomAttributeValue is one stored attribute value row.
type CustomAttributeValue struct {
	EntityID        string `json:"entity_id"`
	ConfigurationID string `json:"configuration_id"`
	Value           any    `json:"value"`
}

// User is a tracker account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// Appointment links a user to a context, either as an assignment or
// as an allocation.
type Appointment struct {
	ID         string `json:"id"`
	ContextID  string `json:"context_id"`
	ResourceID string `json:"resource_id"`
	Type       string `json:"type"`
}
