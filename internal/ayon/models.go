package ayon

// Attrib is an entity attribute bag as stored on the hub.
type Attrib map[string]any

// FolderType is one hub folder type definition carried on the
// project anatomy.
type FolderType struct {
	Name      string `json:"name"`
	ShortName string `json:"shortName,omitempty"`
	Icon      string `json:"icon,omitempty"`
}

// TaskTypeDef is one hub task type definition.
type TaskTypeDef struct {
	Name      string `json:"name"`
	ShortName string `json:"shortName,omitempty"`
	Icon      string `json:"icon,omitempty"`
}

// StatusDef is one hub status definition. Scope limits the entity
// types the status applies to.
type StatusDef struct {
	Name      string   `json:"name"`
	ShortName string   `json:"shortName,omitempty"`
	State     string   `json:"state,omitempty"`
	Icon      string   `json:"icon,omitempty"`
	Color     string   `json:"color,omitempty"`
	Scope     []string `json:"scope,omitempty"`
}

// ProjectModel is the project document with its anatomy
// configuration.
type ProjectModel struct {
	Name        string        `json:"name"`
	Code        string        `json:"code"`
	Active      bool          `json:"active"`
	Attrib      Attrib        `json:"attrib"`
	FolderTypes []FolderType  `json:"folderTypes"`
	TaskTypes   []TaskTypeDef `json:"taskTypes"`
	Statuses    []StatusDef   `json:"statuses"`
}

// FolderModel is one folder entity as returned by the hierarchy
// listing. OwnAttrib names the attribute keys set on the folder
// itself rather than inherited. HasProducts is true when published
// output exists directly under the folder.
type FolderModel struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	FolderType  string   `json:"folderType"`
	ParentID    string   `json:"parentId"`
	Status      string   `json:"status"`
	Active      bool     `json:"active"`
	ThumbnailID string   `json:"thumbnailId"`
	Attrib      Attrib   `json:"attrib"`
	OwnAttrib   []string `json:"ownAttrib"`
	HasProducts bool     `json:"hasProducts"`
}

// TaskModel is one task entity.
type TaskModel struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	TaskType    string   `json:"taskType"`
	FolderID    string   `json:"folderId"`
	Status      string   `json:"status"`
	Active      bool     `json:"active"`
	ThumbnailID string   `json:"thumbnailId"`
	Assignees   []string `json:"assignees"`
	Attrib      Attrib   `json:"attrib"`
	OwnAttrib   []string `json:"ownAttrib"`
}

// AttributeSchema is one entry of the hub attribute registry.
type AttributeSchema struct {
	Name     string   `json:"name"`
	Scope    []string `json:"scope"`
	Builtin  bool     `json:"builtin"`
	DataType string   `json:"type"`
}

// UserModel is a hub account.
type UserModel struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Attrib struct {
		Email    string `json:"email"`
		FullName string `json:"fullName"`
	} `json:"attrib"`
}
