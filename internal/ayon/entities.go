package ayon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListProjectNames fetches the names of all active projects.
func (c *Client) ListProjectNames(ctx context.Context) ([]string, error) {
	var out struct {
		Projects []struct {
			Name   string `json:"name"`
			Active bool   `json:"active"`
		} `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	var names []string
	for _, p := range out.Projects {
		if p.Active {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

// GetProject fetches the project document, or ErrNotFound.
func (c *Client) GetProject(ctx context.Context, project string) (*ProjectModel, error) {
	var out ProjectModel
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(project), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject patches project fields. Anatomy lists (folder types,
// task types, statuses) are replaced wholesale when present.
func (c *Client) UpdateProject(ctx context.Context, project string, patch map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/api/projects/"+url.PathEscape(project), patch, nil)
}

// ListFolders fetches every folder of a project, inactive ones
// included.
func (c *Client) ListFolders(ctx context.Context, project string) ([]FolderModel, error) {
	var out struct {
		Folders []FolderModel `json:"folders"`
	}
	path := fmt.Sprintf("/api/projects/%s/folders?active=all", url.PathEscape(project))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Folders, nil
}

// ListTasks fetches every task of a project, inactive ones included.
func (c *Client) ListTasks(ctx context.Context, project string) ([]TaskModel, error) {
	var out struct {
		Tasks []TaskModel `json:"tasks"`
	}
	path := fmt.Sprintf("/api/projects/%s/tasks?active=all", url.PathEscape(project))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// GetFolder fetches one folder by id.
func (c *Client) GetFolder(ctx context.Context, project, id string) (*FolderModel, error) {
	var out FolderModel
	path := fmt.Sprintf("/api/projects/%s/folders/%s", url.PathEscape(project), url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, project, id string) (*TaskModel, error) {
	var out TaskModel
	path := fmt.Sprintf("/api/projects/%s/tasks/%s", url.PathEscape(project), url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VersionModel is one published version entity.
type VersionModel struct {
	ID        string         `json:"id"`
	Version   int            `json:"version"`
	ProductID string         `json:"productId"`
	TaskID    string         `json:"taskId"`
	Status    string         `json:"status"`
	Attrib    map[string]any `json:"attrib"`
}

// GetVersion fetches one version by id.
func (c *Client) GetVersion(ctx context.Context, project, id string) (*VersionModel, error) {
	var out VersionModel
	path := fmt.Sprintf("/api/projects/%s/versions/%s", url.PathEscape(project), url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Operation is one entry of a batched entity operations request.
type Operation struct {
	Type       string         `json:"type"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Operation types.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// OperationResult reports the outcome of one operation.
type OperationResult struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	EntityID string `json:"entityId"`
	Success  bool   `json:"success"`
	Detail   string `json:"detail"`
}

// PostOperations submits a batch of entity operations in one
// transaction-like call. With canFail false the server rolls the
// whole batch back on the first failure.
func (c *Client) PostOperations(ctx context.Context, project string, ops []Operation) ([]OperationResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	body := map[string]any{"operations": ops, "canFail": false}
	var out struct {
		Operations []OperationResult `json:"operations"`
		Success    bool              `json:"success"`
	}
	path := fmt.Sprintf("/api/projects/%s/operations", url.PathEscape(project))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		for _, res := range out.Operations {
			if !res.Success {
				return out.Operations, fmt.Errorf("ayon: operation %s %s failed: %s", res.Type, res.EntityID, res.Detail)
			}
		}
		return out.Operations, fmt.Errorf("ayon: operations batch failed")
	}
	return out.Operations, nil
}

// ListAttributes fetches the hub attribute registry.
func (c *Client) ListAttributes(ctx context.Context) ([]AttributeSchema, error) {
	var out struct {
		Attributes []AttributeSchema `json:"attributes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/attributes", nil, &out); err != nil {
		return nil, err
	}
	return out.Attributes, nil
}

// ListUsers fetches all hub accounts.
func (c *Client) ListUsers(ctx context.Context) ([]UserModel, error) {
	var out struct {
		Users []UserModel `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}
