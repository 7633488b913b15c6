package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Object is a created or fetched page or database. Raw holds the full
// response and is what Object marshals back to.
type Object struct {
	Object string          `json:"object"`
	ID     string          `json:"id"`
	URL    string          `json:"url"`
	Raw    json.RawMessage `json:"-"`
}

func (o *Object) UnmarshalJSON(data []byte) error {
	type plain Object
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Object(p)
	o.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (o Object) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	type plain Object
	return json.Marshal(plain(o))
}

// Page is a retrieved page.
type Page = Object

// PageBody builds a create-page request body under a parent page.
type PageBody interface {
	PageRequest(parentID string) map[string]any
}

// DatabaseBody builds a create-database request body under a parent page.
type DatabaseBody interface {
	DatabaseRequest(parentID string) map[string]any
}

// QueryOptions are the optional parts of a database query. Filter and
// Sorts are passed through as-is.
type QueryOptions struct {
	Filter      any
	Sorts       any
	StartCursor string
	PageSize    int
}

type QueryResult struct {
	Results    []json.RawMessage `json:"results"`
	NextCursor *string           `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
	Raw        json.RawMessage   `json:"-"`
}

func (r *QueryResult) UnmarshalJSON(data []byte) error {
	type plain QueryResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = QueryResult(p)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (r QueryResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain QueryResult
	return json.Marshal(plain(r))
}

var errEmptyID = errors.New("empty identifier")

func requireID(op, id string) error {
	if id == "" {
		return fmt.Errorf("notion: %s: %w", op, errEmptyID)
	}
	return nil
}

// CreatePage creates a page under parentID.
func (c *Client) CreatePage(ctx context.Context, parentID string, body PageBody) (*Object, error) {
	const op = "create page"
	if err := requireID(op, parentID); err != nil {
		return nil, err
	}
	var obj Object
	if err := c.do(ctx, op, http.MethodPost, "/v1/pages", body.PageRequest(parentID), &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// CreateDatabase creates an inline database under parentID.
func (c *Client) CreateDatabase(ctx context.Context, parentID string, body DatabaseBody) (*Object, error) {
	const op = "create database"
	if err := requireID(op, parentID); err != nil {
		return nil, err
	}
	var obj Object
	if err := c.do(ctx, op, http.MethodPost, "/v1/databases", body.DatabaseRequest(parentID), &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// UpdatePage sets properties on an existing page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) (*Object, error) {
	const op = "update page"
	if err := requireID(op, pageID); err != nil {
		return nil, err
	}
	var obj Object
	body := map[string]any{"properties": properties}
	if err := c.do(ctx, op, http.MethodPatch, "/v1/pages/"+url.PathEscape(pageID), body, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// QueryDatabase returns one page of results from a database query.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, opts QueryOptions) (*QueryResult, error) {
	const op = "query database"
	if err := requireID(op, databaseID); err != nil {
		return nil, err
	}
	body := map[string]any{}
	if opts.Filter != nil {
		body["filter"] = opts.Filter
	}
	if opts.Sorts != nil {
		body["sorts"] = opts.Sorts
	}
	if opts.StartCursor != "" {
		body["start_cursor"] = opts.StartCursor
	}
	if opts.PageSize > 0 {
		body["page_size"] = opts.PageSize
	}
	var result QueryResult
	if err := c.do(ctx, op, http.MethodPost, "/v1/databases/"+url.PathEscape(databaseID)+"/query", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AppendBlocks appends children to a page or block.
func (c *Client) AppendBlocks(ctx context.Context, blockID string, children []map[string]any) (*QueryResult, error) {
	const op = "append blocks"
	if err := requireID(op, blockID); err != nil {
		return nil, err
	}
	if children == nil {
		children = []map[string]any{}
	}
	var result QueryResult
	body := map[string]any{"children": children}
	if err := c.do(ctx, op, http.MethodPatch, "/v1/blocks/"+url.PathEscape(blockID)+"/children", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPage retrieves a page and its properties.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	const op = "get page"
	if err := requireID(op, pageID); err != nil {
		return nil, err
	}
	var page Page
	if err := c.do(ctx, op, http.MethodGet, "/v1/pages/"+url.PathEscape(pageID), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
