// Package client is a typed Go client for the pagecraft HTTP API.
//
//	c := client.New("http://localhost:8080")
//	page, err := c.CreatePage(ctx, mutation.CreatePageRequest{Title: "Home"})
//	if err != nil {
//		return err
//	}
//	id, err := c.Add(ctx, mutation.AddRequest{
//		Root:   page.Ref(),
//		Parent: page.Ref(),
//		Slot:   models.RootSlot,
//		Type:   "heading",
//	})
//
// Request types are the engine's own, so a request built for the engine can
// be sent over the wire unchanged. Failed calls return an *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pagecraft/pagecraft/pkg/integrity"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/mutation"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the server at baseURL, e.g.
// "http://localhost:8080", without a trailing slash.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pagecraft: %d %s (request %s)", e.Status, e.Message, e.RequestID)
}

// Is matches the model sentinels by status code, so callers can write
// errors.Is(err, models.ErrNotFound) on either side of the wire.
func (e *APIError) Is(target error) bool {
	switch target {
	case models.ErrNotFound:
		return e.Status == http.StatusNotFound
	case models.ErrConstraintViolation:
		return e.Status == http.StatusConflict
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = string(data)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error, RequestID: e.RequestID}
	}
	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func send[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T
	err := c.do(ctx, method, path, body, &out)
	return out, err
}

// Health returns the server's health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return get[map[string]any](ctx, c, "/api/health")
}

// Pages

func (c *Client) ListPages(ctx context.Context) ([]*models.Node, error) {
	return get[[]*models.Node](ctx, c, "/api/pages")
}

func (c *Client) GetPage(ctx context.Context, id models.ID) (*models.Node, error) {
	return get[*models.Node](ctx, c, "/api/pages/"+id.String())
}

func (c *Client) GetPageBySlug(ctx context.Context, slug string) (*models.Node, error) {
	return get[*models.Node](ctx, c, "/api/pages/by-slug/"+slug)
}

func (c *Client) PageTree(ctx context.Context, id models.ID) (*tree.Snapshot, error) {
	return get[*tree.Snapshot](ctx, c, "/api/pages/"+id.String()+"/tree")
}

func (c *Client) CreatePage(ctx context.Context, req mutation.CreatePageRequest) (*models.Node, error) {
	return send[*models.Node](ctx, c, http.MethodPost, "/api/pages", req)
}

// UpdatePage ignores req.Page; the id argument names the page.
func (c *Client) UpdatePage(ctx context.Context, id models.ID, req mutation.UpdatePageRequest) (*models.Node, error) {
	req.Page = id
	return send[*models.Node](ctx, c, http.MethodPatch, "/api/pages/"+id.String(), req)
}

func (c *Client) DeletePage(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, "/api/pages/"+id.String(), nil, nil)
}

func (c *Client) PublishPage(ctx context.Context, id models.ID) (*models.Node, error) {
	return send[*models.Node](ctx, c, http.MethodPost, "/api/pages/"+id.String()+"/publish", nil)
}

func (c *Client) UnpublishPage(ctx context.Context, id models.ID) (*models.Node, error) {
	return send[*models.Node](ctx, c, http.MethodPost, "/api/pages/"+id.String()+"/unpublish", nil)
}

func (c *Client) DuplicatePage(ctx context.Context, id models.ID) (*models.Node, error) {
	return send[*models.Node](ctx, c, http.MethodPost, "/api/pages/"+id.String()+"/duplicate", nil)
}

// Blocks and tree edits

func (c *Client) GetBlock(ctx context.Context, id models.ID) (*models.Node, error) {
	return get[*models.Node](ctx, c, "/api/blocks/"+id.String())
}

func (c *Client) Add(ctx context.Context, req mutation.AddRequest) (models.ID, error) {
	res, err := send[struct{ ID models.ID }](ctx, c, http.MethodPost, "/api/tree/add", req)
	return res.ID, err
}

func (c *Client) Delete(ctx context.Context, req mutation.DeleteRequest) error {
	return c.do(ctx, http.MethodPost, "/api/tree/delete", req, nil)
}

func (c *Client) Reorder(ctx context.Context, req mutation.ReorderRequest) error {
	return c.do(ctx, http.MethodPost, "/api/tree/reorder", req, nil)
}

func (c *Client) Move(ctx context.Context, req mutation.MoveRequest) error {
	return c.do(ctx, http.MethodPost, "/api/tree/move", req, nil)
}

func (c *Client) Copy(ctx context.Context, req mutation.CopyRequest) (models.ID, error) {
	res, err := send[struct{ ID models.ID }](ctx, c, http.MethodPost, "/api/tree/copy", req)
	return res.ID, err
}

func (c *Client) CopyMany(ctx context.Context, req mutation.CopyManyRequest) ([]models.ID, error) {
	res, err := send[struct{ IDs []models.ID }](ctx, c, http.MethodPost, "/api/tree/copy-many", req)
	return res.IDs, err
}

func (c *Client) ApplyTemplate(ctx context.Context, req mutation.ApplyTemplateRequest) (models.ID, error) {
	res, err := send[struct{ ID models.ID }](ctx, c, http.MethodPost, "/api/tree/apply-template", req)
	return res.ID, err
}

func (c *Client) UpdateProps(ctx context.Context, req mutation.UpdatePropsRequest) error {
	return c.do(ctx, http.MethodPost, "/api/tree/props", req, nil)
}

func (c *Client) Rename(ctx context.Context, req mutation.RenameRequest) error {
	return c.do(ctx, http.MethodPost, "/api/tree/rename", req, nil)
}

// Templates

func (c *Client) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	return get[[]*models.Template](ctx, c, "/api/templates")
}

func (c *Client) GetTemplate(ctx context.Context, id models.ID) (*models.Template, error) {
	return get[*models.Template](ctx, c, "/api/templates/"+id.String())
}

func (c *Client) SaveTemplate(ctx context.Context, req mutation.SaveTemplateRequest) (*models.Template, error) {
	return send[*models.Template](ctx, c, http.MethodPost, "/api/templates", req)
}

func (c *Client) RenameTemplate(ctx context.Context, id models.ID, name string) (*models.Template, error) {
	return send[*models.Template](ctx, c, http.MethodPatch, "/api/templates/"+id.String(), map[string]string{"name": name})
}

func (c *Client) ReorderTemplate(ctx context.Context, req mutation.ReorderTemplateRequest) (int, error) {
	res, err := send[struct{ Rank int }](ctx, c, http.MethodPost, "/api/templates/reorder", req)
	return res.Rank, err
}

func (c *Client) DeleteTemplate(ctx context.Context, id models.ID) error {
	return c.do(ctx, http.MethodDelete, "/api/templates/"+id.String(), nil, nil)
}

func (c *Client) DeleteTemplates(ctx context.Context, ids []models.ID) error {
	return c.do(ctx, http.MethodPost, "/api/templates/delete", map[string][]models.ID{"ids": ids}, nil)
}

// Administration

// Check runs the server side integrity audit.
func (c *Client) Check(ctx context.Context) (*integrity.Report, error) {
	return get[*integrity.Report](ctx, c, "/api/admin/check")
}

// SetReadOnly toggles the server's read-only mode and returns the new state.
func (c *Client) SetReadOnly(ctx context.Context, on bool) (bool, error) {
	res, err := send[struct {
		ReadOnly bool `json:"read_only"`
	}](ctx, c, http.MethodPut, "/api/admin/read-only", map[string]bool{"read_only": on})
	return res.ReadOnly, err
}
