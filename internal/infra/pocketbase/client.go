// Package pocketbase is a minimal client for a PocketBase-style document
// store: CRUD-by-id plus first-match and full-list queries per collection,
// and password authentication against the players collection.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/store"
)

// Client is shared by the login handler and every running session, so it
// holds no per-login state: record calls authenticate with the service
// token fixed at construction, never with a player's token.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   string // service credential, immutable after New
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		token:   token,
	}
}

// AuthWithPassword verifies credentials against the players collection. The
// player token in the reply is discarded; only the identity verdict matters.
func (c *Client) AuthWithPassword(ctx context.Context, email, password string) (domain.Identity, error) {
	body := map[string]string{"identity": email, "password": password}
	var out struct {
		Record map[string]any `json:"record"`
	}
	path := "/api/collections/" + store.CollectionPlayers + "/records/auth-with-password"
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return domain.Identity{}, fmt.Errorf("auth: %w", err)
	}
	id, _ := out.Record["id"].(string)
	player := domain.PlayerFromFields(id, out.Record)
	return domain.Identity{UserID: player.ID, Username: player.Username, Role: player.Role}, nil
}

func (c *Client) GetOne(ctx context.Context, collection, id string) (store.Record, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, c.recordPath(collection, id), nil, &out); err != nil {
		return store.Record{}, err
	}
	return toRecord(out), nil
}

func (c *Client) GetFirstMatch(ctx context.Context, collection string) (store.Record, error) {
	var out struct {
		Items []map[string]any `json:"items"`
	}
	path := c.recordPath(collection, "") + "?" + url.Values{
		"page":    {"1"},
		"perPage": {"1"},
	}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return store.Record{}, err
	}
	if len(out.Items) == 0 {
		return store.Record{}, domain.ErrRecordNotFound
	}
	return toRecord(out.Items[0]), nil
}

func (c *Client) ListAll(ctx context.Context, collection string) ([]store.Record, error) {
	var out struct {
		Items []map[string]any `json:"items"`
	}
	path := c.recordPath(collection, "") + "?" + url.Values{
		"page":      {"1"},
		"perPage":   {"500"},
		"skipTotal": {"1"},
	}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	records := make([]store.Record, 0, len(out.Items))
	for _, item := range out.Items {
		records = append(records, toRecord(item))
	}
	return records, nil
}

func (c *Client) Create(ctx context.Context, collection string, fields store.Fields) (store.Record, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, c.recordPath(collection, ""), fields, &out); err != nil {
		return store.Record{}, err
	}
	return toRecord(out), nil
}

func (c *Client) Update(ctx context.Context, collection, id string, fields store.Fields) (store.Record, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodPatch, c.recordPath(collection, id), fields, &out); err != nil {
		return store.Record{}, err
	}
	return toRecord(out), nil
}

func (c *Client) recordPath(collection, id string) string {
	path := "/api/collections/" + url.PathEscape(collection) + "/records"
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrRecordNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toRecord(raw map[string]any) store.Record {
	id, _ := raw["id"].(string)
	fields := make(store.Fields, len(raw))
	for k, v := range raw {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	return store.Record{ID: id, Fields: fields}
}
