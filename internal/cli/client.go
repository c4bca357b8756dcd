package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soyeahso/agentcanvas/internal/config"
	"github.com/soyeahso/agentcanvas/internal/domain"
	"github.com/soyeahso/agentcanvas/internal/version"
)

// APIError is a non-2xx response from the agent canvas API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: HTTP %d", e.Status)
	}
	return e.Message
}

// apiClient talks to a running agentcanvas server.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient() *apiClient {
	base := strings.TrimRight(apiURL, "/")
	if base == "" {
		base = "http://" + localAddr(cfg.Server)
	}
	return &apiClient{
		base:  base,
		token: cfg.Server.Auth.Token,
		http:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// localAddr is the address a local client should dial for the configured
// bind mode.
func localAddr(sc config.ServerConfig) string {
	port := sc.Port
	if port == 0 {
		port = config.DefaultPort
	}
	host := "127.0.0.1"
	if sc.Bind == "custom" && sc.CustomBindHost != "" {
		host = sc.CustomBindHost
	}
	return net.JoinHostPort(host, fmt.Sprint(port))
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *apiClient) projects(ctx context.Context) (domain.Document, error) {
	var doc domain.Document
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &doc)
	return doc, err
}

// resolveProject finds a workspace by id, then by exact name.
func (c *apiClient) resolveProject(ctx context.Context, ref string) (domain.Project, error) {
	doc, err := c.projects(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	return findProject(doc, ref)
}

func findProject(doc domain.Document, ref string) (domain.Project, error) {
	if p, ok := doc.FindProject(ref); ok {
		return p, nil
	}
	var match []domain.Project
	for _, p := range doc.Projects {
		if p.Name == ref {
			match = append(match, p)
		}
	}
	switch len(match) {
	case 0:
		return domain.Project{}, fmt.Errorf("workspace not found: %s", ref)
	case 1:
		return match[0], nil
	default:
		return domain.Project{}, fmt.Errorf("workspace name %q is ambiguous; use the id", ref)
	}
}

// findTile matches a tile by id, agent id or name.
func findTile(p domain.Project, ref string) (domain.Tile, error) {
	if t, ok := p.FindTile(ref); ok {
		return t, nil
	}
	for _, t := range p.Tiles {
		if t.AgentID == ref || t.Name == ref {
			return t, nil
		}
	}
	return domain.Tile{}, fmt.Errorf("tile not found in %s: %s", p.Name, ref)
}

func (c *apiClient) resolveTile(ctx context.Context, projectRef, tileRef string) (domain.Project, domain.Tile, error) {
	p, err := c.resolveProject(ctx, projectRef)
	if err != nil {
		return domain.Project{}, domain.Tile{}, err
	}
	t, err := findTile(p, tileRef)
	return p, t, err
}

func projectPath(projectID string) string {
	return "/api/projects/" + url.PathEscape(projectID)
}

func tilePath(projectID, tileID string) string {
	return projectPath(projectID) + "/tiles/" + url.PathEscape(tileID)
}
