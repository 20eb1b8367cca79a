package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"promptdesk/internal/models"
)

// ErrNoToken is returned before any network call when no bearer token is
// available. Primary authentication is delegated to an external identity
// provider; the client only consumes the resulting token.
var ErrNoToken = errors.New("backend token is not configured")

// TokenSource supplies the bearer token for backend requests.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the assistant backend's REST surface.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
}

type sessionListEnvelope struct {
	Data []models.Session `json:"data"`
}

type sessionEnvelope struct {
	Data models.Session `json:"data"`
}

type modelListEnvelope struct {
	Data []models.AIModel `json:"data"`
}

type agentListEnvelope struct {
	Data []models.Agent `json:"data"`
}

// AuthInitResult is the backend's answer to an authorization-initiation call.
type AuthInitResult struct {
	Success      bool   `json:"success"`
	AuthRequired bool   `json:"authRequired"`
	AuthURL      string `json:"authUrl,omitempty"`
}

// UploadError reports a per-file processing failure inside an upload batch.
type UploadError struct {
	FileName string `json:"fileName"`
	Message  string `json:"message"`
}

// UploadResult carries the backend-assigned descriptors for an upload batch.
// Files and Errors are independent: a batch can partially succeed.
type UploadResult struct {
	Success bool                  `json:"success"`
	Files   []models.AttachedFile `json:"files"`
	Errors  []UploadError         `json:"errors"`
}

func (c *Client) bearer() (string, error) {
	if c.tokens == nil {
		return "", ErrNoToken
	}
	token, err := c.tokens.Token()
	if err != nil || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.bearer()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("backend request failed",
			"method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
		return fmt.Errorf("backend returned %s for %s %s: %s",
			resp.Status, req.Method, req.URL.Path, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// ListSessions fetches the full session list, most recent first.
func (c *Client) ListSessions(ctx context.Context) ([]models.Session, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/chat", nil)
	if err != nil {
		return nil, err
	}
	var envelope sessionListEnvelope
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// GetSession fetches one session including its full message sequence.
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/chat/"+id, nil)
	if err != nil {
		return nil, err
	}
	var envelope sessionEnvelope
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// CreateSession registers a client-assigned session id with the backend.
func (c *Client) CreateSession(ctx context.Context, id, userID, title string) (*models.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/chat", map[string]string{
		"id":     id,
		"userId": userID,
		"title":  title,
	})
	if err != nil {
		return nil, err
	}
	var envelope sessionEnvelope
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	created := envelope.Data
	if created.ID == "" {
		// Some deployments ack creation without echoing the session back.
		created = models.Session{ID: id, OwnerID: userID, Title: title, CreatedAt: time.Now()}
	}
	return &created, nil
}

// DeleteSession removes a session on the backend.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/chat/"+id, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// SubmitMessage posts a user message to a session. The assistant response is
// computed out-of-band; callers poll GetSession to observe it.
func (c *Client) SubmitMessage(ctx context.Context, sessionID, content, modelID, agentID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	payload := map[string]string{
		"content":   content,
		"aiModelId": modelID,
	}
	if strings.TrimSpace(agentID) != "" {
		payload["agentId"] = agentID
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/chat/"+sessionID+"/messages", payload)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// ListModels fetches the generation models the backend offers.
func (c *Client) ListModels(ctx context.Context) ([]models.AIModel, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/models", nil)
	if err != nil {
		return nil, err
	}
	var envelope modelListEnvelope
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// ListAgents fetches the specialized handlers the backend offers.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/agents", nil)
	if err != nil {
		return nil, err
	}
	var envelope agentListEnvelope
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// AuthStatus probes whether the user has authorized the given provider.
func (c *Client) AuthStatus(ctx context.Context, provider models.ProviderKey) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/%s/auth/status", provider), nil)
	if err != nil {
		return false, err
	}
	var out struct {
		Authorized bool `json:"authorized"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.Authorized, nil
}

// AuthInit starts (or short-circuits) the provider authorization flow.
func (c *Client) AuthInit(ctx context.Context, provider models.ProviderKey) (*AuthInitResult, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/%s/auth", provider), nil)
	if err != nil {
		return nil, err
	}
	var out AuthInitResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisconnectProvider asks the backend to revoke a provider authorization.
func (c *Client) DisconnectProvider(ctx context.Context, provider models.ProviderKey) error {
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/api/%s/disconnect", provider), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// UploadFiles sends local files as one multipart batch scoped to a session.
func (c *Client) UploadFiles(ctx context.Context, sessionID string, paths []string) (*UploadResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("sessionId", sessionID); err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := appendFilePart(writer, path); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/files/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out UploadResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func appendFilePart(writer *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// RemoveFile asks the backend to detach an uploaded file from a session.
func (c *Client) RemoveFile(ctx context.Context, sessionID, fileID string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(fileID) == "" {
		return fmt.Errorf("session id and file id are required")
	}
	req, err := c.newJSONRequest(ctx, http.MethodDelete, "/api/files/remove", map[string]string{
		"sessionId": sessionID,
		"fileId":    fileID,
	})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
