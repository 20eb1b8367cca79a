package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"promptdesk/internal/api"
	"promptdesk/internal/config"
	"promptdesk/internal/events"
	"promptdesk/internal/models"
	"promptdesk/internal/services"
)

// App struct
type App struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	keyring *services.KeyringService
	svc     *services.Services

	dbClose          func() error
	telemetryCleanup func()
}

// NewApp creates a new App application struct
func NewApp(cfg *config.Config, logger *slog.Logger, keyring *services.KeyringService, svc *services.Services) *App {
	return &App{cfg: cfg, logger: logger, keyring: keyring, svc: svc}
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	events.EnableRuntimeEmitter()

	a.svc.AppSettings.Startup(ctx)
	a.svc.Providers.SetNavigator(func(ctx context.Context, authURL string) {
		runtime.BrowserOpenURL(ctx, authURL)
	})

	if err := a.svc.Providers.Startup(ctx); err != nil {
		runtime.LogError(ctx, fmt.Sprintf("failed to load provider hints: %v", err))
	}

	if err := a.svc.Sessions.Startup(ctx); err != nil {
		// The client stays usable with an empty list; sessions reappear once
		// the backend is reachable again.
		runtime.LogError(ctx, fmt.Sprintf("failed to load sessions: %v", err))
		events.Emit(ctx, events.TopicNotice, events.NewWarn("Could not load your conversations."))
	}

	// Hints are provisional until each provider is re-probed.
	go a.svc.Providers.ProbeAll(ctx)
}

// shutdown is called when the app is closing. Clean up resources here.
func (a *App) shutdown(ctx context.Context) {
	// No poll timer may fire after teardown.
	a.svc.Submissions.CancelAll()

	if a.telemetryCleanup != nil {
		a.telemetryCleanup()
	}
	if a.dbClose != nil {
		if err := a.dbClose(); err != nil {
			runtime.LogError(ctx, fmt.Sprintf("failed to close database: %v", err))
		} else {
			runtime.LogInfo(ctx, "database closed")
		}
		a.dbClose = nil
	}
}

// --- Sessions ---

func (a *App) Sessions() []models.Session {
	return a.svc.Sessions.Sessions()
}

func (a *App) ActiveSession() *models.Session {
	return a.svc.Sessions.Active()
}

func (a *App) SelectSession(id string) error {
	return a.svc.Sessions.Select(a.ctx, id)
}

func (a *App) CreateSession(title string) (*models.Session, error) {
	return a.svc.Sessions.Create(a.ctx, title)
}

// DeleteSession removes a session and reports whether it was the active one,
// so the frontend knows to navigate away.
func (a *App) DeleteSession(id string) (bool, error) {
	a.svc.Submissions.CancelSession(id)
	wasActive, err := a.svc.Sessions.Delete(a.ctx, id)
	if err != nil {
		runtime.LogError(a.ctx, fmt.Sprintf("failed to delete session: %v", err))
		return false, err
	}
	a.svc.Attachments.ClearSession(id)
	return wasActive, nil
}

func (a *App) RenameSession(id, title string) error {
	return a.svc.Sessions.Rename(id, title)
}

// SubmitPrompt runs the full submission pipeline for the active session
// (creating one if needed) and blocks until it settles.
func (a *App) SubmitPrompt(content, modelID, agentID string) (*services.SubmissionOutcome, error) {
	return a.svc.Submissions.Submit(a.ctx, content, modelID, agentID)
}

// --- Catalog ---

func (a *App) Models() []models.AIModel {
	return a.svc.Catalog.Models(a.ctx)
}

func (a *App) Agents() []models.Agent {
	return a.svc.Catalog.Agents(a.ctx)
}

func (a *App) DefaultModelID() string {
	return a.svc.Catalog.DefaultModelID(a.ctx)
}

// --- Providers ---

func (a *App) ProviderConnections() []models.ProviderConnection {
	return a.svc.Providers.Connections()
}

func (a *App) ConnectProvider(key string) (*models.ProviderConnection, error) {
	return a.svc.Providers.Connect(a.ctx, models.ProviderKey(key))
}

func (a *App) DisconnectProvider(key string) (bool, error) {
	return a.svc.Providers.Disconnect(a.ctx, models.ProviderKey(key))
}

// HandleRedirect consumes provider redirect-callback parameters and returns
// the query string with them stripped; the frontend rewrites the visible URL
// with the result.
func (a *App) HandleRedirect(rawQuery string) (string, error) {
	return a.svc.Providers.ConsumeRedirect(a.ctx, rawQuery)
}

// --- Attachments ---

// AttachFiles expands glob patterns into concrete files and uploads them
// against the given session.
func (a *App) AttachFiles(sessionID string, patterns []string) (*api.UploadResult, error) {
	paths, err := a.svc.Attachments.ExpandPatterns(patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matched")
	}
	return a.svc.Attachments.Upload(a.ctx, sessionID, paths)
}

func (a *App) Attachments(sessionID string) []models.AttachedFile {
	return a.svc.Attachments.List(sessionID)
}

func (a *App) RemoveAttachment(sessionID, fileID string) error {
	return a.svc.Attachments.Remove(a.ctx, sessionID, fileID)
}

// SelectFiles opens a native multi-file picker and returns the chosen paths.
func (a *App) SelectFiles() ([]string, error) {
	return runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Attach files",
	})
}

// --- Token & settings ---

func (a *App) StoreToken(token string) error {
	return a.keyring.StoreToken(token)
}

func (a *App) HasToken() bool {
	return a.keyring.HasToken()
}

func (a *App) ClearToken() error {
	return a.keyring.ClearToken()
}

func (a *App) GetAppSettings() (*models.AppSettings, error) {
	return a.svc.AppSettings.Get()
}

func (a *App) UpdateAppSettings(theme, locale, defaultModelID string) (*models.AppSettings, error) {
	return a.svc.AppSettings.Update(theme, locale, defaultModelID)
}

// CopyToClipboard copies message content for the "copy response" affordance.
func (a *App) CopyToClipboard(text string) error {
	return runtime.ClipboardSetText(a.ctx, text)
}
