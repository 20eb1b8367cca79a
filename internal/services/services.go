package services

import (
	"log/slog"

	"gorm.io/gorm"

	"promptdesk/internal/api"
	"promptdesk/internal/repositories"
)

// Services aggregates the engine's services.
type Services struct {
	Sessions    *SessionService
	Submissions *SubmissionService
	Providers   *ProviderService
	Attachments *AttachmentService
	Catalog     *CatalogService
	AppSettings AppSettingsService
}

// NewServices constructs the service container using repositories backed by db.
func NewServices(db *gorm.DB, apiClient *api.Client, pollOpts PollOptions, logger *slog.Logger) *Services {
	hintRepo := repositories.NewProviderHintRepository(db)
	settingsRepo := repositories.NewAppSettingsRepository(db)

	sessions := NewSessionService(apiClient, logger)
	poller := NewResponsePoller(apiClient, logger)

	return &Services{
		Sessions:    sessions,
		Submissions: NewSubmissionService(sessions, apiClient, poller, pollOpts, logger),
		Providers:   NewProviderService(apiClient, hintRepo, logger),
		Attachments: NewAttachmentService(apiClient, logger),
		Catalog:     NewCatalogService(apiClient, logger),
		AppSettings: NewAppSettingsService(settingsRepo),
	}
}
