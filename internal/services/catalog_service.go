package services

import (
	"context"
	"log/slog"
	"sync"

	"promptdesk/internal/api"
	"promptdesk/internal/models"
)

// fallbackModels keeps the composer usable when the catalog endpoint is
// unreachable; ids must exist on every deployment.
var fallbackModels = []models.AIModel{
	{ID: "standard", DisplayName: "Standard", Default: true},
	{ID: "advanced", DisplayName: "Advanced"},
}

var fallbackAgents = []models.Agent{
	{ID: "general", Name: "General assistant"},
}

// CatalogService fetches the model and agent catalogs, caching the first
// successful fetch and falling back to a minimal hardcoded list on failure.
type CatalogService struct {
	api    *api.Client
	logger *slog.Logger

	mu            sync.RWMutex
	models        []models.AIModel
	agents        []models.Agent
	modelsFetched bool
	agentsFetched bool
}

func NewCatalogService(apiClient *api.Client, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{api: apiClient, logger: logger}
}

// Models returns the generation models, fetching once from the backend.
// Failures are non-fatal and answered with the fallback list.
func (s *CatalogService) Models(ctx context.Context) []models.AIModel {
	s.mu.RLock()
	if s.modelsFetched {
		defer s.mu.RUnlock()
		return append([]models.AIModel(nil), s.models...)
	}
	s.mu.RUnlock()

	fetched, err := s.api.ListModels(ctx)
	if err != nil || len(fetched) == 0 {
		s.logger.Warn("model catalog fetch failed, using fallback", "error", err)
		return append([]models.AIModel(nil), fallbackModels...)
	}

	s.mu.Lock()
	s.models = fetched
	s.modelsFetched = true
	s.mu.Unlock()
	return append([]models.AIModel(nil), fetched...)
}

// Agents returns the specialized handlers, with the same fallback policy.
func (s *CatalogService) Agents(ctx context.Context) []models.Agent {
	s.mu.RLock()
	if s.agentsFetched {
		defer s.mu.RUnlock()
		return append([]models.Agent(nil), s.agents...)
	}
	s.mu.RUnlock()

	fetched, err := s.api.ListAgents(ctx)
	if err != nil || len(fetched) == 0 {
		s.logger.Warn("agent catalog fetch failed, using fallback", "error", err)
		return append([]models.Agent(nil), fallbackAgents...)
	}

	s.mu.Lock()
	s.agents = fetched
	s.agentsFetched = true
	s.mu.Unlock()
	return append([]models.Agent(nil), fetched...)
}

// DefaultModelID picks the model preselected in the composer.
func (s *CatalogService) DefaultModelID(ctx context.Context) string {
	available := s.Models(ctx)
	for _, m := range available {
		if m.Default {
			return m.ID
		}
	}
	if len(available) > 0 {
		return available[0].ID
	}
	return ""
}
