package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promptdesk/internal/api"
	"promptdesk/internal/models"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBackend(t *testing.T, handler http.Handler) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, staticToken("test-token"), 5*time.Second, discardLogger())
}

// fakeHintRepo is an in-memory ProviderHintRepository.
type fakeHintRepo struct {
	hints map[string]bool
}

func newFakeHintRepo() *fakeHintRepo {
	return &fakeHintRepo{hints: make(map[string]bool)}
}

func (r *fakeHintRepo) List() ([]models.ProviderHint, error) {
	var out []models.ProviderHint
	for key, connected := range r.hints {
		out = append(out, models.ProviderHint{ProviderKey: key, Connected: connected})
	}
	return out, nil
}

func (r *fakeHintRepo) Get(providerKey string) (*models.ProviderHint, error) {
	connected, ok := r.hints[providerKey]
	if !ok {
		return nil, nil
	}
	return &models.ProviderHint{ProviderKey: providerKey, Connected: connected}, nil
}

func (r *fakeHintRepo) Upsert(providerKey string, connected bool) (*models.ProviderHint, error) {
	r.hints[providerKey] = connected
	return &models.ProviderHint{ProviderKey: providerKey, Connected: connected}, nil
}

func (r *fakeHintRepo) Delete(providerKey string) error {
	delete(r.hints, providerKey)
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
