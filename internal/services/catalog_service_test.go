package services

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"promptdesk/internal/models"
)

func TestModelsFallBackWhenCatalogUnreachable(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	svc := NewCatalogService(client, discardLogger())

	available := svc.Models(context.Background())
	require.Equal(t, fallbackModels, available)
	require.Equal(t, fallbackAgents, svc.Agents(context.Background()))
}

func TestModelsCachedAfterFirstSuccess(t *testing.T) {
	var hits atomic.Int32
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, map[string]any{"data": []models.AIModel{
			{ID: "m1", DisplayName: "One"},
			{ID: "m2", DisplayName: "Two", Default: true},
		}})
	}))
	svc := NewCatalogService(client, discardLogger())

	first := svc.Models(context.Background())
	second := svc.Models(context.Background())
	require.Len(t, first, 2)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), hits.Load(), "catalog is fetched once")
}

func TestFallbackRetriedAfterFailure(t *testing.T) {
	fail := true
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "nope", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"data": []models.AIModel{{ID: "m1", DisplayName: "One"}}})
	}))
	svc := NewCatalogService(client, discardLogger())

	require.Equal(t, fallbackModels, svc.Models(context.Background()))

	// A fallback answer is not cached; the next call reaches the backend.
	fail = false
	available := svc.Models(context.Background())
	require.Len(t, available, 1)
	require.Equal(t, "m1", available[0].ID)
}

func TestDefaultModelID(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []models.AIModel{
			{ID: "m1", DisplayName: "One"},
			{ID: "m2", DisplayName: "Two", Default: true},
		}})
	}))
	svc := NewCatalogService(client, discardLogger())

	require.Equal(t, "m2", svc.DefaultModelID(context.Background()))
}

func TestDefaultModelIDFallsBackToFirst(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": []models.AIModel{
			{ID: "m1", DisplayName: "One"},
			{ID: "m2", DisplayName: "Two"},
		}})
	}))
	svc := NewCatalogService(client, discardLogger())

	require.Equal(t, "m1", svc.DefaultModelID(context.Background()))
}
