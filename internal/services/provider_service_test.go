package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"promptdesk/internal/events"
	"promptdesk/internal/models"
)

func captureNotices(t *testing.T) *[]events.Notice {
	t.Helper()
	var captured []events.Notice
	events.SetCustomEmitter(func(ctx context.Context, name string, notice events.Notice) {
		if name == events.TopicNotice {
			captured = append(captured, notice)
		}
	})
	t.Cleanup(func() { events.SetCustomEmitter(nil) })
	return &captured
}

func TestConnectAwaitingRedirect(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/github/auth", r.URL.Path)
		writeJSON(w, map[string]any{"success": true, "authRequired": true, "authUrl": "https://x"})
	}))
	svc := NewProviderService(client, newFakeHintRepo(), discardLogger())

	var navigatedTo string
	svc.SetNavigator(func(ctx context.Context, authURL string) { navigatedTo = authURL })

	conn, err := svc.Connect(context.Background(), models.ProviderGitHub)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingRedirect, conn.Status)
	require.Equal(t, "https://x", navigatedTo)

	// Connected only arrives via a later redirect callback.
	status, err := svc.Status(models.ProviderGitHub)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingRedirect, status)
}

func TestConnectAlreadyAuthorized(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"success": true, "authRequired": false})
	}))
	hints := newFakeHintRepo()
	svc := NewProviderService(client, hints, discardLogger())

	conn, err := svc.Connect(context.Background(), models.ProviderNotion)
	require.NoError(t, err)
	require.Equal(t, models.StatusConnected, conn.Status)
	require.True(t, hints.hints["notion"], "hint is refreshed on connect")
}

func TestConnectBackendFailure(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	svc := NewProviderService(client, newFakeHintRepo(), discardLogger())

	_, err := svc.Connect(context.Background(), models.ProviderDropbox)
	require.Error(t, err)
	status, _ := svc.Status(models.ProviderDropbox)
	require.Equal(t, models.StatusDisconnected, status)
}

func TestRedirectConsumptionIsIdempotent(t *testing.T) {
	client := newTestBackend(t, http.NotFoundHandler())
	hints := newFakeHintRepo()
	svc := NewProviderService(client, hints, discardLogger())

	stripped, err := svc.ConsumeRedirect(context.Background(), "connection=github&status=success&tab=chat")
	require.NoError(t, err)
	require.Equal(t, "tab=chat", stripped, "connection parameters are stripped")

	status, _ := svc.Status(models.ProviderGitHub)
	require.Equal(t, models.StatusConnected, status)
	require.True(t, hints.hints["github"])

	// Replaying the parameters must not re-trigger a connection event.
	stripped, err = svc.ConsumeRedirect(context.Background(), "connection=github&status=error&message=boom")
	require.NoError(t, err)
	require.Empty(t, stripped)
	status, _ = svc.Status(models.ProviderGitHub)
	require.Equal(t, models.StatusConnected, status, "second consumption is a no-op")
}

func TestRedirectWithoutParamsIsNoop(t *testing.T) {
	client := newTestBackend(t, http.NotFoundHandler())
	svc := NewProviderService(client, newFakeHintRepo(), discardLogger())

	stripped, err := svc.ConsumeRedirect(context.Background(), "tab=chat")
	require.NoError(t, err)
	require.Equal(t, "tab=chat", stripped)

	for _, conn := range svc.Connections() {
		require.Equal(t, models.StatusUnknown, conn.Status)
	}
}

func TestRedirectErrorSurfacesMessage(t *testing.T) {
	client := newTestBackend(t, http.NotFoundHandler())
	svc := NewProviderService(client, newFakeHintRepo(), discardLogger())
	notices := captureNotices(t)

	_, err := svc.ConsumeRedirect(context.Background(), "connection=gdrive&status=error&message=access+denied")
	require.NoError(t, err)

	status, _ := svc.Status(models.ProviderGDrive)
	require.Equal(t, models.StatusDisconnected, status)
	require.NotEmpty(t, *notices)
	last := (*notices)[len(*notices)-1]
	require.Equal(t, events.NoticeError, last.Type)
	require.Equal(t, "access denied", last.Message)
}

func TestDisconnectBackendFailureIsAdvisory(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	hints := newFakeHintRepo()
	hints.hints["gdrive"] = true
	svc := NewProviderService(client, hints, discardLogger())
	require.NoError(t, svc.Startup(context.Background()))
	notices := captureNotices(t)

	advisory, err := svc.Disconnect(context.Background(), models.ProviderGDrive)
	require.NoError(t, err, "a failed backend revoke is not an error to the user")
	require.True(t, advisory)

	status, _ := svc.Status(models.ProviderGDrive)
	require.Equal(t, models.StatusDisconnected, status, "local state flips regardless of backend outcome")
	require.False(t, hints.hints["gdrive"])

	require.NotEmpty(t, *notices)
	require.Equal(t, events.NoticeWarn, (*notices)[len(*notices)-1].Type,
		"success-with-caveat, not an error notice")
}

func TestProbeFailureLeavesLastKnownState(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	hints := newFakeHintRepo()
	hints.hints["github"] = true
	svc := NewProviderService(client, hints, discardLogger())
	require.NoError(t, svc.Startup(context.Background()))

	require.Error(t, svc.Probe(context.Background(), models.ProviderGitHub))

	status, _ := svc.Status(models.ProviderGitHub)
	require.Equal(t, models.StatusConnected, status,
		"probe failure fails open to last-known, not to Disconnected")
}

func TestProbeRefreshesStateAndHint(t *testing.T) {
	client := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"authorized": true})
	}))
	hints := newFakeHintRepo()
	svc := NewProviderService(client, hints, discardLogger())

	require.NoError(t, svc.Probe(context.Background(), models.ProviderGitHub))

	status, _ := svc.Status(models.ProviderGitHub)
	require.Equal(t, models.StatusConnected, status)
	require.True(t, hints.hints["github"])
}

func TestUnknownProviderRejected(t *testing.T) {
	client := newTestBackend(t, http.NotFoundHandler())
	svc := NewProviderService(client, newFakeHintRepo(), discardLogger())

	_, err := svc.Connect(context.Background(), "mystery")
	require.Error(t, err)
	_, err = svc.Disconnect(context.Background(), "mystery")
	require.Error(t, err)
	require.Error(t, svc.Probe(context.Background(), "mystery"))
}
