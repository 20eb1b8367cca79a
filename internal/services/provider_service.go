package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"promptdesk/internal/api"
	"promptdesk/internal/events"
	"promptdesk/internal/models"
	"promptdesk/internal/repositories"
)

// ProviderService runs one connection state machine per provider key and
// owns all ProviderConnection state. The persisted hint rows are advisory
// only; the backend is re-probed on load.
type ProviderService struct {
	api     *api.Client
	hints   repositories.ProviderHintRepository
	logger  *slog.Logger
	openURL func(ctx context.Context, authURL string)

	mu               sync.RWMutex
	states           map[models.ProviderKey]models.ConnectionStatus
	redirectConsumed bool
}

func NewProviderService(apiClient *api.Client, hints repositories.ProviderHintRepository, logger *slog.Logger) *ProviderService {
	if logger == nil {
		logger = slog.Default()
	}
	states := make(map[models.ProviderKey]models.ConnectionStatus)
	for _, key := range models.AllProviderKeys() {
		states[key] = models.StatusUnknown
	}
	return &ProviderService{
		api:    apiClient,
		hints:  hints,
		logger: logger,
		states: states,
	}
}

// SetNavigator wires the function that sends the whole client to an external
// authorization URL. The shell passes the runtime browser opener; tests leave
// it unset.
func (s *ProviderService) SetNavigator(f func(ctx context.Context, authURL string)) {
	s.openURL = f
}

// Startup seeds each provider's state from its persisted hint. Hints are
// last-known values, refined by probes afterwards.
func (s *ProviderService) Startup(ctx context.Context) error {
	if s.hints == nil {
		return nil
	}
	hints, err := s.hints.List()
	if err != nil {
		return fmt.Errorf("load provider hints: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, hint := range hints {
		key := models.ProviderKey(hint.ProviderKey)
		if !models.ValidProviderKey(key) {
			continue
		}
		if hint.Connected {
			s.states[key] = models.StatusConnected
		} else {
			s.states[key] = models.StatusDisconnected
		}
	}
	return nil
}

// Connections returns the current state for every provider, in display order.
func (s *ProviderService) Connections() []models.ProviderConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := models.AllProviderKeys()
	out := make([]models.ProviderConnection, 0, len(keys))
	for _, key := range keys {
		out = append(out, models.ProviderConnection{ProviderKey: key, Status: s.states[key]})
	}
	return out
}

// Status returns one provider's connection state.
func (s *ProviderService) Status(key models.ProviderKey) (models.ConnectionStatus, error) {
	if !models.ValidProviderKey(key) {
		return "", fmt.Errorf("unknown provider %q", key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[key], nil
}

// Probe asks the backend for the authorization status. On failure the prior
// state is left untouched: failing open to last-known avoids spurious
// disconnect flicker on transient network errors.
func (s *ProviderService) Probe(ctx context.Context, key models.ProviderKey) error {
	if !models.ValidProviderKey(key) {
		return fmt.Errorf("unknown provider %q", key)
	}
	authorized, err := s.api.AuthStatus(ctx, key)
	if err != nil {
		s.logger.Warn("provider status probe failed", "provider", key, "error", err)
		return err
	}
	if authorized {
		s.setState(ctx, key, models.StatusConnected)
	} else {
		s.setState(ctx, key, models.StatusDisconnected)
	}
	s.persistHint(key, authorized)
	return nil
}

// ProbeAll reconciles every provider against the backend.
func (s *ProviderService) ProbeAll(ctx context.Context) {
	for _, key := range models.AllProviderKeys() {
		if err := s.Probe(ctx, key); err != nil {
			continue
		}
	}
}

// Connect initiates the authorization flow. Either the backend reports the
// authorization is already satisfied, or it hands back an external URL the
// whole client must navigate to (the redirect leg).
func (s *ProviderService) Connect(ctx context.Context, key models.ProviderKey) (*models.ProviderConnection, error) {
	if !models.ValidProviderKey(key) {
		return nil, fmt.Errorf("unknown provider %q", key)
	}

	s.setState(ctx, key, models.StatusConnecting)

	res, err := s.api.AuthInit(ctx, key)
	if err != nil {
		s.setState(ctx, key, models.StatusDisconnected)
		events.Emit(ctx, events.TopicNotice, events.NewError(fmt.Sprintf("Connecting %s failed.", key)))
		return nil, fmt.Errorf("init %s authorization: %w", key, err)
	}

	switch {
	case res.AuthRequired && res.AuthURL != "":
		s.setState(ctx, key, models.StatusAwaitingRedirect)
		if s.openURL != nil {
			s.openURL(ctx, res.AuthURL)
		}
	case res.Success:
		s.setState(ctx, key, models.StatusConnected)
		s.persistHint(key, true)
		events.Emit(ctx, events.TopicNotice, events.NewSuccess(fmt.Sprintf("%s is connected.", key)))
	default:
		s.setState(ctx, key, models.StatusDisconnected)
		events.Emit(ctx, events.TopicNotice, events.NewError(fmt.Sprintf("Connecting %s failed.", key)))
		return nil, fmt.Errorf("backend refused %s authorization", key)
	}

	conn := models.ProviderConnection{ProviderKey: key}
	conn.Status, _ = s.Status(key)
	return &conn, nil
}

// Disconnect revokes a provider. Local state flips to Disconnected no matter
// what the backend says: the user asked to disconnect and gets local
// confirmation even when the server-side revoke is delayed. A backend failure
// only downgrades the notice to success-with-caveat.
func (s *ProviderService) Disconnect(ctx context.Context, key models.ProviderKey) (advisory bool, err error) {
	if !models.ValidProviderKey(key) {
		return false, fmt.Errorf("unknown provider %q", key)
	}

	backendErr := s.api.DisconnectProvider(ctx, key)

	s.setState(ctx, key, models.StatusDisconnected)
	s.persistHint(key, false)

	if backendErr != nil {
		s.logger.Warn("provider disconnect failed on backend", "provider", key, "error", backendErr)
		events.Emit(ctx, events.TopicNotice, events.NewWarn(
			fmt.Sprintf("%s disconnected locally; the backend revoke may be delayed.", key)))
		return true, nil
	}
	events.Emit(ctx, events.TopicNotice, events.NewSuccess(fmt.Sprintf("%s is disconnected.", key)))
	return false, nil
}

// ConsumeRedirect processes the query parameters the backend appends after an
// external authorization flow (connection, status, message) and returns the
// query with those parameters stripped so the visible URL can be rewritten.
// It runs at most once per load; without parameters it is a no-op.
func (s *ProviderService) ConsumeRedirect(ctx context.Context, rawQuery string) (string, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery, fmt.Errorf("parse redirect query: %w", err)
	}

	connection := values.Get("connection")
	if connection == "" {
		return rawQuery, nil
	}

	status := values.Get("status")
	message := values.Get("message")
	values.Del("connection")
	values.Del("status")
	values.Del("message")
	stripped := values.Encode()

	s.mu.Lock()
	if s.redirectConsumed {
		// Replayed parameters must not re-trigger a connection event.
		s.mu.Unlock()
		return stripped, nil
	}
	s.redirectConsumed = true
	s.mu.Unlock()

	key := models.ProviderKey(connection)
	if !models.ValidProviderKey(key) {
		s.logger.Warn("redirect for unknown provider", "provider", connection)
		return stripped, fmt.Errorf("unknown provider %q", connection)
	}

	if status == "success" {
		s.setState(ctx, key, models.StatusConnected)
		s.persistHint(key, true)
		events.Emit(ctx, events.TopicNotice, events.NewSuccess(fmt.Sprintf("%s is connected.", key)))
	} else {
		s.setState(ctx, key, models.StatusDisconnected)
		if message == "" {
			message = fmt.Sprintf("Connecting %s failed.", key)
		}
		events.Emit(ctx, events.TopicNotice, events.NewError(message))
	}
	return stripped, nil
}

func (s *ProviderService) setState(ctx context.Context, key models.ProviderKey, status models.ConnectionStatus) {
	s.mu.Lock()
	s.states[key] = status
	s.mu.Unlock()

	notice := events.NewInfo(string(status))
	notice.Metadata = map[string]string{"provider": string(key), "status": string(status)}
	events.Emit(ctx, events.TopicProviderStatus, notice)
}

// persistHint refreshes the locally persisted last-known flag. Hint writes
// are best-effort; a failed write only costs a probe on the next load.
func (s *ProviderService) persistHint(key models.ProviderKey, connected bool) {
	if s.hints == nil {
		return
	}
	if _, err := s.hints.Upsert(string(key), connected); err != nil {
		s.logger.Warn("persist provider hint failed", "provider", key, "error", err)
	}
}
