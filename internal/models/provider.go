package models

// ProviderKey identifies an external service a user can authorize.
type ProviderKey string

const (
	ProviderGitHub  ProviderKey = "github"
	ProviderGDrive  ProviderKey = "gdrive"
	ProviderDropbox ProviderKey = "dropbox"
	ProviderNotion  ProviderKey = "notion"
)

// AllProviderKeys lists every provider the client knows about, in display order.
func AllProviderKeys() []ProviderKey {
	return []ProviderKey{ProviderGitHub, ProviderGDrive, ProviderDropbox, ProviderNotion}
}

// ValidProviderKey reports whether key names a known provider.
func ValidProviderKey(key ProviderKey) bool {
	switch key {
	case ProviderGitHub, ProviderGDrive, ProviderDropbox, ProviderNotion:
		return true
	}
	return false
}

type ConnectionStatus string

const (
	StatusUnknown          ConnectionStatus = "unknown"
	StatusDisconnected     ConnectionStatus = "disconnected"
	StatusConnecting       ConnectionStatus = "connecting"
	StatusAwaitingRedirect ConnectionStatus = "awaitingRedirect"
	StatusConnected        ConnectionStatus = "connected"
)

// ProviderConnection is the client-visible authorization state for one provider.
type ProviderConnection struct {
	ProviderKey ProviderKey      `json:"providerKey"`
	Status      ConnectionStatus `json:"status"`
}
