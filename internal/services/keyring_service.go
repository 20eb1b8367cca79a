package services

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringServiceName  = "promptdesk"
	backendTokenAccount = "backend"
)

// KeyringService stores the backend bearer token in the OS keyring. Primary
// authentication happens in an external identity provider; this only holds
// the resulting token between runs.
type KeyringService struct {
}

func NewKeyringService() *KeyringService {
	return &KeyringService{}
}

func (s *KeyringService) StoreToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(keyringServiceName, backendTokenAccount, token)
}

// Token satisfies api.TokenSource.
func (s *KeyringService) Token() (string, error) {
	token, err := keyring.Get(keyringServiceName, backendTokenAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

func (s *KeyringService) HasToken() bool {
	token, err := s.Token()
	return err == nil && token != ""
}

func (s *KeyringService) ClearToken() error {
	err := keyring.Delete(keyringServiceName, backendTokenAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
