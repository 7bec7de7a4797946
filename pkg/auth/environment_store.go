package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It lets deployments inject the bot token without touching the keychain.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the bot token from the environment
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	token := os.Getenv("IGRELAY_BOT_TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	// The environment holds a single unnamed token
	if name == "" {
		name = DefaultProfile
	}

	return &Credential{
		Name:         name,
		Token:        token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if the environment variable is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment token is set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("IGRELAY_BOT_TOKEN") != ""
}
