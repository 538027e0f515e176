package commands

import (
	"fmt"
	"sync"
	"time"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// UpdateEndpointToken updates the token and related metadata in the config.
func (p *ConfigPersister) UpdateEndpointToken(endpoint, token string, expiresAt time.Time, refreshToken string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()

	endpointConfig, exists := config.Endpoints[endpoint]
	if !exists {
		return fmt.Errorf("endpoint configuration for '%s': %w", endpoint, ErrEndpointConfigNotFound)
	}

	endpointConfig.Token = token
	if !expiresAt.IsZero() {
		endpointConfig.TokenExpiresAt = &expiresAt
	}

	if refreshToken != "" {
		endpointConfig.RefreshToken = refreshToken
	}

	now := time.Now()
	endpointConfig.LastRefreshed = &now

	return saveConfigStruct(config)
}
