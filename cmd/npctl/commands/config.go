package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/netfabric-io/npapi/internal/auth"
	"github.com/netfabric-io/npapi/internal/client"
	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
	"github.com/netfabric-io/npapi/pkg/npclient"
)

// Config represents the CLI configuration.
type Config struct {
	// Multi-endpoint configuration
	Endpoints       map[string]*EndpointConfig `json:"endpoints,omitempty"        yaml:"endpoints,omitempty"`
	CurrentEndpoint string                     `json:"current_endpoint,omitempty" yaml:"current_endpoint,omitempty"`

	// Global settings
	Output string `json:"output" yaml:"output"`
}

// EndpointConfig represents configuration for a single policy manager
// endpoint.
type EndpointConfig struct {
	Endpoint       string     `json:"endpoint"                   yaml:"endpoint"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	RefreshToken   string     `json:"refresh_token,omitempty"    yaml:"refresh_token,omitempty"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"   yaml:"last_refreshed,omitempty"`
	Username       string     `json:"username,omitempty"         yaml:"username,omitempty"`
	TokenURL       string     `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	SkipTLSVerify  bool       `json:"skip_tls_verify"            yaml:"skip_tls_verify"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage npctl configuration including endpoints and settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigClearCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			output := viper.GetString("output")
			switch output {
			case constants.FormatJSON:
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")

				return encoder.Encode(config)
			case constants.FormatYAML:
				encoder := yaml.NewEncoder(os.Stdout)

				return encoder.Encode(config)
			default:
				return displayConfigTable(config)
			}
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	var endpointFlag string

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a specific configuration value (global or endpoint-specific)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]

			config := loadConfig()

			if endpointFlag != "" {
				return setEndpointConfig(config, endpointFlag, key, value)
			}

			return setGlobalConfig(config, key, value)
		},
	}

	cmd.Flags().StringVar(&endpointFlag, "endpoint", "", "target specific endpoint for configuration")

	return cmd
}

func newConfigUnsetCommand() *cobra.Command {
	var endpointFlag string

	cmd := &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a specific configuration value (global or endpoint-specific)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			config := loadConfig()

			if endpointFlag != "" {
				return unsetEndpointConfig(config, endpointFlag, key)
			}

			return unsetGlobalConfig(config, key)
		},
	}

	cmd.Flags().StringVar(&endpointFlag, "endpoint", "", "target specific endpoint for configuration")

	return cmd
}

func newConfigClearCommand() *cobra.Command {
	var endpointFlag string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear configuration",
		Long:  "Remove all configuration settings (global or endpoint-specific)",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if endpointFlag != "" {
				if _, exists := config.Endpoints[endpointFlag]; !exists {
					return fmt.Errorf("%w: '%s'", ErrEndpointNotFound, endpointFlag)
				}

				delete(config.Endpoints, endpointFlag)

				if config.CurrentEndpoint == endpointFlag {
					config.CurrentEndpoint = ""
				}

				err := saveConfigStruct(config)
				if err != nil {
					return fmt.Errorf("failed to save config: %w", err)
				}

				fmt.Printf("Cleared configuration for endpoint '%s'\n", endpointFlag)

				return nil
			}

			configFile := viper.ConfigFileUsed()
			if configFile == "" {
				home, _ := os.UserHomeDir()
				configFile = filepath.Join(home, ".npctl", "config.yml")
			}

			err := os.Remove(configFile)
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove config file: %w", err)
			}

			fmt.Println("Cleared all configuration")

			return nil
		},
	}

	cmd.Flags().StringVar(&endpointFlag, "endpoint", "", "clear configuration for specific endpoint only")

	return cmd
}

func displayConfigTable(config *Config) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Setting", "Value")

	current := config.CurrentEndpoint
	if current == "" {
		current = NotAvailable
	}

	_ = table.Append("Current endpoint", current)
	_ = table.Append("Output", config.Output)

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if len(config.Endpoints) == 0 {
		return nil
	}

	fmt.Println()

	endpointTable := tablewriter.NewWriter(os.Stdout)
	endpointTable.Header("Name", "Endpoint", "User", "Token expires")

	for name, endpointConfig := range config.Endpoints {
		expires := NotAvailable
		if endpointConfig.TokenExpiresAt != nil {
			expires = endpointConfig.TokenExpiresAt.Format(time.RFC3339)
		}

		username := endpointConfig.Username
		if username == "" {
			username = NotAvailable
		}

		_ = endpointTable.Append(name, endpointConfig.Endpoint, username, expires)
	}

	err = endpointTable.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func loadConfig() *Config {
	config := &Config{
		Output:          viper.GetString("output"),
		CurrentEndpoint: viper.GetString("current_endpoint"),
		Endpoints:       make(map[string]*EndpointConfig),
	}

	endpointsRaw := viper.GetStringMap("endpoints")
	for name, endpointRaw := range endpointsRaw {
		endpointMap, ok := endpointRaw.(map[string]interface{})
		if !ok {
			continue
		}

		config.Endpoints[name] = parseEndpointConfig(endpointMap)
	}

	return config
}

// parseEndpointConfig parses endpoint configuration from a map.
func parseEndpointConfig(endpointMap map[string]interface{}) *EndpointConfig {
	endpointConfig := &EndpointConfig{}

	stringFields := map[string]*string{
		"endpoint":      &endpointConfig.Endpoint,
		"token":         &endpointConfig.Token,
		"refresh_token": &endpointConfig.RefreshToken,
		"username":      &endpointConfig.Username,
		"token_url":     &endpointConfig.TokenURL,
	}

	for key, field := range stringFields {
		if value, ok := endpointMap[key].(string); ok {
			*field = value
		}
	}

	if skipTLS, ok := endpointMap["skip_tls_verify"].(bool); ok {
		endpointConfig.SkipTLSVerify = skipTLS
	}

	if expiresAtStr, ok := endpointMap["token_expires_at"].(string); ok && expiresAtStr != "" {
		t, err := time.Parse(time.RFC3339, expiresAtStr)
		if err == nil {
			endpointConfig.TokenExpiresAt = &t
		}
	}

	if lastRefreshedStr, ok := endpointMap["last_refreshed"].(string); ok && lastRefreshedStr != "" {
		t, err := time.Parse(time.RFC3339, lastRefreshedStr)
		if err == nil {
			endpointConfig.LastRefreshed = &t
		}
	}

	return endpointConfig
}

func saveConfigStruct(config *Config) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}

		configDir := filepath.Join(home, ".npctl")

		err = os.MkdirAll(configDir, constants.ConfigDirPerm)
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		configFile = filepath.Join(configDir, "config.yml")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setGlobalConfig sets a global configuration value.
func setGlobalConfig(config *Config, key, value string) error {
	switch key {
	case "output":
		config.Output = value
	case "current_endpoint":
		if _, exists := config.Endpoints[value]; !exists {
			return fmt.Errorf("%w: '%s'", ErrEndpointNotFound, value)
		}

		config.CurrentEndpoint = value
	default:
		return fmt.Errorf("%w: %s. Use --endpoint for endpoint-specific settings", ErrUnknownConfigKey, key)
	}

	err := saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Set %s to %s\n", key, value)

	return nil
}

// setEndpointConfig sets configuration for a specific endpoint.
func setEndpointConfig(config *Config, endpointName, key, value string) error {
	endpointConfig, exists := config.Endpoints[endpointName]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrEndpointNotFound, endpointName)
	}

	switch key {
	case "endpoint":
		endpointConfig.Endpoint = value
	case "username":
		endpointConfig.Username = value
	case "token":
		endpointConfig.Token = value
	case "token_url":
		endpointConfig.TokenURL = value
	case "skip_tls_verify":
		switch value {
		case "true", "1":
			endpointConfig.SkipTLSVerify = true
		case "false", "0":
			endpointConfig.SkipTLSVerify = false
		default:
			return ErrInvalidEnabledFlag
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	err := saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Set %s for endpoint '%s'\n", key, endpointName)

	return nil
}

// unsetGlobalConfig removes a global configuration value.
func unsetGlobalConfig(config *Config, key string) error {
	switch key {
	case "output":
		config.Output = OutputFormatTable
	case "current_endpoint":
		config.CurrentEndpoint = ""
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	err := saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Unset %s\n", key)

	return nil
}

// unsetEndpointConfig removes configuration for a specific endpoint.
func unsetEndpointConfig(config *Config, endpointName, key string) error {
	endpointConfig, exists := config.Endpoints[endpointName]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrEndpointNotFound, endpointName)
	}

	switch key {
	case "token":
		endpointConfig.Token = ""
		endpointConfig.TokenExpiresAt = nil
		endpointConfig.RefreshToken = ""
	case "username":
		endpointConfig.Username = ""
	case "token_url":
		endpointConfig.TokenURL = ""
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	err := saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Unset %s for endpoint '%s'\n", key, endpointName)

	return nil
}

// extractDomainFromEndpoint extracts the domain portion from an endpoint URL,
// used as the key in the endpoints map.
func extractDomainFromEndpoint(endpoint string) string {
	domain := strings.TrimPrefix(endpoint, "https://")
	domain = strings.TrimPrefix(domain, "http://")

	if idx := strings.Index(domain, "/"); idx != -1 {
		domain = domain[:idx]
	}

	if idx := strings.Index(domain, ":"); idx != -1 {
		domain = domain[:idx]
	}

	return domain
}

// getCurrentEndpointConfig returns the configuration for the currently
// targeted endpoint.
func getCurrentEndpointConfig() (*EndpointConfig, error) {
	config := loadConfig()

	if config.CurrentEndpoint == "" {
		if len(config.Endpoints) == 0 {
			return nil, fmt.Errorf("%w, use 'npctl login' to add one", ErrNoEndpointsConfigured)
		}

		for name := range config.Endpoints {
			config.CurrentEndpoint = name

			break
		}
	}

	endpointConfig, exists := config.Endpoints[config.CurrentEndpoint]
	if !exists {
		return nil, fmt.Errorf("%w in configuration: '%s'", ErrCurrentEndpointNotFound, config.CurrentEndpoint)
	}

	return endpointConfig, nil
}

// getEndpointConfigByFlag returns endpoint config based on the command line
// flag or the current endpoint.
func getEndpointConfigByFlag(endpointFlag string) (*EndpointConfig, error) {
	config := loadConfig()

	if endpointFlag != "" {
		// First try to resolve it as a short name
		if endpointConfig, exists := config.Endpoints[endpointFlag]; exists {
			return endpointConfig, nil
		}

		// Otherwise look for it by endpoint URL
		for _, endpointConfig := range config.Endpoints {
			if endpointConfig.Endpoint == endpointFlag {
				return endpointConfig, nil
			}
		}

		return nil, fmt.Errorf("%w, use 'npctl login' first: '%s'", ErrEndpointNotFound, endpointFlag)
	}

	return getCurrentEndpointConfig()
}

// ResolveEndpoint resolves a short name or returns the endpoint if it's
// already a URL.
func ResolveEndpoint(nameOrEndpoint string) (string, error) {
	if nameOrEndpoint == "" {
		return "", ErrEndpointRequired
	}

	config := loadConfig()

	if endpointConfig, exists := config.Endpoints[nameOrEndpoint]; exists {
		return endpointConfig.Endpoint, nil
	}

	return nameOrEndpoint, nil
}

// CreateClientWithEndpoint creates a policy API client using the specified
// endpoint or the current one, refreshing tokens through the config file.
func CreateClientWithEndpoint(endpointFlag string) (npapi.Client, error) {
	endpointConfig, err := getEndpointConfigByFlag(endpointFlag)
	if err != nil {
		return nil, err
	}

	if endpointConfig.Endpoint == "" {
		return nil, fmt.Errorf("%w, use 'npctl login' first", ErrEndpointRequired)
	}

	domain, err := findEndpointDomain(endpointConfig)
	if err != nil {
		return nil, err
	}

	tokenManager := createTokenManager(endpointConfig, domain)
	clientConfig := buildClientConfig(endpointConfig)

	if tokenManager != nil {
		npClient, err := client.NewWithTokenManager(clientConfig, tokenManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create client with token manager: %w", err)
		}

		return npClient, nil
	}

	if endpointConfig.Token != "" {
		clientConfig.AccessToken = endpointConfig.Token

		npClient, err := npclient.New(context.Background(), clientConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}

		return npClient, nil
	}

	return nil, fmt.Errorf("%w, use 'npctl login' first", ErrNotAuthenticated)
}

func findEndpointDomain(endpointConfig *EndpointConfig) (string, error) {
	config := loadConfig()

	for domain, cfg := range config.Endpoints {
		if cfg.Endpoint == endpointConfig.Endpoint {
			return domain, nil
		}
	}

	return "", ErrCouldNotDetermineEndpoint
}

func createTokenManager(endpointConfig *EndpointConfig, domain string) auth.TokenManager {
	if endpointConfig.RefreshToken == "" && endpointConfig.Username == "" {
		return nil
	}

	oauth2Config := &auth.OAuth2Config{
		TokenURL:     resolveTokenURL(endpointConfig),
		Username:     endpointConfig.Username,
		RefreshToken: endpointConfig.RefreshToken,
		AccessToken:  endpointConfig.Token,
	}

	initialExpiry := time.Time{}
	if endpointConfig.TokenExpiresAt != nil {
		initialExpiry = *endpointConfig.TokenExpiresAt
	}

	return auth.NewConfigTokenManager(oauth2Config, NewConfigPersister(), domain, endpointConfig.Token, initialExpiry)
}

func resolveTokenURL(endpointConfig *EndpointConfig) string {
	if endpointConfig.TokenURL != "" {
		return endpointConfig.TokenURL
	}

	return strings.TrimSuffix(endpointConfig.Endpoint, "/") + constants.TokenPath
}

func buildClientConfig(endpointConfig *EndpointConfig) *npapi.Config {
	return &npapi.Config{
		Endpoint:      endpointConfig.Endpoint,
		Username:      endpointConfig.Username,
		TokenURL:      resolveTokenURL(endpointConfig),
		SkipTLSVerify: endpointConfig.SkipTLSVerify,
	}
}
