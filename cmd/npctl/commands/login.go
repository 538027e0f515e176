package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/netfabric-io/npapi/pkg/npapi"
	"github.com/netfabric-io/npapi/pkg/npclient"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		endpoint     string
		username     string
		password     string
		clientID     string
		clientSecret string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to a policy manager",
		Long:  "Authenticate with a network policy API endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Get endpoint
			originalInput := endpoint
			if endpoint == "" {
				endpoint = viper.GetString("endpoint")
				originalInput = endpoint
			}

			// If still no endpoint, try to use the current one from config
			if endpoint == "" {
				config := loadConfig()
				if config.CurrentEndpoint != "" {
					if _, exists := config.Endpoints[config.CurrentEndpoint]; exists {
						endpoint = config.CurrentEndpoint
						originalInput = config.CurrentEndpoint
					}
				}
			}

			if endpoint == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Endpoint (or short name): ")
				endpoint, _ = reader.ReadString('\n')
				endpoint = strings.TrimSpace(endpoint)
				originalInput = endpoint
			}

			if endpoint == "" {
				return ErrEndpointRequired
			}

			// Resolve short name to endpoint if applicable
			resolvedEndpoint, err := ResolveEndpoint(endpoint)
			if err != nil {
				return err
			}
			endpoint = resolvedEndpoint

			skipTLS := viper.GetBool("skip_tls_verify")

			config := &npapi.Config{
				Endpoint:      endpoint,
				SkipTLSVerify: skipTLS,
			}

			// Determine authentication method
			if clientID != "" && clientSecret != "" {
				config.ClientID = clientID
				config.ClientSecret = clientSecret
			} else {
				if username == "" {
					reader := bufio.NewReader(os.Stdin)
					fmt.Print("Username: ")
					username, _ = reader.ReadString('\n')
					username = strings.TrimSpace(username)
				}

				if password == "" {
					fmt.Print("Password: ")
					bytePassword, err := term.ReadPassword(int(syscall.Stdin))
					if err != nil {
						return fmt.Errorf("failed to read password: %w", err)
					}
					password = string(bytePassword)
					fmt.Println()
				}

				config.Username = username
				config.Password = password
			}

			client, err := npclient.New(context.Background(), config)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}
			defer func() { _ = client.Close() }()

			// Verify credentials against the probe endpoint
			ctx := context.Background()
			info, err := client.NodeInfo(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect to endpoint: %w", err)
			}

			// Determine the key for storing the endpoint config. If the
			// original input was a short name, preserve it.
			configKey := originalInput
			configStruct := loadConfig()
			if _, exists := configStruct.Endpoints[originalInput]; !exists {
				configKey = extractDomainFromEndpoint(config.Endpoint)
			}

			if configStruct.Endpoints == nil {
				configStruct.Endpoints = make(map[string]*EndpointConfig)
			}

			endpointConfig, exists := configStruct.Endpoints[configKey]
			if !exists {
				endpointConfig = &EndpointConfig{
					Endpoint: config.Endpoint,
				}
				configStruct.Endpoints[configKey] = endpointConfig
			}

			// Store authentication information (tokens only, not passwords)
			endpointConfig.Username = username
			endpointConfig.SkipTLSVerify = skipTLS
			endpointConfig.TokenURL = config.TokenURL

			if token, err := client.GetToken(ctx); err == nil && token != "" {
				endpointConfig.Token = token
			}

			// Set as current endpoint if this is the first one
			if configStruct.CurrentEndpoint == "" || len(configStruct.Endpoints) == 1 {
				configStruct.CurrentEndpoint = configKey
			}

			if err := saveConfigStruct(configStruct); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("Successfully logged in to %s\n", config.Endpoint)
			if len(configStruct.Endpoints) == 1 {
				fmt.Printf("Endpoint '%s' set as current target\n", configKey)
			}

			if info.ProductVersion != "" {
				fmt.Printf("Manager version: %s\n", info.ProductVersion)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "endpoint URL or short name from config")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username for authentication")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password for authentication")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().Bool("skip-tls-verify", false, "skip TLS certificate validation")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	var endpointFlag string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Logout from a policy manager",
		Long:  "Clear stored credentials for the current or specified endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			name := endpointFlag
			if name == "" {
				name = config.CurrentEndpoint
			}

			if name == "" {
				return ErrNoEndpointsConfigured
			}

			endpointConfig, exists := config.Endpoints[name]
			if !exists {
				return fmt.Errorf("%w: '%s'", ErrEndpointNotFound, name)
			}

			endpointConfig.Token = ""
			endpointConfig.RefreshToken = ""
			endpointConfig.TokenExpiresAt = nil

			if err := saveConfigStruct(config); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("Successfully logged out from '%s'\n", name)

			return nil
		},
	}

	cmd.Flags().StringVar(&endpointFlag, "endpoint", "", "endpoint to log out from (default: current)")

	return cmd
}
