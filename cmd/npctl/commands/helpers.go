package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// Common string constants used throughout the commands package.
const (
	NotAvailable = "N/A"

	// Output formats.
	OutputFormatJSON  = constants.FormatJSON
	OutputFormatYAML  = constants.FormatYAML
	OutputFormatTable = constants.FormatTable

	// timeRounding trims durations for table output.
	timeRounding = time.Millisecond
)

// Common static errors used throughout the commands package.
var (
	ErrEndpointRequired          = errors.New("endpoint is required")
	ErrEndpointNotFound          = errors.New("endpoint not found")
	ErrNoEndpointsConfigured     = errors.New("no endpoints configured")
	ErrCurrentEndpointNotFound   = errors.New("current endpoint not found")
	ErrEndpointConfigNotFound    = errors.New("endpoint configuration not found")
	ErrNotAuthenticated          = errors.New("not authenticated")
	ErrUnknownConfigKey          = errors.New("unknown configuration key")
	ErrDomainRequired            = errors.New("domain is required (use --domain)")
	ErrBatchFileRequired         = errors.New("batch file is required (use --file)")
	ErrInvalidBatchOperation     = errors.New("invalid batch operation")
	ErrInvalidEnabledFlag        = errors.New("enabled flag must be 'true' or 'false'")
	ErrCouldNotDetermineEndpoint = errors.New("could not determine endpoint domain")
)

// StandardJSONRenderer creates a standard JSON encoder.
func StandardJSONRenderer[T any](data T) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer creates a standard YAML encoder.
func StandardYAMLRenderer[T any](data T) error {
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(constants.JSONIndentSize)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return nil
}

// renderResource emits a single resource as JSON or YAML when requested,
// returning false when the caller should render its own table.
func renderResource[T any](data T) (bool, error) {
	switch viper.GetString("output") {
	case OutputFormatJSON:
		return true, StandardJSONRenderer(data)
	case OutputFormatYAML:
		return true, StandardYAMLRenderer(data)
	default:
		return false, nil
	}
}

// buildListParams assembles query parameters for list commands.
func buildListParams(pageSize int, cursor string) *npapi.QueryParams {
	if pageSize == constants.StandardPageSize && cursor == "" {
		return nil
	}

	params := npapi.NewQueryParams()
	if pageSize != constants.StandardPageSize {
		params.WithPageSize(pageSize)
	}

	if cursor != "" {
		params.WithCursor(cursor)
	}

	return params
}

// displayName falls back to the ID when a display name is unset.
func displayName(obj npapi.PolicyObject) string {
	if obj.DisplayName != "" {
		return obj.DisplayName
	}

	return obj.ID
}

// revisionString renders an optional revision for table output.
func revisionString(obj npapi.PolicyObject) string {
	if obj.Revision == nil {
		return NotAvailable
	}

	return fmt.Sprintf("%d", *obj.Revision)
}

// confirmDelete prompts for interactive confirmation and reports whether the
// operator answered yes.
func confirmDelete(kind, name string) bool {
	fmt.Printf("Really delete %s '%s'? (y/N): ", kind, name)

	var answer string

	_, _ = fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Cancelled")

		return false
	}

	return true
}
