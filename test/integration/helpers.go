//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	Endpoint  string
	Username  string
	Password  string
	Token     string
	NpctlPath string
	Verbose   bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		Endpoint:  os.Getenv("NPCTL_TEST_ENDPOINT"),
		Username:  os.Getenv("NPCTL_TEST_USERNAME"),
		Password:  os.Getenv("NPCTL_TEST_PASSWORD"),
		Token:     os.Getenv("NPCTL_TEST_TOKEN"),
		NpctlPath: getNpctlPath(),
		Verbose:   os.Getenv("NPCTL_TEST_VERBOSE") == "true",
	}
}

// getNpctlPath determines the path to the npctl binary
func getNpctlPath() string {
	if path := os.Getenv("NPCTL_BINARY_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"../../npctl",
		"./npctl",
		"../npctl",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "npctl"
}

// SkipIfMissingConfig skips the test when the backend is not configured
func (c *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if c.Endpoint == "" {
		t.Skip("NPCTL_TEST_ENDPOINT not set, skipping integration test")
	}

	if c.Token == "" && (c.Username == "" || c.Password == "") {
		t.Skip("no credentials configured, skipping integration test")
	}
}

// CommandRunner executes npctl commands against the configured backend
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
	home   string
}

// NewCommandRunner creates a runner with an isolated config directory so
// tests never touch the operator's ~/.npctl
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config: config,
		t:      t,
		home:   t.TempDir(),
	}
}

// Run executes npctl with the given arguments and returns stdout, stderr
func (r *CommandRunner) Run(args ...string) (string, string, error) {
	r.t.Helper()

	cmd := exec.Command(r.config.NpctlPath, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+r.home,
		"NPCTL_ENDPOINT="+r.config.Endpoint,
	)

	if r.config.Token != "" {
		cmd.Env = append(cmd.Env, "NPCTL_TOKEN="+r.config.Token)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if r.config.Verbose {
		r.t.Logf("npctl %s\nstdout: %s\nstderr: %s", strings.Join(args, " "), stdout.String(), stderr.String())
	}

	return stdout.String(), stderr.String(), err
}

// Authenticate logs the runner in with password credentials when no static
// token is configured
func (r *CommandRunner) Authenticate() error {
	if r.config.Token != "" {
		return nil
	}

	_, stderr, err := r.Run("login",
		"--endpoint", r.config.Endpoint,
		"--username", r.config.Username,
		"--password", r.config.Password,
	)
	if err != nil {
		return fmt.Errorf("login failed: %s: %w", stderr, err)
	}

	return nil
}

// CleanupResource best-effort deletes a test resource, ignoring failures
func (r *CommandRunner) CleanupResource(resource string, args ...string) {
	deleteArgs := append([]string{resource, "delete"}, args...)
	deleteArgs = append(deleteArgs, "--force")
	_, _, _ = r.Run(deleteArgs...)
}

// GenerateTestName returns a name unique enough for parallel test runs
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano()%1000000)
}

// AssertJSONOutput fails the test when the output is not valid JSON
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	var parsed interface{}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, output)
	}
}
