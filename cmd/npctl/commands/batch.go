package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/netfabric-io/npapi/pkg/npapi"
)

// batchFile is the YAML document accepted by 'npctl batch apply'.
type batchFile struct {
	Rollback   *bool            `yaml:"rollback,omitempty"`
	Operations []batchOperation `yaml:"operations"`
}

type batchOperation struct {
	ID        string      `yaml:"id,omitempty"`
	Method    string      `yaml:"method"`
	Path      string      `yaml:"path"`
	Body      interface{} `yaml:"body,omitempty"`
	RetrySafe bool        `yaml:"retry_safe,omitempty"`
}

// NewBatchCommand creates the batch command group.
func NewBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Execute batches of policy operations",
		Long:  "Run multiple policy API operations from a single file",
	}

	cmd.AddCommand(newBatchApplyCommand())

	return cmd
}

func newBatchApplyCommand() *cobra.Command {
	var (
		file        string
		noRollback  bool
		failOnError bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a batch of operations",
		Long: `Apply a batch of operations from a YAML file.

The file lists operations executed in order through the protected call path:

    rollback: true
    operations:
      - id: web-group
        method: PUT
        path: /policy/api/v1/infra/domains/default/groups/web
        body:
          display_name: web-servers
      - id: probe
        method: GET
        path: /policy/api/v1/infra/domains/default/groups/web

One operation's failure never aborts the batch. With rollback enabled,
objects created by successful PUT operations are deleted again when any
operation failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return ErrBatchFileRequired
			}

			batch, err := readBatchFile(file)
			if err != nil {
				return err
			}

			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			rollback := !noRollback
			if batch.Rollback != nil {
				rollback = *batch.Rollback
			}

			transaction := npapi.NewBatchTransaction(client).SetRollback(rollback)
			for _, op := range batch.Operations {
				transaction.Add(npapi.BatchOperation{
					ID:        op.ID,
					Method:    strings.ToUpper(op.Method),
					Path:      op.Path,
					Body:      op.Body,
					RetrySafe: op.RetrySafe,
				})
			}

			results, execErr := transaction.Execute(context.Background())

			if renderErr := renderBatchResults(results); renderErr != nil {
				return renderErr
			}

			if execErr != nil {
				if rollback && errors.Is(execErr, npapi.ErrTransactionFailed) {
					fmt.Println("\nCreated objects were rolled back.")
				}

				if failOnError {
					return execErr
				}

				fmt.Fprintf(os.Stderr, "Warning: %v\n", execErr)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with batch operations")
	cmd.Flags().BoolVar(&noRollback, "no-rollback", false, "keep created objects when some operations fail")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero when any operation fails")

	return cmd
}

// readBatchFile loads and validates a batch definition.
func readBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from an operator-supplied flag
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	var batch batchFile

	err = yaml.Unmarshal(data, &batch)
	if err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}

	if len(batch.Operations) == 0 {
		return nil, fmt.Errorf("%w: no operations in file", ErrInvalidBatchOperation)
	}

	for i, op := range batch.Operations {
		if op.Method == "" || op.Path == "" {
			return nil, fmt.Errorf("%w: operation %d needs both method and path", ErrInvalidBatchOperation, i)
		}

		switch strings.ToUpper(op.Method) {
		case "GET", "POST", "PUT", "PATCH", "DELETE":
		default:
			return nil, fmt.Errorf("%w: operation %d has unsupported method '%s'", ErrInvalidBatchOperation, i, op.Method)
		}
	}

	return &batch, nil
}

func renderBatchResults(results []npapi.BatchResult) error {
	rendered, err := renderResource(results)
	if rendered || err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Operation", "Status", "HTTP", "Duration")

	for i, result := range results {
		id := result.ID
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}

		status := "ok"
		if !result.Success {
			status = "failed"
		}

		httpStatus := NotAvailable
		if result.Response != nil {
			httpStatus = fmt.Sprintf("%d", result.Response.StatusCode)
		}

		_ = table.Append(id, status, httpStatus, result.Duration.Round(timeRounding).String())
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
