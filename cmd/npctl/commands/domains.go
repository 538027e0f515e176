package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// NewDomainsCommand creates the domains command group.
func NewDomainsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "domains",
		Aliases: []string{"domain"},
		Short:   "Manage policy domains",
		Long:    "List and manage policy domains",
	}

	cmd.AddCommand(newDomainsListCommand())
	cmd.AddCommand(newDomainsGetCommand())
	cmd.AddCommand(newDomainsCreateCommand())
	cmd.AddCommand(newDomainsDeleteCommand())

	return cmd
}

func newDomainsListCommand() *cobra.Command {
	var (
		pageSize int
		cursor   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List domains",
		Long:  "List all policy domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			list, err := client.Domains().List(context.Background(), buildListParams(pageSize, cursor))
			if err != nil {
				return fmt.Errorf("listing domains: %w", err)
			}

			rendered, err := renderResource(list.Results)
			if rendered || err != nil {
				return err
			}

			return renderDomainTable(list)
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", constants.StandardPageSize, "results per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor")

	return cmd
}

func renderDomainTable(list *npapi.DomainList) error {
	if len(list.Results) == 0 {
		_, _ = os.Stdout.WriteString("No domains found\n")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Revision", "Path")

	for _, domain := range list.Results {
		_ = table.Append(domain.ID, displayName(domain.PolicyObject),
			revisionString(domain.PolicyObject), domain.Path)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if list.Cursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s to fetch the next page.\n", list.Cursor)
	}

	return nil
}

func newDomainsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get DOMAIN_ID",
		Short: "Get domain details",
		Long:  "Display detailed information about a specific domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			domain, err := client.Domains().Get(context.Background(), args[0])
			if err != nil {
				if npapi.IsNotFound(err) {
					return fmt.Errorf("domain '%s': %w", args[0], err)
				}

				return fmt.Errorf("getting domain: %w", err)
			}

			rendered, err := renderResource(domain)
			if rendered || err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Property", "Value")
			_ = table.Append("ID", domain.ID)
			_ = table.Append("Name", displayName(domain.PolicyObject))
			_ = table.Append("Description", domain.Description)
			_ = table.Append("Path", domain.Path)
			_ = table.Append("Revision", revisionString(domain.PolicyObject))

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newDomainsCreateCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create DOMAIN_ID",
		Short: "Create a domain",
		Long:  "Create a new policy domain (idempotent, replays are safe)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			domain := &npapi.Domain{
				PolicyObject: npapi.PolicyObject{
					ID:          args[0],
					DisplayName: args[0],
					Description: description,
				},
			}

			created, err := client.Domains().Create(context.Background(), domain)
			if err != nil {
				return fmt.Errorf("creating domain: %w", err)
			}

			fmt.Printf("Created domain '%s'\n", created.ID)

			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "domain description")

	return cmd
}

func newDomainsDeleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete DOMAIN_ID",
		Short: "Delete a domain",
		Long:  "Delete a policy domain and everything beneath it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmDelete("domain", args[0]) {
				return nil
			}

			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			err = client.Domains().Delete(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("deleting domain: %w", err)
			}

			fmt.Printf("Deleted domain '%s'\n", args[0])

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	return cmd
}
