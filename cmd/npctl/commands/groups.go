package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// NewGroupsCommand creates the groups command group.
func NewGroupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Manage policy groups",
		Long:    "List and manage groups within a policy domain",
	}

	cmd.AddCommand(newGroupsListCommand())
	cmd.AddCommand(newGroupsGetCommand())
	cmd.AddCommand(newGroupsCreateCommand())
	cmd.AddCommand(newGroupsDeleteCommand())

	return cmd
}

func groupsDomainFlag(cmd *cobra.Command, domainID *string) {
	cmd.Flags().StringVarP(domainID, "domain", "d", "default", "policy domain")
}

func newGroupsListCommand() *cobra.Command {
	var (
		domainID string
		pageSize int
		cursor   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Long:  "List all groups in a policy domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			list, err := client.Groups().List(context.Background(), domainID, buildListParams(pageSize, cursor))
			if err != nil {
				return fmt.Errorf("listing groups: %w", err)
			}

			rendered, err := renderResource(list.Results)
			if rendered || err != nil {
				return err
			}

			if len(list.Results) == 0 {
				_, _ = os.Stdout.WriteString("No groups found\n")

				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("ID", "Name", "Revision", "Expressions")

			for _, group := range list.Results {
				_ = table.Append(group.ID, displayName(group.PolicyObject),
					revisionString(group.PolicyObject), fmt.Sprintf("%d", len(group.Expression)))
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			if list.Cursor != "" {
				fmt.Printf("\nMore results available. Use --cursor %s to fetch the next page.\n", list.Cursor)
			}

			return nil
		},
	}

	groupsDomainFlag(cmd, &domainID)
	cmd.Flags().IntVar(&pageSize, "page-size", constants.StandardPageSize, "results per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor")

	return cmd
}

func newGroupsGetCommand() *cobra.Command {
	var domainID string

	cmd := &cobra.Command{
		Use:   "get GROUP_ID",
		Short: "Get group details",
		Long:  "Display detailed information about a specific group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			group, err := client.Groups().Get(context.Background(), domainID, args[0])
			if err != nil {
				return fmt.Errorf("getting group: %w", err)
			}

			rendered, err := renderResource(group)
			if rendered || err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Property", "Value")
			_ = table.Append("ID", group.ID)
			_ = table.Append("Name", displayName(group.PolicyObject))
			_ = table.Append("Description", group.Description)
			_ = table.Append("Path", group.Path)
			_ = table.Append("Revision", revisionString(group.PolicyObject))

			for _, expr := range group.Expression {
				if expr.ResourceType == "IPAddressExpression" {
					_ = table.Append("IP addresses", strings.Join(expr.IPAddresses, ", "))
				}
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}

	groupsDomainFlag(cmd, &domainID)

	return cmd
}

func newGroupsCreateCommand() *cobra.Command {
	var (
		domainID    string
		name        string
		description string
		ipAddresses []string
	)

	cmd := &cobra.Command{
		Use:   "create GROUP_ID",
		Short: "Create a group",
		Long:  "Create a group in a policy domain (idempotent, replays are safe)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if name == "" {
				name = args[0]
			}

			group := &npapi.Group{
				PolicyObject: npapi.PolicyObject{
					ID:          args[0],
					DisplayName: name,
					Description: description,
				},
			}

			if len(ipAddresses) > 0 {
				group.Expression = []npapi.Expression{
					{
						ResourceType: "IPAddressExpression",
						IPAddresses:  ipAddresses,
					},
				}
			}

			created, err := client.Groups().Create(context.Background(), domainID, group)
			if err != nil {
				return fmt.Errorf("creating group: %w", err)
			}

			fmt.Printf("Created group '%s' in domain '%s'\n", created.ID, domainID)

			return nil
		},
	}

	groupsDomainFlag(cmd, &domainID)
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the group ID)")
	cmd.Flags().StringVar(&description, "description", "", "group description")
	cmd.Flags().StringSliceVar(&ipAddresses, "ip", nil, "IP address or CIDR member (repeatable)")

	return cmd
}

func newGroupsDeleteCommand() *cobra.Command {
	var (
		domainID string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "delete GROUP_ID",
		Short: "Delete a group",
		Long:  "Delete a group from a policy domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmDelete("group", args[0]) {
				return nil
			}

			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			err = client.Groups().Delete(context.Background(), domainID, args[0])
			if err != nil {
				return fmt.Errorf("deleting group: %w", err)
			}

			fmt.Printf("Deleted group '%s' from domain '%s'\n", args[0], domainID)

			return nil
		},
	}

	groupsDomainFlag(cmd, &domainID)
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	return cmd
}
