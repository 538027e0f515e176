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

// NewServicesCommand creates the services command group.
func NewServicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"service"},
		Short:   "Manage service definitions",
		Long:    "List and manage reusable port/protocol service definitions",
	}

	cmd.AddCommand(newServicesListCommand())
	cmd.AddCommand(newServicesGetCommand())
	cmd.AddCommand(newServicesCreateCommand())
	cmd.AddCommand(newServicesDeleteCommand())

	return cmd
}

func newServicesListCommand() *cobra.Command {
	var (
		pageSize int
		cursor   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List services",
		Long:  "List all service definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			list, err := client.Services().List(context.Background(), buildListParams(pageSize, cursor))
			if err != nil {
				return fmt.Errorf("listing services: %w", err)
			}

			rendered, err := renderResource(list.Results)
			if rendered || err != nil {
				return err
			}

			if len(list.Results) == 0 {
				_, _ = os.Stdout.WriteString("No services found\n")

				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("ID", "Name", "Entries", "Revision")

			for _, service := range list.Results {
				_ = table.Append(service.ID, displayName(service.PolicyObject),
					fmt.Sprintf("%d", len(service.ServiceEntries)), revisionString(service.PolicyObject))
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

	cmd.Flags().IntVar(&pageSize, "page-size", constants.StandardPageSize, "results per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor")

	return cmd
}

func newServicesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get SERVICE_ID",
		Short: "Get service details",
		Long:  "Display a service definition and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			service, err := client.Services().Get(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("getting service: %w", err)
			}

			rendered, err := renderResource(service)
			if rendered || err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Entry", "Protocol", "Destination ports")

			for _, entry := range service.ServiceEntries {
				protocol := entry.L4Protocol
				if protocol == "" {
					protocol = entry.Protocol
				}

				name := entry.DisplayName
				if name == "" {
					name = entry.ID
				}

				_ = table.Append(name, protocol, strings.Join(entry.DestinationPorts, ", "))
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newServicesCreateCommand() *cobra.Command {
	var (
		name     string
		protocol string
		ports    []string
	)

	cmd := &cobra.Command{
		Use:   "create SERVICE_ID",
		Short: "Create a service",
		Long:  "Create a service definition (idempotent, replays are safe)",
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

			service := &npapi.Service{
				PolicyObject: npapi.PolicyObject{
					ID:          args[0],
					DisplayName: name,
				},
			}

			if len(ports) > 0 {
				service.ServiceEntries = []npapi.ServiceEntry{
					{
						ResourceType:     "L4PortSetServiceEntry",
						ID:               strings.ToLower(protocol) + "-entry",
						L4Protocol:       strings.ToUpper(protocol),
						DestinationPorts: ports,
					},
				}
			}

			created, err := client.Services().Create(context.Background(), service)
			if err != nil {
				return fmt.Errorf("creating service: %w", err)
			}

			fmt.Printf("Created service '%s'\n", created.ID)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the service ID)")
	cmd.Flags().StringVar(&protocol, "protocol", "TCP", "L4 protocol (TCP or UDP)")
	cmd.Flags().StringSliceVar(&ports, "port", nil, "destination port or range (repeatable)")

	return cmd
}

func newServicesDeleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete SERVICE_ID",
		Short: "Delete a service",
		Long:  "Delete a service definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmDelete("service", args[0]) {
				return nil
			}

			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			err = client.Services().Delete(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("deleting service: %w", err)
			}

			fmt.Printf("Deleted service '%s'\n", args[0])

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	return cmd
}
