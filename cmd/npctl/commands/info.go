package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show manager node information",
		Long:  "Display node information for the targeted policy manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			info, err := client.NodeInfo(context.Background())
			if err != nil {
				return fmt.Errorf("fetching node info: %w", err)
			}

			rendered, err := renderResource(info)
			if rendered || err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Property", "Value")
			_ = table.Append("Hostname", info.Hostname)
			_ = table.Append("Node type", info.NodeType)
			_ = table.Append("Node UUID", info.NodeUUID)
			_ = table.Append("Node version", info.NodeVersion)
			_ = table.Append("Product version", info.ProductVersion)

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}
