package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// NewPoliciesCommand creates the security policies command group.
func NewPoliciesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "policies",
		Aliases: []string{"policy", "security-policies"},
		Short:   "Manage security policies",
		Long:    "List and manage security policies within a policy domain",
	}

	cmd.AddCommand(newPoliciesListCommand())
	cmd.AddCommand(newPoliciesGetCommand())
	cmd.AddCommand(newPoliciesCreateCommand())
	cmd.AddCommand(newPoliciesDeleteCommand())

	return cmd
}

func newPoliciesListCommand() *cobra.Command {
	var (
		domainID string
		pageSize int
		cursor   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List security policies",
		Long:  "List all security policies in a policy domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			list, err := client.SecurityPolicies().List(context.Background(), domainID, buildListParams(pageSize, cursor))
			if err != nil {
				return fmt.Errorf("listing security policies: %w", err)
			}

			rendered, err := renderResource(list.Results)
			if rendered || err != nil {
				return err
			}

			if len(list.Results) == 0 {
				_, _ = os.Stdout.WriteString("No security policies found\n")

				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("ID", "Name", "Category", "Rules", "Revision")

			for _, policy := range list.Results {
				_ = table.Append(policy.ID, displayName(policy.PolicyObject), policy.Category,
					fmt.Sprintf("%d", len(policy.Rules)), revisionString(policy.PolicyObject))
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

	cmd.Flags().StringVarP(&domainID, "domain", "d", "default", "policy domain")
	cmd.Flags().IntVar(&pageSize, "page-size", constants.StandardPageSize, "results per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor")

	return cmd
}

func newPoliciesGetCommand() *cobra.Command {
	var domainID string

	cmd := &cobra.Command{
		Use:   "get POLICY_ID",
		Short: "Get security policy details",
		Long:  "Display a security policy and its rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			policy, err := client.SecurityPolicies().Get(context.Background(), domainID, args[0])
			if err != nil {
				return fmt.Errorf("getting security policy: %w", err)
			}

			rendered, err := renderResource(policy)
			if rendered || err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Property", "Value")
			_ = table.Append("ID", policy.ID)
			_ = table.Append("Name", displayName(policy.PolicyObject))
			_ = table.Append("Category", policy.Category)
			_ = table.Append("Revision", revisionString(policy.PolicyObject))

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			if len(policy.Rules) == 0 {
				return nil
			}

			fmt.Println()

			ruleTable := tablewriter.NewWriter(os.Stdout)
			ruleTable.Header("Rule", "Action", "Sources", "Destinations", "Services")

			for _, rule := range policy.Rules {
				name := rule.DisplayName
				if name == "" {
					name = rule.ID
				}

				_ = ruleTable.Append(name, rule.Action,
					strings.Join(rule.SourceGroups, ", "),
					strings.Join(rule.DestinationGroups, ", "),
					strings.Join(rule.Services, ", "))
			}

			if err := ruleTable.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&domainID, "domain", "d", "default", "policy domain")

	return cmd
}

func newPoliciesCreateCommand() *cobra.Command {
	var (
		domainID string
		file     string
	)

	cmd := &cobra.Command{
		Use:   "create POLICY_ID",
		Short: "Create a security policy",
		Long:  "Create a security policy from a YAML definition file (idempotent, replays are safe)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return ErrBatchFileRequired
			}

			policy, err := readPolicyFile(file)
			if err != nil {
				return err
			}

			policy.ID = args[0]
			if policy.DisplayName == "" {
				policy.DisplayName = args[0]
			}

			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			created, err := client.SecurityPolicies().Create(context.Background(), domainID, policy)
			if err != nil {
				return fmt.Errorf("creating security policy: %w", err)
			}

			fmt.Printf("Created security policy '%s' in domain '%s' with %d rules\n",
				created.ID, domainID, len(created.Rules))

			return nil
		},
	}

	cmd.Flags().StringVarP(&domainID, "domain", "d", "default", "policy domain")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the policy definition")

	return cmd
}

// readPolicyFile loads a security policy definition from a YAML file.
func readPolicyFile(path string) (*npapi.SecurityPolicy, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from an operator-supplied flag
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var policy npapi.SecurityPolicy

	err = yaml.Unmarshal(data, &policy)
	if err != nil {
		return nil, fmt.Errorf("parsing policy file: %w", err)
	}

	return &policy, nil
}

func newPoliciesDeleteCommand() *cobra.Command {
	var (
		domainID string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "delete POLICY_ID",
		Short: "Delete a security policy",
		Long:  "Delete a security policy and its rules from a policy domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmDelete("security policy", args[0]) {
				return nil
			}

			client, err := CreateClientWithEndpoint(cmd.Flag("endpoint").Value.String())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			err = client.SecurityPolicies().Delete(context.Background(), domainID, args[0])
			if err != nil {
				return fmt.Errorf("deleting security policy: %w", err)
			}

			fmt.Printf("Deleted security policy '%s' from domain '%s'\n", args[0], domainID)

			return nil
		},
	}

	cmd.Flags().StringVarP(&domainID, "domain", "d", "default", "policy domain")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")

	return cmd
}
