package cli

import (
	"github.com/spf13/cobra"
)

func NewNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes [register|view|list|deregister]",
		Short: "Nodes manager",
		Long:  `Register, view, list and deregister participant nodes.`,
	}

	registerCmd := &cobra.Command{
		Use:   "register <id> [region]",
		Short: "Register node",
		Long:  `Register a node with the coordinator.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 || len(args) > 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			region := ""
			if len(args) == 2 {
				region = args[1]
			}

			n, err := fsdk.RegisterNode(args[0], region)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, n)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View node",
		Long:  `View node.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			n, err := fsdk.GetNode(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, n)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List nodes",
		Long:  `List registered nodes.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := fsdk.ListNodes(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	deregisterCmd := &cobra.Command{
		Use:   "deregister <id>",
		Short: "Deregister node",
		Long:  `Mark a node inactive. Updates it already contributed are kept.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := fsdk.DeregisterNode(args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(registerCmd)
	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)
	cmd.AddCommand(deregisterCmd)

	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"o",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"l",
		defLimit,
		"Limit",
	)

	return cmd
}
