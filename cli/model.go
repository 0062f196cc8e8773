package cli

import (
	"github.com/spf13/cobra"
)

func NewModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model [view|version]",
		Short: "Global model",
		Long:  `View the current global model or an earlier version.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "View global model",
		Long:  `View the current global model.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			m, err := fsdk.GlobalModel()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version <version>",
		Short: "View model version",
		Long:  `View an archived model version.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			v, err := parseUint(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			m, err := fsdk.ModelVersion(v)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(versionCmd)

	return cmd
}
