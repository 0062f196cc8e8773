package main

import (
	"log"
	"time"

	"github.com/agrovision/fedcore/cli"
	"github.com/agrovision/fedcore/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defCoordinatorURL  = "http://localhost:7070"
	defTLSVerification = false
	defTimeout         = 30 * time.Second
)

func main() {
	coordinatorURL := defCoordinatorURL

	rootCmd := &cobra.Command{
		Use:   "fedcore-cli",
		Short: "Fedcore CLI",
		Long:  `Fedcore CLI is a command line interface for operating a federated learning coordinator.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  coordinatorURL,
				TLSVerification: defTLSVerification,
				Timeout:         defTimeout,
			}
			cli.SetSDK(sdk.NewSDK(sdkConf))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "c", defCoordinatorURL, "Coordinator URL")

	rootCmd.AddCommand(cli.NewNodesCmd())
	rootCmd.AddCommand(cli.NewRoundsCmd())
	rootCmd.AddCommand(cli.NewModelCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
