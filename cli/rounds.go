package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/agrovision/fedcore/pkg/sdk"
	"github.com/spf13/cobra"
)

var useCBOR bool

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [open|current|view|close|abort|submit]",
		Short: "Rounds manager",
		Long:  `Open, inspect, close and abort training rounds, and submit updates.`,
	}

	openCmd := &cobra.Command{
		Use:   "open <min_participants> <timeout>",
		Short: "Open round",
		Long: `Open a training round.

Examples:
  # Wait up to five minutes for three updates
  fedcore-cli rounds open 3 5m`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			minParticipants, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("invalid min_participants %q: %w", args[0], err))

				return
			}
			timeout, err := time.ParseDuration(args[1])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("invalid timeout %q: %w", args[1], err))

				return
			}

			r, err := fsdk.OpenRound(minParticipants, timeout)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	currentCmd := &cobra.Command{
		Use:   "current",
		Short: "View open round",
		Long:  `View the round currently accepting updates.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			r, err := fsdk.CurrentRound()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <round_id>",
		Short: "View round",
		Long:  `View the status of a round.`,
		Run:   roundRun(func(id uint64) (sdk.RoundStatus, error) { return fsdk.GetRound(id) }),
	}

	closeCmd := &cobra.Command{
		Use:   "close <round_id>",
		Short: "Close round",
		Long:  `Close a round and aggregate its updates into a new global model.`,
		Run:   roundRun(func(id uint64) (sdk.RoundStatus, error) { return fsdk.CloseRound(id) }),
	}

	abortCmd := &cobra.Command{
		Use:   "abort <round_id>",
		Short: "Abort round",
		Long:  `Abort a round and discard its updates.`,
		Run:   roundRun(func(id uint64) (sdk.RoundStatus, error) { return fsdk.AbortRound(id) }),
	}

	submitCmd := &cobra.Command{
		Use:   "submit <round_id> <node_id> <sample_weight> <weights>",
		Short: "Submit update",
		Long: `Submit a local update on behalf of a node.

Examples:
  # Submit a two-dimensional update as JSON
  fedcore-cli rounds submit 4 farm-1 0.8 1.0,2.0

  # Same update encoded as CBOR
  fedcore-cli rounds submit 4 farm-1 0.8 1.0,2.0 --cbor`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 4 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			roundID, err := parseUint(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			sampleWeight, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("invalid sample_weight %q: %w", args[2], err))

				return
			}
			weights, err := parseVector(args[3])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			u := sdk.Update{
				NodeID:       args[1],
				RoundID:      roundID,
				Weights:      weights,
				SampleWeight: sampleWeight,
			}
			submit := fsdk.SubmitUpdate
			if useCBOR {
				submit = fsdk.SubmitUpdateCBOR
			}
			r, err := submit(u)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	submitCmd.Flags().BoolVar(&useCBOR, "cbor", false, "Encode the update as CBOR")

	cmd.AddCommand(openCmd)
	cmd.AddCommand(currentCmd)
	cmd.AddCommand(viewCmd)
	cmd.AddCommand(closeCmd)
	cmd.AddCommand(abortCmd)
	cmd.AddCommand(submitCmd)

	return cmd
}

// roundRun builds the handler shared by commands taking a single round id.
func roundRun(fn func(uint64) (sdk.RoundStatus, error)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			logUsageCmd(*cmd, cmd.Use)

			return
		}
		id, err := parseUint(args[0])
		if err != nil {
			logErrorCmd(*cmd, err)

			return
		}

		r, err := fn(id)
		if err != nil {
			logErrorCmd(*cmd, err)

			return
		}
		logJSONCmd(*cmd, r)
	}
}
