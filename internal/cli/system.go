package cli

import (
	"github.com/shayne-snap/quanteval/internal/display"

	"github.com/spf13/cobra"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Show system hardware and the accelerators available for memory tracking",
	RunE:  runSystem,
}

func runSystem(cmd *cobra.Command, args []string) error {
	specs, err := detectHardware()
	if err != nil {
		return err
	}
	display.System(cmd.OutOrStdout(), specs, globalJSON)
	return nil
}
