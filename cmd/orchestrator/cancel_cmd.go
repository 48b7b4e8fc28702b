package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"orchestrator/internal/orchconfig"
)

var cancelAutobuildFlag bool

var cancelCmd = &cobra.Command{
	Use:   "cancel [run-id]",
	Short: "Cancel the active run, or the active autobuild loop with --autobuild",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := orchconfig.Load(configPath)
	if err != nil {
		return err
	}

	var line string
	switch {
	case cancelAutobuildFlag:
		line = "cancel-autobuild"
	case len(args) == 1:
		line = fmt.Sprintf("cancel-run %s", args[0])
	default:
		return fmt.Errorf("a run id is required unless --autobuild is set")
	}

	reply, err := dialControl(cfg.RunsRoot, line)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func init() {
	cancelCmd.Flags().BoolVar(&cancelAutobuildFlag, "autobuild", false, "Cancel the active autobuild loop instead of a single run")
}
