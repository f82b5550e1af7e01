package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/internal/driverconfig"
	"github.com/deploymenttheory/go-minixfs/pkg/volsrv"
)

var volumesCmd = &cobra.Command{
	Use:   "volumes",
	Short: "List persisted volumes (VolVolumes, spec.md §4.7)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVolumes()
	},
}

func init() {
	rootCmd.AddCommand(volumesCmd)
}

func runVolumes() error {
	cfg, err := driverconfig.Load()
	if err != nil {
		return err
	}
	svc, err := volsrv.New(cfg.ConfigStorePath, cfg)
	if err != nil {
		return err
	}

	for _, id := range svc.GetVolumes() {
		info, err := svc.VolInfo(id)
		if err != nil {
			return err
		}
		fmt.Printf("id=%d label=%q mountp=%q\n", info.ID, info.Label, info.Path)
	}
	return nil
}
