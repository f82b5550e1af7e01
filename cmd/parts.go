package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/internal/driverconfig"
	"github.com/deploymenttheory/go-minixfs/pkg/volsrv"
)

var (
	partsSetMountpSvcID uint64
	partsSetMountp      string
)

var partsCmd = &cobra.Command{
	Use:   "parts",
	Short: "List registered partitions (VolParts, spec.md §4.8)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runParts()
	},
}

var partsSetMountpCmd = &cobra.Command{
	Use:   "set-mountp",
	Short: "Change a registered partition's configured mountpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPartsSetMountp()
	},
}

func init() {
	rootCmd.AddCommand(partsCmd)
	partsCmd.AddCommand(partsSetMountpCmd)

	partsSetMountpCmd.Flags().Uint64Var(&partsSetMountpSvcID, "svc-id", 1, "partition service id")
	partsSetMountpCmd.Flags().StringVar(&partsSetMountp, "mountp", "", "new mountpoint (empty applies the default auto-mount policy)")
	partsSetMountpCmd.MarkFlagRequired("mountp")
}

func runParts() error {
	cfg, err := driverconfig.Load()
	if err != nil {
		return err
	}
	svc, err := volsrv.New(cfg.ConfigStorePath, cfg)
	if err != nil {
		return err
	}

	for _, id := range svc.GetParts() {
		info, err := svc.PartInfo(id)
		if err != nil {
			return err
		}
		fmt.Printf("svc_id=%d content=%d fstype=%s label=%q mountp=%q auto=%v\n",
			info.SvcID, info.PCnt, info.FSType.String(), info.Label, info.CurMP, info.CurMPAuto)
	}
	return nil
}

func runPartsSetMountp() error {
	cfg, err := driverconfig.Load()
	if err != nil {
		return err
	}
	svc, err := volsrv.New(cfg.ConfigStorePath, cfg)
	if err != nil {
		return err
	}
	return svc.PartSetMountp(partsSetMountpSvcID, partsSetMountp)
}
