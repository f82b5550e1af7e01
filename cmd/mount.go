package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/internal/blockdev"
	"github.com/deploymenttheory/go-minixfs/internal/driverconfig"
	"github.com/deploymenttheory/go-minixfs/pkg/volsrv"
)

var (
	mountSvcID   uint64
	mountSvcName string
	mountBSize   uint32
)

var mountCmd = &cobra.Command{
	Use:   "mount [image-path]",
	Short: "Register a block device and apply the auto-mount policy",
	Long: `Opens image-path as a block device, probes it and registers it under
--svc-id with VolParts, applying the same auto-mount decision a real
device-appeared event would (spec.md §4.8).

Examples:
  go-minixfs mount disk.img --svc-id 1 --svc-name disk0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMount(args[0])
	},
}

var unmountCmd = &cobra.Command{
	Use:   "unmount",
	Short: "Eject a registered partition",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUnmount()
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(unmountCmd)

	mountCmd.Flags().Uint64Var(&mountSvcID, "svc-id", 1, "service id to register the device under")
	mountCmd.Flags().StringVar(&mountSvcName, "svc-name", "disk0", "service name (used for ATA-class auto-mount policy)")
	mountCmd.Flags().Uint32Var(&mountBSize, "bsize", 1024, "block size in bytes")

	unmountCmd.Flags().Uint64Var(&mountSvcID, "svc-id", 1, "service id to eject")
}

func runMount(imagePath string) error {
	dev, err := blockdev.OpenFileDevice(imagePath, mountBSize)
	if err != nil {
		return err
	}

	cfg, err := driverconfig.Load()
	if err != nil {
		return err
	}
	svc, err := volsrv.New(cfg.ConfigStorePath, cfg)
	if err != nil {
		return err
	}

	if err := svc.PartAdd(mountSvcID, mountSvcName, dev); err != nil {
		return err
	}

	info, err := svc.PartInfo(mountSvcID)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("svc_id=%d fstype=%s label=%q mounted=%q auto=%v\n",
			info.SvcID, info.FSType.String(), info.Label, info.CurMP, info.CurMPAuto)
	}
	return nil
}

func runUnmount() error {
	cfg, err := driverconfig.Load()
	if err != nil {
		return err
	}
	svc, err := volsrv.New(cfg.ConfigStorePath, cfg)
	if err != nil {
		return err
	}
	return svc.PartEject(mountSvcID)
}
