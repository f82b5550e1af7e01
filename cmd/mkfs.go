package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-minixfs/internal/driverconfig"
	"github.com/deploymenttheory/go-minixfs/internal/volparts"
	"github.com/deploymenttheory/go-minixfs/pkg/volsrv"
)

var (
	mkfsSvcID  uint64
	mkfsLabel  string
	mkfsMountp string
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Format an already-registered partition as a fresh MINIX filesystem",
	Long: `Writes a new superblock, bitmaps, inode table and root directory to
an already-registered partition, then re-probes it and sets the requested
mountpoint (spec.md §4.8 "Mkfs"). Each invocation starts a fresh volume
service with no partitions registered, so a partition registered by an
earlier "mount" run is not known here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMkfs()
	},
}

func init() {
	rootCmd.AddCommand(mkfsCmd)

	mkfsCmd.Flags().Uint64Var(&mkfsSvcID, "svc-id", 1, "partition service id to format")
	mkfsCmd.Flags().StringVar(&mkfsLabel, "label", "", "volume label (ignored for MINIX, which has no on-disk label)")
	mkfsCmd.Flags().StringVar(&mkfsMountp, "mountp", "", "mountpoint to set after formatting")
}

func runMkfs() error {
	cfg, err := driverconfig.Load()
	if err != nil {
		return err
	}
	svc, err := volsrv.New(cfg.ConfigStorePath, cfg)
	if err != nil {
		return err
	}
	return svc.PartMkfs(mkfsSvcID, volparts.FSMinix, mkfsLabel, mkfsMountp)
}
