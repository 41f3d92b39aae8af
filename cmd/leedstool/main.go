// leedstool inspects model, texture dictionary, collision and world files
// and the IMG archives that carry them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Faultbox/leeds-assets/internal/config"
	"github.com/Faultbox/leeds-assets/internal/logger"
)

var version = "0.1.0-dev"

// app carries the settings shared by every command.
type app struct {
	flags *config.Flags
	cfg   *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "leedstool",
		Short: "Inspect Leeds engine asset files",
		Long: `leedstool decodes model (.mdl), texture dictionary (.txd/.chk), collision
(.col2) and world (.wrld/.lvz) containers, links world instances and materials
to the models and textures they name, and reports what could not be decoded
or resolved.

Inputs may be files, directories (scanned for known extensions) or IMG
archives (.img, or the .dir of a .dir/.img pair).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.flags.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return logger.InitWithFileConfig(cfg.Logging.Level, cfg.Logging.FileConfig(), os.Stderr)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	a.flags = config.BindFlags(rootCmd.PersistentFlags())

	infoCmd := &cobra.Command{
		Use:   "info <path>...",
		Short: "Summarise what a set of files contains",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runInfo,
	}

	decodeCmd := &cobra.Command{
		Use:   "decode <path>...",
		Short: "Decode files and print a full report",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runDecode,
	}

	unknownCmd := &cobra.Command{
		Use:   "unknown <path>...",
		Short: "List chunks that were skipped as unknown",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runUnknown,
	}
	unknownCmd.Flags().Bool("summary", false, "Group by chunk id instead of listing each occurrence")

	dumpCmd := &cobra.Command{
		Use:   "dump <name> <path>...",
		Short: "Dump the decoded structure of one model, dictionary, collision or world",
		Args:  cobra.MinimumNArgs(2),
		RunE:  a.runDump,
	}
	dumpCmd.Flags().Int("depth", 4, "Maximum nesting depth (0 = unlimited)")

	imgCmd := &cobra.Command{
		Use:   "img",
		Short: "Work with IMG archives",
	}
	imgListCmd := &cobra.Command{
		Use:   "list <archive> [pattern]",
		Short: "List archive entries (optional glob pattern)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  a.runImgList,
	}
	imgListCmd.Flags().IntP("limit", "n", 0, "Limit output to N entries (0 = all)")
	imgExtractCmd := &cobra.Command{
		Use:   "extract <archive> <name|pattern> [output]",
		Short: "Extract entries to a directory",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  a.runImgExtract,
	}
	imgCmd.AddCommand(imgListCmd, imgExtractCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "leedstool %s\n", version)
		},
	}

	rootCmd.AddCommand(infoCmd, decodeCmd, unknownCmd, dumpCmd, imgCmd, versionCmd)
	return rootCmd
}
