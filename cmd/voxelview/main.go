// Command voxelview flies or walks through the streamed voxel world, or runs
// the streaming core headless for a fixed number of frames.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"voxelstream/internal/config"
	"voxelstream/internal/logging"
)

type options struct {
	configPath     string
	atlasPath      string
	fontPath       string
	walk           bool
	vsync          bool
	headlessFrames int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "voxelview",
		Short:        "explore a streamed voxel world",
		Long:         "opens a window onto procedurally generated terrain streamed around the camera",
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&opts.atlasPath, "atlas", "", "block texture atlas image (grass, dirt, stone rows)")
	flags.StringVar(&opts.fontPath, "font", "", "TrueType font for the debug overlay")
	flags.BoolVar(&opts.walk, "walk", false, "start walking instead of flying")
	flags.BoolVar(&opts.vsync, "vsync", true, "wait for vertical sync")
	flags.IntVar(&opts.headlessFrames, "headless-frames", 0, "run this many frames without a window and log stats")
	return cmd
}

func run(opts options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	log := logging.NamedLogger("voxelview", level)

	if opts.headlessFrames > 0 {
		return runHeadless(cfg, opts, log)
	}
	return runWindow(cfg, opts, log)
}
