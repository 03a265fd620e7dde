package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aspromise/ktv-casting/internal/dlna"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Resume playback",
	Long:  `Resume playback of whatever media the renderer has loaded.`,
	RunE: transportCommand("playing", "▶ Playing", func(ctx context.Context, r *dlna.Renderer) error {
		return r.Play(ctx)
	}),
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	Long:  `Pause the renderer.`,
	RunE: transportCommand("paused", "⏸ Paused", func(ctx context.Context, r *dlna.Renderer) error {
		return r.Pause(ctx)
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	Long: `Stop the renderer. A running cast session treats this as the end of
the song and advances the room's queue.`,
	RunE: transportCommand("stopped", "⏹ Stopped", func(ctx context.Context, r *dlna.Renderer) error {
		return r.Stop(ctx)
	}),
}

var (
	volumeUp   bool
	volumeDown bool
)

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Show, set or adjust volume",
	Long: `Show the renderer volume, set it (0-100), or adjust it up/down.

Examples:
  ktv-casting volume          # Show current volume
  ktv-casting volume 50       # Set volume to 50%
  ktv-casting volume --up     # Increase volume by 10%
  ktv-casting volume --down   # Decrease volume by 10%`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

func init() {
	volumeCmd.Flags().BoolVar(&volumeUp, "up", false, "Increase volume by 10%")
	volumeCmd.Flags().BoolVar(&volumeDown, "down", false, "Decrease volume by 10%")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(volumeCmd)
}

func transportCommand(status, message string, action func(context.Context, *dlna.Renderer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		r, err := connect(ctx)
		if err != nil {
			return err
		}

		if err := action(ctx, r); err != nil {
			return fmt.Errorf("failed to %s: %w", cmd.Name(), err)
		}

		if JSONOutput() {
			return printJSON(map[string]string{"status": status, "device": r.Device().Name})
		}
		fmt.Printf("%s on %s\n", message, r.Device().Name)
		return nil
	}
}

func runVolume(cmd *cobra.Command, args []string) error {
	if volumeUp && volumeDown {
		return fmt.Errorf("--up and --down are mutually exclusive")
	}

	var level int
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 || v > 100 {
			return fmt.Errorf("volume must be a number between 0 and 100")
		}
		level = v
	}

	ctx := cmd.Context()
	r, err := connect(ctx)
	if err != nil {
		return err
	}

	current, err := r.Volume(ctx)
	if err != nil {
		return fmt.Errorf("failed to get volume: %w", err)
	}

	target := adjustVolume(current, level, len(args) > 0, volumeUp, volumeDown)
	if target != current {
		if err := r.SetVolume(ctx, target); err != nil {
			return fmt.Errorf("failed to set volume: %w", err)
		}
	}

	if JSONOutput() {
		return printJSON(map[string]int{"volume": target})
	}
	fmt.Printf("🔊 Volume: %d%%\n", target)
	return nil
}

// adjustVolume computes the new volume from the current level and flags.
func adjustVolume(current, level int, set, up, down bool) int {
	target := current
	switch {
	case set:
		target = level
	case up:
		target = current + 10
	case down:
		target = current - 10
	}
	if target > 100 {
		target = 100
	}
	if target < 0 {
		target = 0
	}
	return target
}
