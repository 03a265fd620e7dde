package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aspromise/ktv-casting/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what a renderer is playing",
	Long:  `Queries the renderer's transport state, position, media and volume.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusOutput struct {
	Device   core.Device          `json:"device"`
	State    core.TransportState  `json:"state"`
	Title    string               `json:"title,omitempty"`
	URI      string               `json:"uri,omitempty"`
	Position string               `json:"position"`
	Duration string               `json:"duration"`
	Volume   *int                 `json:"volume,omitempty"`
	Status   core.TransportStatus `json:"-"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	r, err := connect(ctx)
	if err != nil {
		return err
	}

	st, err := r.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	out := statusOutput{
		Device:   r.Device(),
		State:    st.State,
		Title:    st.TrackTitle,
		URI:      st.TrackURI,
		Position: FormatDuration(st.Position),
		Duration: FormatDuration(st.Duration),
		Status:   st,
	}

	// Some renderers leave position metadata empty; media info still names the URI.
	if out.URI == "" {
		if info, err := r.MediaInfo(ctx); err == nil {
			out.URI = info.CurrentURI
			if out.Title == "" {
				out.Title = info.Title()
			}
		}
	}

	if vol, err := r.Volume(ctx); err == nil {
		out.Volume = &vol
	} else if Verbose() {
		fmt.Fprintf(os.Stderr, "volume unavailable: %v\n", err)
	}

	if JSONOutput() {
		return printJSON(out)
	}
	printStatus(out)
	return nil
}

func printStatus(out statusOutput) {
	icon := "⏹"
	switch out.State {
	case core.StatePlaying:
		icon = "▶"
	case core.StatePaused:
		icon = "⏸"
	case core.StateTransitioning:
		icon = "…"
	}

	fmt.Printf("%s %s (%s)\n", icon, out.Device.Name, out.Device.Host())

	switch {
	case out.Title != "":
		fmt.Printf("  %s\n", out.Title)
	case out.URI != "":
		fmt.Printf("  %s\n", TruncateString(out.URI, 72))
	default:
		fmt.Println("  Nothing loaded")
	}

	if out.Status.Duration > 0 {
		fmt.Printf("  %s %s / %s\n",
			FormatProgress(out.Status.Position, out.Status.Duration, 30),
			out.Position, out.Duration)
		if left, ok := out.Status.Remaining(); ok && out.State == core.StatePlaying {
			fmt.Printf("  ends %s\n", humanize.Time(time.Now().Add(left)))
		}
	}

	if out.Volume != nil {
		fmt.Printf("  Volume: %d%%\n", *out.Volume)
	}
}
