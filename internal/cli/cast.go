package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aspromise/ktv-casting/internal/dlna"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
	"github.com/aspromise/ktv-casting/internal/session"
	"github.com/aspromise/ktv-casting/internal/tail"
	"github.com/aspromise/ktv-casting/internal/wizard"
)

var (
	castNoEmoji   bool
	castTimestamp bool
	castFormat    string
	castInterval  time.Duration
)

var castCmd = &cobra.Command{
	Use:   "cast [room-url]",
	Short: "Follow a KTV room on a renderer",
	Long: `Binds a renderer to a KTV room and keeps it playing the room's
current song until interrupted.

Events printed:
  - Song changes
  - Song completions (queue advanced)
  - Empty queue
  - Renderer lost and reconnected`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCast,
}

func init() {
	castCmd.Flags().BoolVar(&castNoEmoji, "no-emoji", false, "disable emoji output")
	castCmd.Flags().BoolVarP(&castTimestamp, "timestamp", "t", false, "show timestamps")
	castCmd.Flags().StringVarP(&castFormat, "format", "f", "", "custom event format template")
	castCmd.Flags().DurationVarP(&castInterval, "interval", "i", 500*time.Millisecond, "event refresh interval")

	rootCmd.AddCommand(castCmd)
}

func runCast(cmd *cobra.Command, args []string) error {
	roomURL, err := resolveRoomURL(args)
	if err != nil {
		return err
	}

	// Handle Ctrl+C gracefully
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	discovery := dlna.NewDiscovery(logger)
	dev, err := resolveDevice(ctx, discovery)
	if err != nil {
		return err
	}

	manager := session.NewManager(cfg, discovery, logger)
	s, err := manager.Start(ctx, dev, roomURL)
	if err != nil {
		return err
	}

	if !JSONOutput() {
		fmt.Printf("Casting %s to %s\n", s.Room, dev.Name)
	}

	formatter := tail.NewFormatter(
		tail.WithEmoji(!castNoEmoji),
		tail.WithTimestamp(castTimestamp),
		tail.WithDevice(Verbose()),
		tail.WithTemplate(castFormat),
	)

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	watcher := tail.NewWatcher(s, castInterval)
	go func() { _ = watcher.Start(watchCtx) }()

	events := watcher.Events()
	interrupted := ctx.Done()
	for events != nil {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			printEvent(formatter, event)

		case <-s.Done():
			// Let the watcher observe the final state before stopping.
			time.Sleep(castInterval)
			stopWatch()
			for event := range events {
				printEvent(formatter, event)
			}
			events = nil

		case <-interrupted:
			interrupted = nil
			s.Stop()
		}
	}

	printSummary(s.Status())

	err = s.Err()
	if errors.Is(err, apperr.ErrFatalDeviceLoss) {
		return apperr.WithSuggestion(err,
			fmt.Sprintf("%s stopped responding. Check it is powered on, then run 'ktv-casting cast' again", dev.Name))
	}
	return err
}

// resolveRoomURL takes the room link from the argument, the config, or a prompt.
func resolveRoomURL(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Room.URL != "" {
		return cfg.Room.URL, nil
	}

	interactive := wizard.NewInteractive()
	interactive.SetEnabled(!JSONOutput())
	raw, err := interactive.PromptRoomURL()
	if err != nil {
		return "", fmt.Errorf("room prompt: %w", err)
	}
	if raw == "" {
		return "", apperr.WithSuggestion(apperr.ErrInvalidRoomURL,
			"Pass the room link as an argument or set room.url in the config")
	}
	return raw, nil
}

type eventJSON struct {
	Type  string `json:"type"`
	Time  string `json:"time"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
	State string `json:"state"`
}

func printEvent(f *tail.Formatter, e tail.Event) {
	if !JSONOutput() {
		fmt.Println(f.Format(e))
		return
	}

	out := eventJSON{
		Type: tail.TypeName(e.Type),
		Time: e.Timestamp.Format(time.RFC3339),
	}
	if e.Current != nil {
		out.State = e.Current.StateName
		if e.Current.Instructed != nil {
			out.Title = e.Current.Instructed.Title
			out.URL = e.Current.Instructed.URL
		}
	}
	_ = printJSON(out)
}

func printSummary(st session.Status) {
	if JSONOutput() {
		_ = printJSON(st)
		return
	}

	songs := st.Sync.Advances
	noun := "songs"
	if songs == 1 {
		noun = "song"
	}
	fmt.Printf("Session ended after %s, %s %s finished",
		strings.TrimSpace(humanize.RelTime(st.StartedAt, time.Now(), "", "")), humanize.Comma(int64(songs)), noun)
	if st.PollFailures > 0 {
		fmt.Printf(", %s failed room polls", humanize.Comma(st.PollFailures))
	}
	fmt.Println()
}
