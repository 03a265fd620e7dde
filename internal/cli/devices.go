package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aspromise/ktv-casting/internal/core"
	"github.com/aspromise/ktv-casting/internal/dlna"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
)

var devicesTimeout time.Duration

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List DLNA renderers on the local network",
	Long: `Searches the local network for media renderers that accept
AVTransport commands and lists them.`,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().DurationVarP(&devicesTimeout, "timeout", "t", 0, "how long to wait for replies (default from config)")
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	timeout := devicesTimeout
	if timeout <= 0 {
		timeout = cfg.Renderer.DiscoveryWindow()
	}

	result, err := dlna.NewDiscovery(logger).Scan(ctx, timeout)
	if err != nil {
		return err
	}

	if Verbose() && result.HasErrors() {
		fmt.Fprintf(os.Stderr, "Skipped: %s\n", strings.TrimSpace(result.ErrorSummary()))
	}

	if len(result.Data) == 0 {
		if JSONOutput() {
			_ = printJSON([]core.Device{})
		}
		return apperr.ErrDiscoveryEmpty
	}

	if JSONOutput() {
		return printJSON(result.Data)
	}
	return outputDevicesTable(result.Data)
}

func outputDevicesTable(devices []core.Device) error {
	want := device
	if want == "" {
		want = cfg.Renderer.Device
	}

	t := NewTable("", "NAME", "MODEL", "HOST", "SERVICES")
	for _, d := range devices {
		isDefault := want != "" && (d.ID == want || strings.EqualFold(d.Name, want))
		t.Row(
			StatusIcon(isDefault),
			TruncateString(d.Name, 32),
			TruncateString(d.Model, 24),
			d.Host(),
			strings.Join(d.Capabilities(), ","),
		)
	}
	t.Flush()

	if Verbose() {
		fmt.Println()
		for _, d := range devices {
			fmt.Printf("%s\n      ID: %s\n      Location: %s\n", d.Name, d.ID, d.Location)
		}
	}

	return nil
}
