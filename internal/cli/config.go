package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/aspromise/ktv-casting/internal/config"
	"github.com/aspromise/ktv-casting/internal/dlna"
	apperr "github.com/aspromise/ktv-casting/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing ktv-casting configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, including defaults and environment overrides.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Supported keys:
  room.url                       Default KTV room link
  room.protocol                  Room service wire format (songlist/revision)
  room.poll_interval_ms          Room poll interval
  room.notify                    Listen for room push updates (true/false)
  renderer.device                Default renderer name or UDN
  renderer.location              Renderer descriptor URL, skips discovery
  renderer.discovery_timeout_ms  How long to wait for SSDP replies
  renderer.retries               Retries for failed control calls
  sync.recovery_attempts         Attempts to find a lost renderer
  sync.end_threshold_ms          Advance this close to the end of a song
  log.level                      debug, info, warn or error
  log.format                     console or json
  log.file                       Log file path
  log.file_enabled               Write a rotating log file (true/false)

Examples:
  ktv-casting config set room.url https://ktv.example.com/102
  ktv-casting config set renderer.device "Living Room TV"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configSetDeviceCmd = &cobra.Command{
	Use:   "set-device",
	Short: "Interactively select default renderer",
	Long:  `Searches the network and shows a picker to select the default renderer.`,
	RunE:  runConfigSetDevice,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetDeviceCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if JSONOutput() {
		return printJSON(cfg)
	}

	// Pretty print as TOML
	encoder := toml.NewEncoder(os.Stdout)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	if JSONOutput() {
		_, err := os.Stat(path)
		return printJSON(map[string]any{"path": path, "exists": err == nil})
	}
	fmt.Println(path)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", apperr.ErrConfigNotFound, configPath)
	}

	// Find editor
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi", "notepad"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	if err := config.Save(config.Default(), configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if JSONOutput() {
		return printJSON(map[string]string{
			"status": "created",
			"path":   configPath,
		})
	}

	fmt.Printf("Created config file: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'ktv-casting config set room.url <room link>'")
	fmt.Println("  2. Run 'ktv-casting config set-device' to pick a default renderer")
	return nil
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// readConfigFile decodes the file at path without defaults or
// environment overrides, so saving it back keeps only what the user set.
func readConfigFile(path string) (*config.Config, error) {
	c := &config.Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return c, nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	configPath := getConfigPath()

	c, err := readConfigFile(configPath)
	if err != nil {
		return err
	}

	if err := setConfigValue(c, key, value); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
	}

	if err := config.Save(c, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if JSONOutput() {
		return printJSON(map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
		})
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// setConfigValue assigns value to the field named by a dotted key.
func setConfigValue(c *config.Config, key, value string) error {
	strs := map[string]*string{
		"room.url":          &c.Room.URL,
		"room.protocol":     &c.Room.Protocol,
		"renderer.device":   &c.Renderer.Device,
		"renderer.location": &c.Renderer.Location,
		"log.level":         &c.Log.Level,
		"log.format":        &c.Log.Format,
		"log.file":          &c.Log.File,
	}
	ints := map[string]*int{
		"room.poll_interval_ms":         &c.Room.PollInterval,
		"renderer.discovery_timeout_ms": &c.Renderer.DiscoveryTimeout,
		"renderer.retries":              &c.Renderer.Retries,
		"sync.recovery_attempts":        &c.Sync.RecoveryAttempts,
		"sync.end_threshold_ms":         &c.Sync.EndThreshold,
	}
	bools := map[string]*bool{
		"room.notify":      &c.Room.Notify,
		"log.file_enabled": &c.Log.FileEnabled,
	}

	if dst, ok := strs[key]; ok {
		*dst = value
		return nil
	}
	if dst, ok := ints[key]; ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("value must be an integer for %s", key)
		}
		*dst = i
		return nil
	}
	if dst, ok := bools[key]; ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("value must be true or false for %s", key)
		}
		*dst = b
		return nil
	}
	return fmt.Errorf("unknown config key %q", key)
}

func runConfigSetDevice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	devices, err := dlna.NewDiscovery(logger).Discover(ctx, cfg.Renderer.DiscoveryWindow())
	if err != nil {
		return fmt.Errorf("failed to discover renderers: %w", err)
	}
	if len(devices) == 0 {
		return apperr.ErrDiscoveryEmpty
	}

	// Build options for picker
	var options []huh.Option[string]
	for _, d := range devices {
		label := d.Name
		if d.Model != "" {
			label = fmt.Sprintf("%s (%s)", d.Name, d.Model)
		}
		if d.ID == cfg.Renderer.Device || d.Name == cfg.Renderer.Device {
			label = label + " [default]"
		}
		options = append(options, huh.NewOption(label, d.ID))
	}

	var selectedID string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select default renderer").
				Description("Used by cast, status and the control commands").
				Options(options...).
				Value(&selectedID),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("selection cancelled: %w", err)
	}

	return runConfigSet(cmd, []string{"renderer.device", selectedID})
}
