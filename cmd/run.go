package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/btrelay/internal/bluez"
	"github.com/bnema/btrelay/internal/config"
	"github.com/bnema/btrelay/internal/hid"
	"github.com/bnema/btrelay/internal/input"
	"github.com/bnema/btrelay/internal/logger"
	"github.com/bnema/btrelay/internal/pattern"
	"github.com/bnema/btrelay/internal/relay"
)

var (
	runAutoDiscover bool
	runGrab         bool
	runPauseHotkey  string
	runSink         string
	runConfigPath   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Relay input devices to the USB gadget",
	Long: `Run the relay daemon: pick up configured input devices (and hotplugged
ones), translate their events to HID reports and write them to the USB
gadget endpoints. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runAutoDiscover, "auto-discover", false, "relay every input device, ignoring the allow-list")
	runCmd.Flags().BoolVar(&runGrab, "grab", false, "take exclusive hold of relayed devices")
	runCmd.Flags().StringVar(&runPauseHotkey, "pause-hotkey", "", `pause/resume hotkey, e.g. "ctrl+shift+f12"`)
	runCmd.Flags().StringVar(&runSink, "sink", "", `output sink: "gadget" or "uinput"`)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "config file path")
	rootCmd.AddCommand(runCmd)
}

func runRelay(cmd *cobra.Command) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("relaying requires root privileges for /dev/input and /dev/hidg* access\nPlease run with: sudo btrelay run")
	}

	if runConfigPath != "" {
		config.SetConfigPath(runConfigPath)
	}
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg := config.Get()
	if cfg.Logging.LogLevel != "" {
		logger.SetLevel(cfg.Logging.LogLevel)
	}

	// Flags override the file.
	if cmd.Flags().Changed("auto-discover") {
		cfg.Relay.AutoDiscover = runAutoDiscover
	}
	if cmd.Flags().Changed("grab") {
		cfg.Relay.GrabDevices = runGrab
	}
	if cmd.Flags().Changed("pause-hotkey") {
		cfg.Relay.PauseHotkey = runPauseHotkey
	}
	if cmd.Flags().Changed("sink") {
		cfg.Gadget.Sink = runSink
	}

	// No usable output endpoint is fatal: nothing to relay into.
	sink, err := buildSink(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	var chord *relay.Chord
	if cfg.Relay.PauseHotkey != "" {
		chord, err = relay.ParseChord(cfg.Relay.PauseHotkey)
		if err != nil {
			return err
		}
		logger.Infof("Pause hotkey: %s", chord)
	}

	movement := pattern.Load(cfg.Movement.ConfigPath)

	warnDisconnectedDevices(cfg)
	defer bluez.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pause := &relay.PauseSignal{}
	if cfg.Gadget.Sink == "gadget" {
		udc, err := relay.NewUDCMonitor(cfg.Gadget.UDCStatePath, cfg.Gadget.ParsedUDCPollInterval(), pause)
		if err != nil {
			logger.Warnf("USB link monitoring disabled: %v", err)
		} else {
			go udc.Run(ctx)
		}
	}

	ctrl := relay.NewController(sink, pause, relay.ControllerOptions{
		Identifiers:      input.ParseIdentifiers(cfg.Relay.Devices),
		AutoDiscover:     cfg.Relay.AutoDiscover,
		SkipNamePrefixes: cfg.Relay.SkipNamePrefixes,
		Relay: relay.Options{
			Grab:       cfg.Relay.GrabDevices,
			PauseChord: chord,
			Movement:   movement,
		},
	})
	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	discovery := input.NewMonitor()
	if err := discovery.Start(ctx, ctrl.ChangeHandler(ctx)); err != nil {
		return fmt.Errorf("starting device discovery: %w", err)
	}
	defer discovery.Stop()

	logger.Infof("btrelay %s running, press Ctrl+C to stop", Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down")
	cancel()
	if err := ctrl.Shutdown(5 * time.Second); err != nil {
		logger.Warnf("Unclean shutdown: %v", err)
	}
	if err := sink.ReleaseAll(); err != nil {
		logger.Debugf("Final release reports failed: %v", err)
	}
	return nil
}

func buildSink(cfg *config.Config) (hid.Sink, error) {
	switch cfg.Gadget.Sink {
	case "gadget":
		sink, err := hid.NewGadgetSink(
			cfg.Gadget.KeyboardDevice,
			cfg.Gadget.MouseDevice,
			cfg.Gadget.ConsumerDevice,
		)
		if err != nil {
			return nil, fmt.Errorf("gadget endpoints unavailable (is the USB gadget configured?): %w", err)
		}
		return sink, nil
	case "uinput":
		sink, err := hid.NewUinputSink()
		if err != nil {
			return nil, fmt.Errorf("uinput loopback unavailable: %w", err)
		}
		logger.Warn("Using the uinput loopback sink: events are injected locally, not sent over USB")
		return sink, nil
	}
	return nil, fmt.Errorf("unknown sink %q (expected \"gadget\" or \"uinput\")", cfg.Gadget.Sink)
}

// warnDisconnectedDevices flags allow-list hardware addresses that the
// Bluetooth adapter does not currently hold a connection to. Best-effort:
// systems without bluetoothd just skip the check.
func warnDisconnectedDevices(cfg *config.Config) {
	statuses, err := bluez.KnownDevices(cfg.Relay.BluetoothAdapter)
	if err != nil {
		logger.Debugf("Bluetooth connectivity check skipped: %v", err)
		return
	}
	for _, value := range cfg.Relay.Devices {
		address := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), "-", ":"))
		for _, s := range statuses {
			if strings.EqualFold(s.Address, address) && !s.Connected {
				logger.Warnf("Device %s (%s) is paired but not connected", s.Name, s.Address)
			}
		}
	}
}
