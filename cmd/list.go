package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bnema/btrelay/internal/bluez"
	"github.com/bnema/btrelay/internal/config"
	"github.com/bnema/btrelay/internal/input"
)

var (
	colorPrimary = lipgloss.Color("86")
	colorSubtle  = lipgloss.Color("241")
	colorGood    = lipgloss.Color("78")
	colorBad     = lipgloss.Color("203")
)

var listBluetooth bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available input devices",
	Long: `List every /dev/input event device with its name, hardware address and
capabilities, so entries for the relay.devices allow-list can be picked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		cfg := config.Get()

		infos, err := input.ListDevices(nil)
		if err != nil {
			return err
		}

		connected := map[string]bool{}
		if listBluetooth {
			statuses, err := bluez.KnownDevices(cfg.Relay.BluetoothAdapter)
			if err != nil {
				return fmt.Errorf("querying bluetoothd: %w", err)
			}
			defer bluez.Close()
			for _, s := range statuses {
				connected[strings.ToUpper(s.Address)] = s.Connected
			}
		}

		rows := [][]string{}
		for _, info := range infos {
			caps := []string{}
			if info.Keys {
				caps = append(caps, "keys")
			}
			if info.Relative {
				caps = append(caps, "motion")
			}
			skipped := ""
			if input.SkippedByName(info.Name, cfg.Relay.SkipNamePrefixes) {
				skipped = "skipped"
			}
			bt := "-"
			if listBluetooth && info.Uniq != "" {
				if connected[strings.ToUpper(info.Uniq)] {
					bt = "connected"
				} else {
					bt = "disconnected"
				}
			}
			rows = append(rows, []string{
				info.Path, info.Name, info.Uniq, strings.Join(caps, ","), bt, skipped,
			})
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorSubtle)).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == 0: // Header row
					return lipgloss.NewStyle().
						Foreground(colorPrimary).
						Bold(true).
						Padding(0, 1)
				case col == 4 && rows[row-1][4] == "connected":
					return lipgloss.NewStyle().
						Foreground(colorGood).
						Padding(0, 1)
				case col == 5 && rows[row-1][5] != "":
					return lipgloss.NewStyle().
						Foreground(colorBad).
						Padding(0, 1)
				default:
					return lipgloss.NewStyle().Padding(0, 1)
				}
			}).
			Headers("PATH", "NAME", "ADDRESS", "CAPABILITIES", "BLUETOOTH", "").
			Rows(rows...)

		fmt.Println(t.String())

		countStyle := lipgloss.NewStyle().Foreground(colorSubtle)
		fmt.Println(countStyle.Render(fmt.Sprintf("%d device(s)", len(rows))))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listBluetooth, "bluetooth", false, "annotate devices with their BlueZ connection state")
	rootCmd.AddCommand(listCmd)
}
