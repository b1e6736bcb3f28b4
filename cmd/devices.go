// File: cmd/devices.go
package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/homectl"
	"github.com/xkilldash9x/pocketd/internal/observability"
)

// newDevicesCmd creates the `devices` command group for Kasa smart home
// control from the terminal.
func newDevicesCmd() *cobra.Command {
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Discover and control Kasa smart home devices",
	}

	devicesCmd.AddCommand(newDevicesListCmd())
	devicesCmd.AddCommand(newDevicesOnCmd())
	devicesCmd.AddCommand(newDevicesOffCmd())
	devicesCmd.AddCommand(newDevicesDimCmd())
	devicesCmd.AddCommand(newDevicesColorCmd())

	return devicesCmd
}

// deviceController builds a controller from the loaded config. Discovery
// happens lazily on the first operation that needs a device.
func deviceController(cmd *cobra.Command) (*homectl.Controller, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	return homectl.NewController(cfg.Home, observability.GetLogger()), nil
}

func newDevicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Scan the network and list discovered devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := deviceController(cmd)
			if err != nil {
				return err
			}

			devices, err := ctl.Discover(cmd.Context())
			if err != nil {
				return fmt.Errorf("device discovery failed: %w", err)
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No devices found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ALIAS\tADDR\tMODEL\tTYPE\tSTATE")
			for _, d := range devices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Alias, d.Addr, d.Model, d.Type, deviceState(d))
			}
			return w.Flush()
		},
	}
}

// deviceState summarizes power, brightness and color in one column.
func deviceState(d schemas.DeviceInfo) string {
	state := "off"
	if d.IsOn {
		state = "on"
	}
	var extras []string
	if d.Brightness != nil {
		extras = append(extras, fmt.Sprintf("brightness %d%%", *d.Brightness))
	}
	if d.IsColor && d.Color != nil {
		extras = append(extras, fmt.Sprintf("hue %d", d.Color.Hue))
	}
	if len(extras) == 0 {
		return state
	}
	return fmt.Sprintf("%s (%s)", state, strings.Join(extras, ", "))
}

func newDevicesOnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "on <alias>",
		Short: "Turn a device on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := deviceController(cmd)
			if err != nil {
				return err
			}
			if err := ctl.TurnOn(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Turned on %q.\n", args[0])
			return nil
		},
	}
}

func newDevicesOffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "off <alias>",
		Short: "Turn a device off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := deviceController(cmd)
			if err != nil {
				return err
			}
			if err := ctl.TurnOff(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Turned off %q.\n", args[0])
			return nil
		},
	}
}

func newDevicesDimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dim <alias> <level>",
		Short: "Set a device's brightness, 1-100",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("brightness must be a number, got %q", args[1])
			}

			ctl, err := deviceController(cmd)
			if err != nil {
				return err
			}
			if err := ctl.SetBrightness(cmd.Context(), args[0], level); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %q to %d%% brightness.\n", args[0], level)
			return nil
		},
	}
}

func newDevicesColorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "color <alias> <hue> <saturation> <value>",
		Short: "Set a color bulb's HSV color",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var hsv [3]int
			for i, name := range []string{"hue", "saturation", "value"} {
				n, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("%s must be a number, got %q", name, args[i+1])
				}
				hsv[i] = n
			}

			ctl, err := deviceController(cmd)
			if err != nil {
				return err
			}
			color := schemas.HSV{Hue: hsv[0], Saturation: hsv[1], Value: hsv[2]}
			if err := ctl.SetColor(cmd.Context(), args[0], color); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %q to hue %d, saturation %d, value %d.\n",
				args[0], color.Hue, color.Saturation, color.Value)
			return nil
		},
	}
}
