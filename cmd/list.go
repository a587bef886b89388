package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

// CreateListCmd creates the list command.
func CreateListCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List Video4Linux capture devices",
		Long: `Enumerates /dev/video* nodes and prints their card name, driver and pixel formats. ` +
			`With --verbose the resolutions and frame intervals of every format are printed too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := v4l2.FindDevices()
			if err != nil {
				return fmt.Errorf("find devices: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No video devices found")
				return nil
			}
			for _, dev := range devices {
				printDevice(out, dev, verbose)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print resolutions and frame rates")
	return cmd
}

func printDevice(out io.Writer, dev v4l2.DeviceInfo, verbose bool) {
	fmt.Fprintf(out, "%s\t%s (%s)\n", dev.DevicePath, dev.DeviceName, dev.Driver)
	fmt.Fprintf(out, "\tid:  %s\n", dev.DeviceID)
	fmt.Fprintf(out, "\tbus: %s\n", dev.BusInfo)

	var formats []v4l2.FormatDescription
	if verbose {
		described, err := v4l2.Describe(dev.DevicePath)
		if err != nil {
			fmt.Fprintf(out, "\tformats: %v\n", err)
			return
		}
		formats = described
	} else {
		infos, err := v4l2.GetFormats(dev.DevicePath)
		if err != nil {
			fmt.Fprintf(out, "\tformats: %v\n", err)
			return
		}
		for _, f := range infos {
			formats = append(formats, v4l2.FormatDescription{FormatInfo: f})
		}
	}
	printFormats(out, formats)
}

func printFormats(out io.Writer, formats []v4l2.FormatDescription) {
	for _, f := range formats {
		emulated := ""
		if f.Emulated {
			emulated = " (emulated)"
		}
		fmt.Fprintf(out, "\t%s  %s%s\n", v4l2.FormatFourCC(f.PixelFormat), f.FormatName, emulated)
		for _, size := range f.Sizes {
			fmt.Fprintf(out, "\t\t%dx%d", size.Width, size.Height)
			if len(size.Framerates) > 0 {
				for _, rate := range size.Framerates {
					fmt.Fprintf(out, " %.4g", rate.FPS())
				}
				fmt.Fprint(out, " fps")
			}
			fmt.Fprintln(out)
		}
	}
}
