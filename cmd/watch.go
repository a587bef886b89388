package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/camrig/internal/events"
	"github.com/smazurov/camrig/internal/monitoring"
	"github.com/smazurov/camrig/pkg/linuxav/capture"
)

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	var (
		dir    string
		width  uint32
		height uint32
		frames bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print cameras as they are plugged in and removed",
		Long: `Watches the device directory, starts capture on every camera that appears and prints ` +
			`discovery events until interrupted. With --frames every captured frame is printed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			bus := events.New()
			defer bus.Subscribe(func(e events.DeviceDiscoveryEvent) {
				switch e.Action {
				case events.ActionRejected:
					fmt.Fprintf(out, "%s  rejected  %s: %s\n", e.Timestamp, e.DevicePath, e.Error)
				default:
					fmt.Fprintf(out, "%s  %-8s  %s  %s (%s)\n", e.Timestamp, e.Action, e.DevicePath, e.DeviceName, e.BusInfo)
				}
			})()
			defer bus.Subscribe(func(e events.CaptureErrorEvent) {
				fmt.Fprintf(out, "%s  error     %s: %s\n", e.Timestamp, e.DevicePath, e.Error)
			})()
			if frames {
				defer bus.Subscribe(func(e events.FrameCapturedEvent) {
					fmt.Fprintf(out, "%s  frame     %s #%d %d bytes\n", e.Timestamp, e.DevicePath, e.Sequence, e.BytesUsed)
				})()
			}

			mon, err := monitoring.NewCameraMonitor(monitoring.Options{
				DeviceDir: dir,
				Capture:   capture.Config{Width: width, Height: height},
				EventBus:  bus,
			})
			if err != nil {
				return err
			}
			mon.Start(ctx)
			<-ctx.Done()
			mon.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "/dev", "Directory holding the video nodes")
	cmd.Flags().Uint32Var(&width, "width", 0, "Requested width")
	cmd.Flags().Uint32Var(&height, "height", 0, "Requested height")
	cmd.Flags().BoolVar(&frames, "frames", false, "Print every captured frame")
	return cmd
}
