package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camrig/internal/logging"
	"github.com/smazurov/camrig/pkg/linuxav/capture"
	"github.com/smazurov/camrig/pkg/linuxav/hotplug"
	"github.com/smazurov/camrig/pkg/linuxav/reactor"
	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	var (
		output  string
		width   uint32
		height  uint32
		skip    int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "snapshot <device>",
		Short: "Capture one MJPEG frame from a camera",
		Long: `Opens the device, starts single-buffer capture and writes one frame to the output file. ` +
			`The first frames of many UVC cameras are dark while exposure settles, so --skip frames are discarded first. ` +
			`The device is a path, a node name such as video0, or a stable ID from "camrig list".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveDevice(args[0], v4l2.GetDevicePathByID)
			if err != nil {
				return err
			}
			logger := logging.GetLogger(logging.ModuleCapture).With("path", path)

			ep, err := reactor.NewEpoll(reactor.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("create reactor: %w", err)
			}
			defer ep.Close()

			dev, err := capture.Open(path, ep, capture.Config{Width: width, Height: height}, capture.WithLogger(logger))
			if err != nil {
				return err
			}
			defer dev.Close()

			f := dev.Format()
			logger.Info("Capture started", "width", f.Width, "height", f.Height, "buffer_length", dev.BufferLength())

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var frame capture.Frame
			for i := 0; i <= skip; i++ {
				if frame, err = dev.NextFrame(ctx); err != nil {
					return fmt.Errorf("capture frame %d: %w", i, err)
				}
			}

			frame = frame.Clone()
			if err := os.WriteFile(output, frame.Data, 0o644); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes (frame %d) to %s\n", len(frame.Data), frame.Sequence, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "snapshot.jpg", "Output file")
	cmd.Flags().Uint32Var(&width, "width", 0, "Requested width, 0 keeps the driver's current width")
	cmd.Flags().Uint32Var(&height, "height", 0, "Requested height, 0 keeps the driver's current height")
	cmd.Flags().IntVar(&skip, "skip", 3, "Frames to discard before saving")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Give up after this long")
	return cmd
}

// resolveDevice maps a snapshot argument to a device path. Paths are used
// as given, bare node names live in /dev and anything else is looked up as
// a stable ID.
func resolveDevice(arg string, byID func(string) (string, error)) (string, error) {
	switch {
	case strings.ContainsRune(arg, '/'):
		return arg, nil
	case hotplug.IsVideoNode(arg):
		return filepath.Join("/dev", arg), nil
	}
	path, err := byID(arg)
	if err != nil {
		return "", fmt.Errorf("resolve device %q: %w", arg, err)
	}
	return path, nil
}
