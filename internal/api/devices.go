package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrig/internal/api/models"
	"github.com/smazurov/camrig/pkg/linuxav/v4l2"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List Video4Linux nodes and the pixel formats they offer",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*models.DevicesResponse, error) {
		found, err := s.devices()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to enumerate devices", err)
		}

		capturing := make(map[string]bool)
		if s.cameras != nil {
			for _, cam := range s.cameras.Cameras() {
				capturing[cam.Path] = true
			}
		}

		body := models.DeviceListData{Devices: make([]models.DeviceData, 0, len(found))}
		for _, dev := range found {
			data := models.DeviceData{
				DevicePath: dev.DevicePath,
				DeviceName: dev.DeviceName,
				DeviceID:   dev.DeviceID,
				Driver:     dev.Driver,
				Caps:       dev.Caps,
				Formats:    []string{},
				Capturing:  capturing[dev.DevicePath],
			}
			// A node held by a capture session may refuse enumeration.
			if formats, err := s.formats(dev.DevicePath); err != nil {
				s.logger.Debug("Failed to list formats", "device", dev.DevicePath, "error", err)
			} else {
				for _, f := range formats {
					data.Formats = append(data.Formats, v4l2.FormatFourCC(f.PixelFormat))
				}
			}
			body.Devices = append(body.Devices, data)
		}
		body.Count = len(body.Devices)
		return &models.DevicesResponse{Body: body}, nil
	})
}
