package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrig/internal/api/models"
	"github.com/smazurov/camrig/internal/metrics"
	"github.com/smazurov/camrig/internal/monitoring"
)

// CameraNameInput selects a camera by node name.
type CameraNameInput struct {
	Name string `path:"name" example:"video0" doc:"Device node name"`
}

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "List the cameras that are currently capturing",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.CamerasResponse, error) {
		body := models.CameraListData{Cameras: []models.CameraData{}}
		if s.cameras != nil {
			for _, cam := range s.cameras.Cameras() {
				body.Cameras = append(body.Cameras, toCameraData(cam))
			}
			body.PermissionDenied = s.cameras.PermissionDenied()
		}
		body.Count = len(body.Cameras)
		return &models.CamerasResponse{Body: body}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{name}",
		Summary:     "Get Camera",
		Description: "Get the capture session of one camera",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *CameraNameInput) (*models.CameraResponse, error) {
		cam, err := s.camera(input.Name)
		if err != nil {
			return nil, err
		}
		return &models.CameraResponse{Body: toCameraData(cam)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{name}/snapshot",
		Summary:     "Camera Snapshot",
		Description: "Get the most recent frame captured from a camera",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 503},
	}, func(ctx context.Context, input *CameraNameInput) (*models.SnapshotResponse, error) {
		if _, err := s.camera(input.Name); err != nil {
			return nil, err
		}
		if s.snapshots == nil {
			return nil, huma.Error503ServiceUnavailable("snapshots are disabled")
		}
		snap, err := s.snapshots.Latest(input.Name)
		if errors.Is(err, monitoring.ErrNoSnapshot) {
			return nil, huma.Error503ServiceUnavailable("no frame captured yet")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read snapshot", err)
		}
		return &models.SnapshotResponse{
			ContentType:  snap.ContentType,
			CacheControl: "no-store",
			Sequence:     strconv.FormatUint(uint64(snap.Sequence), 10),
			Body:         snap.Data,
		}, nil
	})
}

func (s *Server) camera(name string) (monitoring.CameraInfo, error) {
	if s.cameras == nil {
		return monitoring.CameraInfo{}, huma.Error404NotFound("camera not found: " + name)
	}
	cam, ok := s.cameras.Camera(name)
	if !ok {
		return monitoring.CameraInfo{}, huma.Error404NotFound("camera not found: " + name)
	}
	return cam, nil
}

func toCameraData(cam monitoring.CameraInfo) models.CameraData {
	data := models.CameraData{
		Name:      cam.Name,
		Path:      cam.Path,
		SessionID: cam.SessionID,
		Card:      cam.Card,
		Driver:    cam.Driver,
		BusInfo:   cam.BusInfo,
		Format: models.FormatData{
			Width:        cam.Format.Width,
			Height:       cam.Format.Height,
			PixelFormat:  cam.FourCC(),
			BytesPerLine: cam.Format.BytesPerLine,
			SizeImage:    cam.Format.SizeImage,
		},
		ConnectedAt: cam.ConnectedAt,
	}
	if stats := metrics.GetCaptureStats(cam.Path); stats != nil {
		data.Frames = stats.Frames
		data.LastBytes = stats.LastBytes
		if !stats.LastFrame.IsZero() {
			last := stats.LastFrame
			data.LastFrameAt = &last
		}
	}
	return data
}
