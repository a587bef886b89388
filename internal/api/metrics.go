package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camrig/internal/events"
)

// registerMetricsRoutes registers the per-frame SSE endpoint.
func (s *Server) registerMetricsRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Frame Server-Sent Events Stream",
		Description: "Real-time stream of captured frames and written snapshots. Slow clients miss frames.",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":      ConnectedEvent{},
		"frame-captured": events.FrameCapturedEvent{},
		"snapshot-saved": events.SnapshotSavedEvent{},
	}, func(ctx context.Context, input *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubFrames := events.SubscribeToChannel[events.FrameCapturedEvent](s.eventBus, eventCh)
		defer unsubFrames()
		unsubSnapshots := events.SubscribeToChannel[events.SnapshotSavedEvent](s.eventBus, eventCh)
		defer unsubSnapshots()

		s.stream(ctx, send, eventCh)
	})
}
