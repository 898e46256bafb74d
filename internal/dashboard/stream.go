package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/caredesk/internal/platform/websocket"
	"github.com/ehr/caredesk/internal/state"
)

// Stream broadcasts every snapshot the store publishes until ctx ends or
// the store is closed. Intermediate snapshots may be skipped; the latest is
// always delivered.
func Stream(ctx context.Context, store *state.Store, hub *websocket.Hub, logger zerolog.Logger) {
	ch, cancel := store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				logger.Error().Err(err).Uint64("version", snap.Version).Msg("encode snapshot")
				continue
			}
			hub.Broadcast(websocket.Frame{
				Type:      websocket.FrameSnapshot,
				Version:   snap.Version,
				Timestamp: time.Now().UTC(),
				Data:      data,
			})
		}
	}
}
