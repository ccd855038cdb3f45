// Package stream turns bus subscriptions into resumable per-client event
// streams, independent of the transport that carries them.
package stream

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ParzivalEugene/planning-poker/internal/bus"
	"github.com/ParzivalEugene/planning-poker/internal/event"
	"github.com/ParzivalEugene/planning-poker/internal/metrics"
	"github.com/ParzivalEugene/planning-poker/internal/poker"
	"github.com/ParzivalEugene/planning-poker/internal/types"
)

// StateReader supplies the full room snapshot used to repair reconnect gaps.
type StateReader interface {
	RoomState(ctx context.Context, roomID string) (*poker.State, error)
}

type Streamer struct {
	bus   bus.Bus
	state StateReader
	log   *zap.Logger
}

func New(b bus.Bus, state StateReader, log *zap.Logger) *Streamer {
	return &Streamer{bus: b, state: state, log: log}
}

// Run delivers room events through send until ctx is cancelled, the bus
// drops the subscription, or send fails. When lastEventID is non-empty, one
// synthesized roomState frame with a fresh token precedes any live event.
// The subscription is opened before the snapshot read, so a mutation racing
// the reconnect is seen at least once; clients tolerate duplicates because
// the baseline already reflects it.
func (s *Streamer) Run(ctx context.Context, roomID, lastEventID string, send func(types.ServerMessage) error) error {
	sub := s.bus.Subscribe(roomID)
	defer sub.Close()

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	if lastEventID != "" {
		if err := s.sendBaseline(ctx, roomID, send); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-sub.C:
			if !ok {
				// Bus shut down or dropped us as a slow consumer.
				return nil
			}
			msg := types.ServerMessage{ID: env.ID, Type: env.Event.Kind(), Payload: env.Event}
			if err := send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Streamer) sendBaseline(ctx context.Context, roomID string, send func(types.ServerMessage) error) error {
	st, err := s.state.RoomState(ctx, roomID)
	if errors.Is(err, poker.ErrRoomNotFound) {
		// Nothing to replay for a room that was never created.
		return nil
	}
	if err != nil {
		return err
	}

	id, _ := s.bus.Stamp(roomID)
	metrics.StreamResumes.Inc()
	s.log.Debug("stream resumed with baseline",
		zap.String("room_id", roomID),
		zap.String("event_id", id),
	)

	evt := event.RoomState{
		RoomID:          roomID,
		RoundID:         st.RoundID,
		Players:         st.Players,
		IsRevealed:      st.IsRevealed,
		AllPlayersVoted: st.AllPlayersVoted,
	}
	return send(types.ServerMessage{ID: id, Type: evt.Kind(), Payload: evt})
}
