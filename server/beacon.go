package server

import (
	"context"
	"encoding/json"
	"net"

	"soundscene/logger"
	"soundscene/repository"
)

const maxBeaconPayload = 64 << 10

// BeaconListener receives fire-and-forget autosave datagrams sent on session
// teardown, when a request/response round trip is no longer possible, and
// lands them in the snapshot table.
type BeaconListener struct {
	addr      string
	snapshots repository.SnapshotRepository
}

// NewBeaconListener creates a listener for the autosave sink address.
func NewBeaconListener(addr string, snapshots repository.SnapshotRepository) *BeaconListener {
	return &BeaconListener{addr: addr, snapshots: snapshots}
}

// Run listens until the context is cancelled. A malformed datagram is dropped
// with a warning; delivery was never guaranteed on this path.
func (l *BeaconListener) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", l.addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("autosave beacon listening", logger.String("addr", l.addr))

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, maxBeaconPayload)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("beacon read failed", logger.ErrorField(err))
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		var envelope struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil || envelope.ID == "" {
			logger.Warn("dropping malformed beacon payload", logger.Int("bytes", n))
			continue
		}

		if err := l.snapshots.Upsert(envelope.ID, payload, "beacon"); err != nil {
			logger.Warn("failed to store beacon snapshot",
				logger.String("projectId", envelope.ID), logger.ErrorField(err))
			continue
		}
		logger.Debug("beacon snapshot stored", logger.String("projectId", envelope.ID))
	}
}
