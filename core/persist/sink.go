package persist

import (
	"net"

	"soundscene/logger"
)

// UDPSink sends payloads as connectionless datagrams. Delivery is best
// effort: errors are logged and dropped, nothing blocks, and a send can
// complete even while the process is shutting down.
type UDPSink struct {
	addr string
}

// NewUDPSink creates a sink targeting addr (host:port).
func NewUDPSink(addr string) *UDPSink {
	return &UDPSink{addr: addr}
}

// Send fires the payload at the sink address and forgets it.
func (s *UDPSink) Send(payload []byte) {
	conn, err := net.Dial("udp", s.addr)
	if err != nil {
		logger.Debug("best-effort sink dial failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		logger.Debug("best-effort sink write failed", logger.ErrorField(err))
	}
}
