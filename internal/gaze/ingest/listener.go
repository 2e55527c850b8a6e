package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/live"
	"github.com/banshee-data/gaze.intent/internal/monitoring"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

var logf = monitoring.Component("ingest")

// maxDatagram bounds one frame: 478 landmarks x 3 coordinates of JSON per
// face leaves room for a handful of faces.
const maxDatagram = 64 * 1024

// FrameHandler consumes decoded frames. *live.Pipeline implements it.
type FrameHandler interface {
	Process(frame live.Frame) gaze.Output
}

// Stats tracks listener throughput.
type Stats interface {
	AddFrame(bytes int)
	AddDropped()
	LogStats()
}

// Config contains configuration options for the listener.
type Config struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Handler     FrameHandler
	Stats       Stats
	Clock       timeutil.Clock
	Sockets     SocketFactory
}

// Listener receives landmark frames over UDP.
type Listener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     FrameHandler
	stats       Stats
	clock       timeutil.Clock
	sockets     SocketFactory

	mu   sync.Mutex
	conn UDPSocket
}

// NewListener creates a listener. Unset Stats, Clock, Sockets and
// LogInterval get working defaults.
func NewListener(cfg Config) *Listener {
	stats := cfg.Stats
	if stats == nil {
		stats = noopStats{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sockets := cfg.Sockets
	if sockets == nil {
		sockets = netSocketFactory{}
	}
	logInterval := cfg.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &Listener{
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		logInterval: logInterval,
		handler:     cfg.Handler,
		stats:       stats,
		clock:       clock,
		sockets:     sockets,
	}
}

type noopStats struct{}

func (noopStats) AddFrame(int) {}
func (noopStats) AddDropped()  {}
func (noopStats) LogStats()    {}

// Start listens until ctx is cancelled. It returns ctx.Err() on
// cancellation and an error if the socket cannot be opened.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.sockets.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			logf("failed to set receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	logf("listening on %s", conn.LocalAddr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.logStats(ctx)

	buffer := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			logf("stopping: %v", err)
			return err
		}

		// Short deadline so cancellation is noticed promptly.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			logf("read error: %v", err)
			continue
		}

		if err := l.handleDatagram(buffer[:n]); err != nil {
			logf("dropping datagram from %v: %v", from, err)
		}
	}
}

func (l *Listener) handleDatagram(data []byte) error {
	frame, err := DecodeFrame(data, l.clock.Now())
	if err != nil {
		l.stats.AddDropped()
		return err
	}
	l.stats.AddFrame(len(data))
	if l.handler != nil {
		l.handler.Process(frame)
	}
	return nil
}

func (l *Listener) logStats(ctx context.Context) {
	ticker := l.clock.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			l.stats.LogStats()
		}
	}
}

// LocalAddr returns the bound address once Start has opened the socket.
func (l *Listener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Close closes the socket, which also ends Start.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

// FrameStats is the default Stats implementation. It logs and resets the
// interval counters on each LogStats call.
type FrameStats struct {
	mu      sync.Mutex
	frames  int
	dropped int
	bytes   int
	since   time.Time
	clock   timeutil.Clock
}

// NewFrameStats creates stats timed by clock (real clock when nil).
func NewFrameStats(clock timeutil.Clock) *FrameStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FrameStats{clock: clock, since: clock.Now()}
}

// AddFrame counts one decoded frame.
func (s *FrameStats) AddFrame(bytes int) {
	s.mu.Lock()
	s.frames++
	s.bytes += bytes
	s.mu.Unlock()
}

// AddDropped counts one undecodable datagram.
func (s *FrameStats) AddDropped() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

// Snapshot returns the interval counters without resetting them.
func (s *FrameStats) Snapshot() (frames, dropped, bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.dropped, s.bytes
}

// LogStats logs the interval rate and resets the counters.
func (s *FrameStats) LogStats() {
	s.mu.Lock()
	now := s.clock.Now()
	elapsed := now.Sub(s.since).Seconds()
	frames, dropped, bytes := s.frames, s.dropped, s.bytes
	s.frames, s.dropped, s.bytes = 0, 0, 0
	s.since = now
	s.mu.Unlock()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(frames) / elapsed
	}
	logf("frames=%d (%.1f/s) dropped=%d bytes=%d", frames, rate, dropped, bytes)
}
