// Package wscore implements the per-connection WebSocket session: the
// data-framing read/dispatch loop, the mutex-serialized output path, and
// the capability surface exposed to a pluggable Handler. It knows nothing
// about the HTTP server that routed the request to it beyond what it needs
// to complete the 101 handshake on an already-hijacked connection.
package wscore

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/tessera-io/wscore/wsframe"
	"github.com/tessera-io/wscore/wshandshake"
)

// APIVersion1 is the only handler interface version this core understands.
// A Descriptor carrying any other value is refused at Accept time, per
// §4.F's versioning requirement.
const APIVersion1 = 1

// Declined and rejection sentinels. ErrDeclined corresponds to
// MalformedHandshake in §7: no session is created, and the host is free to
// try another handler or answer with its own status code. ErrHandlerRejected
// corresponds to HandlerRejected: the host must close the connection
// without ever sending a 101.
var (
	ErrDeclined        = errors.New("websocket: handshake declined")
	ErrHandlerRejected = errors.New("websocket: handler rejected connection")
)

// Logger is the narrow structured-logging surface the core calls into. It
// is satisfied by internal/wslog's zerolog-backed implementation; the core
// package itself has no logging dependency beyond this interface.
type Logger interface {
	Event(name string, fields map[string]any)
	Error(name string, err error, fields map[string]any)
}

// noopLogger discards everything; used when Options.Logger is nil so the
// core never has to nil-check at every call site.
type noopLogger struct{}

func (noopLogger) Event(string, map[string]any)        {}
func (noopLogger) Error(string, error, map[string]any) {}

// Metrics is the narrow recording surface the core calls into on connect,
// message, and disconnect. Satisfied by internal/wsmetrics.
type Metrics interface {
	Connected(sessionID string)
	Message(sessionID string, op wsframe.Opcode, bytes int)
	Disconnected(sessionID string, code wsframe.StatusCode)
}

type noopMetrics struct{}

func (noopMetrics) Connected(string)                        {}
func (noopMetrics) Message(string, wsframe.Opcode, int)      {}
func (noopMetrics) Disconnected(string, wsframe.StatusCode) {}

// Descriptor is the handler plug-in: a version tag plus the lifecycle
// callbacks from §4.F. OnConnect and OnDisconnect and Destroy are optional;
// OnMessage is required.
type Descriptor struct {
	APIVersion int

	// OnConnect is called once, before the 101 response is sent. Returning
	// accept=false aborts the upgrade (ErrHandlerRejected). If OnConnect is
	// nil, the core uses a non-nil sentinel private value, per §4.F.
	OnConnect func(s *Server) (private any, accept bool)

	// OnMessage is called once per assembled application message. Its
	// return value is advisory (§4.F) and is not otherwise interpreted.
	OnMessage func(private any, s *Server, op wsframe.Opcode, data []byte) int

	// OnDisconnect is called exactly once, provided OnConnect (if present)
	// returned accept=true: after the read loop has terminated, or from
	// Accept itself if hijacking or writing the 101 response fails.
	OnDisconnect func(private any, s *Server)

	// Destroy runs when the module owning this descriptor is unloaded. The
	// core never calls it; it exists so a dynamic loader (component H) can
	// invoke it uniformly across handlers at shutdown.
	Destroy func()
}

func (d Descriptor) validate() error {
	if d.APIVersion != APIVersion1 {
		return errors.New("websocket: unsupported handler API version")
	}
	if d.OnMessage == nil {
		return errors.New("websocket: handler descriptor missing OnMessage")
	}
	return nil
}

type sentinelPrivate struct{}

// Options configures a Server beyond what the handshake itself determines.
type Options struct {
	// Version is the required Sec-WebSocket-Version token. Empty selects
	// wshandshake.DefaultVersion ("13").
	Version string
	// PayloadLimit caps a single frame's payload in bytes. Zero selects
	// wsframe.DefaultPayloadLimit (32 MiB).
	PayloadLimit uint64
	Logger       Logger
	Metrics      Metrics
}

// Server is the capability surface exposed to Handler callbacks (§4.F) and
// also the per-connection Session state (§4.C): the two are the same Go
// value here because the original's "server" capability handle and its
// session struct are the same lifetime, just with a narrower public method
// set exposed to handler code than the core uses internally.
type Server struct {
	id      string
	request *http.Request

	respHeader       http.Header
	offeredProtocols []string
	acceptedProtocol string

	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	decoder      *wsframe.Decoder
	payloadLimit uint64

	logger  Logger
	metrics Metrics

	// mu is the sole gate to {writer, closing}: the output serializer from
	// §4.C/4.E. Every outbound write happens while mu is held and nothing
	// else does.
	mu      sync.Mutex
	closing bool

	private    any
	descriptor Descriptor
}

// Accept validates the upgrade request, runs the handler's OnConnect, and
// — on success — hijacks the connection and writes the 101 response. It
// does not start the read loop; call Serve on the returned Server for that.
//
// On ErrDeclined, w/r are untouched; the host may still answer them. On
// ErrHandlerRejected, the connection is hijacked only if that was
// unavoidable... in this implementation it is not: rejection is decided
// before hijacking, so the host can simply let its own handling of w/r
// close the connection however it normally would for a failed request.
func Accept(w http.ResponseWriter, r *http.Request, d Descriptor, opts Options) (*Server, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	result, ok := wshandshake.Validate(r, opts.Version)
	if !ok {
		return nil, ErrDeclined
	}

	payloadLimit := opts.PayloadLimit
	if payloadLimit == 0 {
		payloadLimit = wsframe.DefaultPayloadLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	s := &Server{
		id:               uuid.NewString(),
		request:          r,
		respHeader:       make(http.Header),
		offeredProtocols: result.Protocols,
		payloadLimit:     payloadLimit,
		logger:           logger,
		metrics:          metrics,
		descriptor:       d,
	}
	if len(result.Protocols) > 0 {
		s.acceptedProtocol = result.Protocols[0]
	}

	// Frames the handler sends from OnConnect are held here and written
	// right after the 101 response.
	var pending bytes.Buffer
	s.writer = bufio.NewWriter(&pending)

	private := any(sentinelPrivate{})
	if d.OnConnect != nil {
		p, accept := d.OnConnect(s)
		if !accept {
			logger.Event("handler_rejected", map[string]any{"session": s.id})
			return nil, ErrHandlerRejected
		}
		private = p
	}
	s.private = private

	// From here on, OnConnect has committed to accepting the session (or was
	// absent, which counts as acceptance per §4.F's sentinel-private rule).
	// Any failure below must still run OnDisconnect exactly once, the same
	// guarantee Serve provides on every other exit path, since the handler
	// may have already allocated private state in OnConnect.
	notifyDisconnect := func() {
		if d.OnDisconnect != nil {
			d.OnDisconnect(s.private, s)
		}
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		notifyDisconnect()
		return nil, errors.New("websocket: response writer does not support hijacking")
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		notifyDisconnect()
		return nil, err
	}
	s.mu.Lock()
	s.conn = conn
	s.reader = buf.Reader
	s.writer = buf.Writer
	s.decoder = wsframe.NewDecoder(buf.Reader, payloadLimit)

	err = s.writeUpgradeResponse(result)
	if err == nil && pending.Len() > 0 {
		if _, err = s.writer.Write(pending.Bytes()); err == nil {
			err = s.writer.Flush()
		}
	}
	s.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		notifyDisconnect()
		return nil, err
	}

	logger.Event("accepted", map[string]any{"session": s.id, "protocols": result.Protocols})
	metrics.Connected(s.id)
	return s, nil
}

func (s *Server) writeUpgradeResponse(result wshandshake.Result) error {
	if _, err := s.writer.WriteString("HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	header := wshandshake.ResponseHeader(result, s.acceptedProtocol)
	for k, vs := range s.respHeader {
		header[k] = vs
	}
	if err := header.Write(s.writer); err != nil {
		return err
	}
	if _, err := s.writer.WriteString("\r\n"); err != nil {
		return err
	}
	return s.writer.Flush()
}

// ID returns the session's unique identifier, used for correlating log
// lines and metrics records across a connection's lifetime.
func (s *Server) ID() string { return s.id }

// Request returns the original upgrade request, for handlers that need
// header or context access beyond the helpers below.
func (s *Server) Request() *http.Request { return s.request }

// HeaderGet looks up an inbound request header by name.
func (s *Server) HeaderGet(name string) string { return s.request.Header.Get(name) }

// HeaderSet sets an outbound response header. Only meaningful before the
// 101 response is written (i.e., from within OnConnect); calling it from
// OnMessage or later has no effect, per §4.F.
func (s *Server) HeaderSet(name, value string) { s.respHeader.Set(name, value) }

// ProtocolCount returns the number of subprotocols the client offered.
func (s *Server) ProtocolCount() int { return len(s.offeredProtocols) }

// ProtocolIndex returns the i-th offered subprotocol name (0-based). It
// returns "" if i is out of range.
func (s *Server) ProtocolIndex(i int) string {
	if i < 0 || i >= len(s.offeredProtocols) {
		return ""
	}
	return s.offeredProtocols[i]
}

// ProtocolSet overrides the subprotocol the core pre-selected (the first
// offered one). Must be called from OnConnect, before the 101 is sent.
func (s *Server) ProtocolSet(name string) { s.acceptedProtocol = name }

// Send writes one complete, unfragmented frame of the given type. It
// returns the number of payload bytes written; 0 means either closing was
// already set, or the write failed (allocation or flush failure) — §4.C's
// send contract. Safe to call from any goroutine.
func (s *Server) Send(op wsframe.Opcode, payload []byte) int {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return 0
	}

	event := "encode_failed"
	encoded, err := wsframe.Encode(op, payload)
	if err == nil {
		event = "write_failed"
		if _, err = s.writer.Write(encoded); err == nil {
			event = "flush_failed"
			err = s.writer.Flush()
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error(event, err, map[string]any{"session": s.id})
		return 0
	}
	return len(payload)
}

// Close sends a CLOSE frame with an empty payload and marks the session as
// closing, so that further Send calls are no-ops. It does not itself close
// the transport; the read loop (or the host, on teardown) does that.
func (s *Server) Close() int {
	return s.sendClose()
}

// sendClose sends a CLOSE frame with an empty payload exactly once; every
// automatic close the loop sends — peer-initiated, protocol violation, or
// transport error — carries no payload, per §4.D/§4.F ("close(server) →
// send CLOSE with empty payload"). Any status code or reason is recorded
// separately, in logs and metrics, never on the wire. Subsequent calls are
// no-ops because closing is already set by the time they'd run.
func (s *Server) sendClose() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return 0
	}
	s.closing = true

	encoded, err := wsframe.Encode(wsframe.OpClose, nil)
	if err != nil {
		return 0
	}
	if _, err := s.writer.Write(encoded); err != nil {
		return 0
	}
	if err := s.writer.Flush(); err != nil {
		return 0
	}
	return 0
}
