package wscore

import (
	"errors"
	"io"

	"github.com/tessera-io/wscore/wsframe"
)

// Serve drives the read/dispatch loop (§4.D) until the connection
// terminates, then invokes OnDisconnect exactly once and closes the
// transport. It blocks; callers typically run it in its own goroutine
// right after Accept succeeds. The handler is free to spawn its own
// goroutines from OnConnect and call Send/Close from any of them for as
// long as the session is alive.
func (s *Server) Serve() {
	code, reason := s.readLoop()

	// sendClose is idempotent: if readLoop already sent a CLOSE in response
	// to a peer CLOSE, this is a no-op best-effort attempt. code/reason are
	// never put on the wire here — every automatic CLOSE carries an empty
	// payload; they only feed the log/metrics call below.
	s.sendClose()

	_ = s.conn.Close()

	s.metrics.Disconnected(s.id, code)
	s.logger.Event("closed", map[string]any{"session": s.id, "code": code, "reason": reason})

	if s.descriptor.OnDisconnect != nil {
		s.descriptor.OnDisconnect(s.private, s)
	}
}

// readLoop implements the §4.D dispatch table over the §4.A decoder. It
// returns a status code/reason for logging and metrics only; the CLOSE
// frame itself (sent via sendClose, here or by the caller) always carries
// an empty payload regardless of what caused the exit.
func (s *Server) readLoop() (wsframe.StatusCode, string) {
	var (
		assembling  bool
		firstOpcode wsframe.Opcode
		messageBuf  []byte
	)

	for {
		frame, err := s.decoder.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Event("peer_eof", map[string]any{"session": s.id})
				return wsframe.StatusAbnormal, ""
			}
			if errors.Is(err, wsframe.ErrProtocolViolation) {
				s.logger.Error("protocol_violation", err, map[string]any{"session": s.id})
				return wsframe.StatusProtocolError, err.Error()
			}
			s.logger.Error("transport_error", err, map[string]any{"session": s.id})
			return wsframe.StatusAbnormal, ""
		}

		if frame.Opcode.IsControl() {
			switch frame.Opcode {
			case wsframe.OpClose:
				code, reason, _ := wsframe.DecodeClose(frame.Payload)
				if code == 0 {
					code = wsframe.StatusNormalClosure
				}
				s.sendClose()
				return code, reason
			case wsframe.OpPing:
				s.Send(wsframe.OpPong, frame.Payload)
				continue
			case wsframe.OpPong:
				continue
			default:
				return wsframe.StatusProtocolError, "unknown control opcode"
			}
		}

		switch {
		case frame.Opcode == wsframe.OpContinuation:
			if !assembling {
				return wsframe.StatusProtocolError, "continuation without preceding data frame"
			}
			messageBuf = append(messageBuf, frame.Payload...)
		case frame.Opcode == wsframe.OpText || frame.Opcode == wsframe.OpBinary:
			if assembling {
				return wsframe.StatusProtocolError, "data frame received mid-fragment"
			}
			firstOpcode = frame.Opcode
			messageBuf = frame.Payload
			assembling = !frame.FIN
		default:
			return wsframe.StatusProtocolError, "invalid opcode"
		}

		if frame.FIN {
			assembling = false
			s.metrics.Message(s.id, firstOpcode, len(messageBuf))
			if s.descriptor.OnMessage != nil {
				s.descriptor.OnMessage(s.private, s, firstOpcode, messageBuf)
			}
			messageBuf = nil
		}
	}
}
