package main

import (
	"github.com/tessera-io/wscore/wscore"
	"github.com/tessera-io/wscore/wsframe"
)

// newEchoDescriptor builds a Handler that echoes every TEXT/BINARY message
// back to the sender unchanged, offers no subprotocol override, and logs
// nothing itself (the core already logs lifecycle events around it). It is
// the same shape as the teacher repo's WebSocketHandler, expressed through
// the versioned Descriptor interface instead of a bare http.HandlerFunc
// loop.
func newEchoDescriptor() wscore.Descriptor {
	return wscore.Descriptor{
		APIVersion: wscore.APIVersion1,
		OnConnect: func(s *wscore.Server) (any, bool) {
			s.Send(wsframe.OpText, []byte("connected"))
			return struct{}{}, true
		},
		OnMessage: func(_ any, s *wscore.Server, op wsframe.Opcode, data []byte) int {
			return s.Send(op, data)
		},
		OnDisconnect: func(_ any, _ *wscore.Server) {},
	}
}
