package wsframe

import (
	"encoding/binary"
	"errors"
)

// StatusCode is the optional two-byte code carried in a CLOSE frame's
// payload.
type StatusCode uint16

const (
	StatusNormalClosure  StatusCode = 1000
	StatusGoingAway      StatusCode = 1001
	StatusProtocolError  StatusCode = 1002
	StatusUnsupportedData StatusCode = 1003
	StatusNoStatus       StatusCode = 1005
	StatusAbnormal       StatusCode = 1006
	StatusInvalidPayload StatusCode = 1007
	StatusPolicyViolation StatusCode = 1008
	StatusMessageTooBig  StatusCode = 1009
	StatusInternalError  StatusCode = 1011
)

// EncodeClose builds the payload for a CLOSE frame: a two-byte big-endian
// status code followed by an optional UTF-8 reason. An empty reason is
// allowed; code 0 means "no status code", matching StatusNoStatus's
// semantics of being absent from the wire rather than sent as a literal.
func EncodeClose(code StatusCode, reason string) []byte {
	if code == 0 {
		return nil
	}
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	return payload
}

// ErrNotCloseFrame is returned by DecodeClose when called on a non-CLOSE
// payload.
var ErrNotCloseFrame = errors.New("websocket: not a close frame payload")

// DecodeClose extracts the status code and reason from a CLOSE frame's
// payload. An empty payload yields StatusNoStatus and an empty reason, per
// RFC 6455 §7.1.5.
func DecodeClose(payload []byte) (StatusCode, string, error) {
	if len(payload) == 0 {
		return StatusNoStatus, "", nil
	}
	if len(payload) < 2 {
		return 0, "", ErrNotCloseFrame
	}
	code := StatusCode(binary.BigEndian.Uint16(payload[:2]))
	return code, string(payload[2:]), nil
}
