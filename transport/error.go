package transport

import "fmt"

// TransportError is a u32 error code carried on the wire in CONNECTION_CLOSE
// and RST_STREAM frames. Values above 0x80000000 are reserved per the QUIC
// transport error space; FrameError additionally folds in the offending
// frame type in its low byte.
type TransportError uint32

// Standard transport error codes.
const (
	NoError TransportError = 0x80000000 + iota
	InternalError
	CancelledError
	FlowControlError
	StreamIDError
	StreamStateError
	FinalOffsetError
	FrameEncodingError
	TransportParameterError
	VersionNegotiationError
	ProtocolViolation
)

// FrameError builds the per-frame-type error code 0x80000100|t.
func FrameError(frameType uint64) TransportError {
	return TransportError(0x80000100 | (frameType & 0xff))
}

func errorCodeString(code uint64) string {
	switch TransportError(code) {
	case NoError:
		return "no_error"
	case InternalError:
		return "internal_error"
	case CancelledError:
		return "cancelled"
	case FlowControlError:
		return "flow_control_error"
	case StreamIDError:
		return "stream_id_error"
	case StreamStateError:
		return "stream_state_error"
	case FinalOffsetError:
		return "final_offset_error"
	case FrameEncodingError:
		return "frame_encoding_error"
	case TransportParameterError:
		return "transport_parameter_error"
	case VersionNegotiationError:
		return "version_negotiation_error"
	case ProtocolViolation:
		return "protocol_violation"
	default:
		if code >= uint64(0x80000100) && code <= uint64(0x800001FF) {
			return fmt.Sprintf("frame_error_%d", code&0xff)
		}
		return fmt.Sprintf("crypto_error_%d", code)
	}
}

// Error is a TransportError code plus a reason. An Error raised while
// processing an inbound packet is peer-visible and drives the connection
// towards the disconnecting state. WriteStream, ResetStream and Close also
// report local API misuse as an Error with code InternalError; those
// calls leave the connection state unchanged and send nothing.
type Error struct {
	Code   TransportError
	Reason string
}

func newError(code TransportError, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return errorCodeString(uint64(e.Code))
	}
	return errorCodeString(uint64(e.Code)) + ": " + e.Reason
}

