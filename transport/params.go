package transport

// Transport parameter ids, carried in the TLS extension (type 26) as a
// length-prefixed {id:u16, len:u16, value} list.
const (
	paramInitialMaxStreamData = 0x0001
	paramInitialMaxData       = 0x0002
	paramInitialMaxStreamID   = 0x0003
	paramIdleTimeout          = 0x0004
	paramOmitConnectionID     = 0x0005
	paramMaxPacketSize        = 0x0006
	paramStatelessResetToken  = 0x0007
)

// TransportExtensionType is the TLS extension number carrying Parameters.
const TransportExtensionType = 26

// Default values applied when a parameter is absent from the peer's list.
const (
	defaultInitialMaxStreamData = 65535
	defaultInitialMaxData       = 0x100000 * 1024
	defaultInitialMaxStreamID   = 65535
	defaultIdleTimeout          = 30
	defaultMaxPacketSize        = maxPacketSize - 56
	maxPacketSize               = 1452
)

// Parameters is the set of values exchanged via the transport-parameters
// TLS extension, independently in each direction.
type Parameters struct {
	InitialMaxStreamData uint32
	InitialMaxData       uint32 // bytes; wire value is in KiB
	InitialMaxStreamID   uint32
	IdleTimeout          uint16 // seconds
	OmitConnectionID     bool
	MaxPacketSize        uint16
	StatelessResetToken  []byte // server->client only, 16 bytes
}

// DefaultParameters returns the parameter set assumed in the absence of an
// explicit peer advertisement.
func DefaultParameters() Parameters {
	return Parameters{
		InitialMaxStreamData: defaultInitialMaxStreamData,
		InitialMaxData:       defaultInitialMaxData,
		InitialMaxStreamID:   defaultInitialMaxStreamID,
		IdleTimeout:          defaultIdleTimeout,
		MaxPacketSize:        defaultMaxPacketSize,
	}
}

// Marshal encodes p as the transport-parameters extension payload.
func (p *Parameters) Marshal() []byte {
	buf := make([]byte, 2, 64)
	n := 0

	appendParam := func(id uint16, val []byte) {
		tmp := make([]byte, 4+len(val))
		putUint16(tmp, id)
		putUint16(tmp[2:], uint16(len(val)))
		copy(tmp[4:], val)
		buf = append(buf, tmp...)
		n++
	}

	v := make([]byte, 4)
	putUint32(v, p.InitialMaxStreamData)
	appendParam(paramInitialMaxStreamData, v)

	v = make([]byte, 4)
	putUint32(v, p.InitialMaxData/1024)
	appendParam(paramInitialMaxData, v)

	v = make([]byte, 4)
	putUint32(v, p.InitialMaxStreamID)
	appendParam(paramInitialMaxStreamID, v)

	v = make([]byte, 2)
	putUint16(v, p.IdleTimeout)
	appendParam(paramIdleTimeout, v)

	if p.OmitConnectionID {
		appendParam(paramOmitConnectionID, nil)
	}

	v = make([]byte, 2)
	putUint16(v, p.MaxPacketSize)
	appendParam(paramMaxPacketSize, v)

	if len(p.StatelessResetToken) == 16 {
		appendParam(paramStatelessResetToken, p.StatelessResetToken)
	}

	putUint16(buf, uint16(len(buf)-2))
	return buf
}

// ParseParameters decodes a transport-parameters extension payload,
// filling in defaults for any parameter the peer did not send.
func ParseParameters(b []byte) (Parameters, *Error) {
	p := DefaultParameters()
	if len(b) < 2 {
		return p, newError(TransportParameterError, "short parameter list")
	}
	listLen, _ := getUint16(b)
	b = b[2:]
	if len(b) < int(listLen) {
		return p, newError(TransportParameterError, "truncated parameter list")
	}
	b = b[:listLen]

	for len(b) > 0 {
		if len(b) < 4 {
			return p, newError(TransportParameterError, "truncated parameter header")
		}
		id, _ := getUint16(b)
		length, _ := getUint16(b[2:])
		b = b[4:]
		if len(b) < int(length) {
			return p, newError(TransportParameterError, "truncated parameter value")
		}
		val := b[:length]
		b = b[length:]

		switch id {
		case paramInitialMaxStreamData:
			if v, ok := getUint32(val); ok {
				p.InitialMaxStreamData = v
			}
		case paramInitialMaxData:
			if v, ok := getUint32(val); ok {
				p.InitialMaxData = v * 1024
			}
		case paramInitialMaxStreamID:
			if v, ok := getUint32(val); ok {
				p.InitialMaxStreamID = v
			}
		case paramIdleTimeout:
			if v, ok := getUint16(val); ok {
				p.IdleTimeout = v
			}
		case paramOmitConnectionID:
			p.OmitConnectionID = true
		case paramMaxPacketSize:
			if v, ok := getUint16(val); ok {
				p.MaxPacketSize = v
			}
		case paramStatelessResetToken:
			if len(val) == 16 {
				p.StatelessResetToken = append([]byte(nil), val...)
			}
		}
	}
	return p, nil
}
