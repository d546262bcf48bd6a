package transport

import "time"

// Write ingests one inbound datagram, matching the embedder entry point
// named `incoming` in the design notes -- kept as Write/Read here to match
// the io.Reader/io.Writer shape the rest of the package already uses.
func (c *Conn) Write(data []byte, now time.Time) (int, error) {
	if c.state == stateDisconnected {
		return len(data), nil
	}
	tm := timeUs(now)
	p, hdrLen, ok := parsePacket(data)
	if !ok {
		return len(data), nil // malformed: silently discarded per §7
	}

	if p.typ == packetTypeVersionNegotiation {
		c.recvVersionNegotiation(p)
		return len(data), nil
	}

	var payload []byte
	if p.typ.isCleartext() {
		body, verified := verifyCleartext(hdrLen, data)
		if !verified {
			c.checkStatelessReset(data)
			return len(data), nil
		}
		payload = body
	} else {
		if len(data) < hdrLen {
			return len(data), nil
		}
		opened, err := c.tls.open(data[:hdrLen], data[hdrLen:], p.packetNumber)
		if err != nil {
			c.checkStatelessReset(data)
			return len(data), nil
		}
		payload = opened
	}

	if c.sack.Contains(p.packetNumber) {
		return len(data), nil // duplicate
	}
	c.sack.Insert(p.packetNumber)
	if int64(p.packetNumber) > c.highestRecvPN {
		c.highestRecvPN = int64(p.packetNumber)
	}
	c.ackNeeded = true
	c.latestProgressTime = tm
	c.largestRecvTm = tm

	if c.logEventFn != nil {
		e := newLogEventPacket(now, logEventPacketReceived, p)
		c.logEvent(e)
	}

	c.advanceOnReceive(p.typ)

	if err := c.recvFrames(payload, tm); err != nil {
		c.closeError = err
		c.state = stateDisconnecting
	}
	return len(data), nil
}

// advanceOnReceive moves the state machine forward on processing the
// peer's cleartext handshake packets, per the §4.10 table.
func (c *Conn) advanceOnReceive(typ packetType) {
	switch c.state {
	case stateClientInitSent, stateClientInitResent:
		c.state = stateClientHandshakeStart
	case stateClientHandshakeStart:
		c.state = stateClientHandshakeProgress
	case stateServerInit:
		// stays until the handshake stream reports completion in recvFrames
	}
}

func (c *Conn) recvVersionNegotiation(p *packet) {
	if c.state != stateClientInitSent {
		return
	}
	chosen, ok := pickSupportedVersion(p.supportedVersions)
	if !ok {
		c.closeError = newError(VersionNegotiationError, "no supported version offered")
		c.state = stateDisconnecting
		return
	}
	c.version = chosen
	c.state = stateClientRenegotiate
	c.resetStreamZero()
}

// pickSupportedVersion returns the first version in candidates that this
// implementation understands.
func pickSupportedVersion(candidates []uint32) (uint32, bool) {
	for _, v := range candidates {
		for _, supported := range SupportedVersions {
			if v == supported {
				return v, true
			}
		}
	}
	return 0, false
}

// SupportedVersions lists the QUIC versions this core will negotiate,
// matching picoquic's interop/test version pair.
var SupportedVersions = []uint32{0xff000001, 0x50435130}

func (c *Conn) resetStreamZero() {
	s := c.getOrCreateStream(streamID0)
	s.sendQueue = nil
	s.sent = 0
	s.received = nil
	s.consumed = 0
	s.haveFinOffset = false
}

// checkStatelessReset compares the datagram's trailing 16 bytes against
// this connection's derived reset secret; a match means the peer (or an
// off-path attacker who doesn't know the secret, with overwhelming
// improbability) is telling us it has forgotten this connection.
func (c *Conn) checkStatelessReset(data []byte) bool {
	if len(data) < 16 {
		return false
	}
	tail := data[len(data)-16:]
	for i, b := range c.resetSecret {
		if tail[i] != b {
			return false
		}
	}
	c.setDraining()
	return true
}

// recvFrames parses and applies every frame in payload in order.
func (c *Conn) recvFrames(payload []byte, now uint64) *Error {
	for len(payload) > 0 {
		f, n, ok := decodeFrame(payload)
		if !ok {
			return newError(FrameEncodingError, "malformed frame")
		}
		payload = payload[n:]
		if !f.isPureAck() {
			c.ackNeeded = true
		}
		if c.logEventFn != nil {
			c.logEvent(newLogEventFrame(time.UnixMicro(int64(now)), logEventFramesProcessed, f))
		}
		if err := c.recvFrame(f, now); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) recvFrame(f frame, now uint64) *Error {
	switch f := f.(type) {
	case *paddingFrame, *pingFrame:
		return nil
	case *ackFrame:
		return c.recvFrameAck(f, now)
	case *streamFrame:
		return c.recvFrameStream(f)
	case *resetStreamFrame:
		return c.recvFrameResetStream(f)
	case *stopSendingFrame:
		if f.streamID == streamID0 {
			return newError(ProtocolViolation, "stream 0 cannot be stopped")
		}
		c.addEvent(newStreamStopEvent(f.streamID, uint64(f.errorCode)))
		return nil
	case *maxDataFrame:
		c.flow.maxDataRemote = f.maximumData
		return nil
	case *maxStreamDataFrame:
		if s, ok := c.streams[f.streamID]; ok {
			s.maxDataRemote = f.maximumData
		}
		return nil
	case *maxStreamIDFrame:
		if f.maximumStreamID > c.maxStreamIDRemote {
			c.maxStreamIDRemote = f.maximumStreamID
		}
		return nil
	case *blockedFrame, *streamBlockedFrame, *streamIDNeededFrame:
		return nil // informational only: nothing to enforce on the receiver
	case *newConnectionIDFrame:
		return nil // additional cnx-ids are accepted but this core stays single-cid
	case *connectionCloseFrame:
		c.setDraining()
		return nil
	default:
		return nil
	}
}

// recvFrameAck acks every packet number the frame covers, inverting the
// gap/length encoding buildAck produces: each block's high end sits gap
// packets below the end of the previous (higher) range, and its low end
// is length below that.
func (c *Conn) recvFrameAck(f *ackFrame, now uint64) *Error {
	c.ackOne(f.largestAck, now)
	prevLow := f.largestAck + 1
	for _, blk := range f.blocks {
		high := prevLow - blk.gap - 1
		low := high - blk.length
		for pn := low; pn <= high; pn++ {
			c.ackOne(pn, now)
		}
		prevLow = low
	}
	return nil
}

func (c *Conn) ackOne(pn uint64, now uint64) {
	p := c.recovery.onAck(pn, now)
	if p == nil {
		return
	}
	c.cong.Notify(c.congState, CongestionEventAck, uint64(p.length), 0, c.recovery.smoothedRTT)
	if c.state == stateClientAlmostReady {
		c.state = stateClientReady
	}
	if c.state == stateServerAlmostReady {
		c.state = stateServerReady
	}
}

func (c *Conn) recvFrameStream(f *streamFrame) *Error {
	s := c.getOrCreateStream(f.streamID)
	if f.streamID != streamID0 {
		if err := streamRecv(s, uint64(len(f.data))); err != nil {
			return err
		}
		if err := c.flow.recv(uint64(len(f.data))); err != nil {
			return err
		}
	}
	data, err := s.recv(f.offset, f.data, f.fin)
	if err != nil {
		return err
	}
	if len(data) > 0 || f.fin {
		if f.streamID == streamID0 {
			c.feedHandshake(data)
		} else {
			s.appData = append(s.appData, data...)
			c.addEvent(newStreamRecvEvent(f.streamID))
		}
	}
	if s.fin() && f.streamID != streamID0 {
		c.addEvent(newStreamCompleteEvent(f.streamID))
	}
	return nil
}

func (c *Conn) recvFrameResetStream(f *resetStreamFrame) *Error {
	if f.streamID == streamID0 {
		return newError(ProtocolViolation, "stream 0 cannot be reset")
	}
	s := c.getOrCreateStream(f.streamID)
	if s.haveFinOffset && s.finOffset != f.finalSize {
		return newError(FinalOffsetError, "reset final size differs from fin offset")
	}
	s.flags |= streamResetReceived
	s.remoteErrorCode = f.errorCode
	c.addEvent(newStreamResetEvent(f.streamID, uint64(f.errorCode)))
	return nil
}

// feedHandshake pumps newly-contiguous stream-0 bytes into the TLS engine
// and advances the state machine on progress, per §4.10.
func (c *Conn) feedHandshake(data []byte) {
	var out []byte
	result, peerParams, err := c.tls.handshake(data, &out)
	if err != nil {
		c.closeError = newError(ProtocolViolation, "tls handshake failed")
		c.state = stateDisconnecting
		return
	}
	if len(peerParams) > 0 {
		if p, perr := ParseParameters(peerParams); perr == nil {
			c.remoteParams = p
			c.flow.maxDataRemote = uint64(p.InitialMaxData)
			c.maxStreamIDRemote = uint64(p.InitialMaxStreamID)
		}
	}
	if len(out) > 0 {
		c.getOrCreateStream(streamID0).enqueue(out)
	}
	switch result {
	case handshakeStatelessRetry:
		if !c.isClient {
			c.state = stateServerSendHRR
		} else {
			c.state = stateClientHRRReceived
		}
	case handshakeOK:
		if c.isClient {
			if c.state == stateClientHandshakeProgress {
				c.state = stateClientAlmostReady
			}
		} else {
			if c.state == stateServerInit {
				c.state = stateServerAlmostReady
			}
		}
	}
}
