package transport

import "time"

// maxPacketPayload is the STREAM data budget of one packet: maxPacketSize
// less the 8-byte FNV-1a tail. The header, the frame headers and the
// 16-byte AEAD tag of 1-RTT packets are not subtracted.
const maxPacketPayload = maxPacketSize - 8

// Read produces the next outbound datagram into buf, matching the
// embedder entry point named `prepare_packet` in the design notes. It
// returns (0, nil) when there is nothing to send right now.
func (c *Conn) Read(buf []byte, now time.Time) (int, error) {
	tm := timeUs(now)
	if c.state == stateDisconnected {
		return 0, nil
	}
	if tm-c.latestProgressTime > idleTimeoutSeconds*1_000_000 {
		c.state = stateDisconnected
		c.addEvent(Event{Type: EventStreamComplete, StreamID: streamID0})
		return 0, nil
	}

	typ := c.packetTypeForState()

	var frames []frame
	if oldest := c.recovery.oldest; oldest != nil {
		if lost, timerBased := c.recovery.lossCheck(oldest, tm); lost {
			c.recovery.remove(oldest)
			c.recovery.totalLost++
			if timerBased {
				c.recovery.nbRetransmit++
			}
			if timerBased && c.recovery.nbRetransmit > maxRetransmits {
				c.state = stateDisconnected
				c.addEvent(Event{Type: EventStreamComplete, StreamID: streamID0})
				return 0, nil
			}
			event := CongestionEventPacketLoss
			if timerBased {
				event = CongestionEventTimerLoss
			}
			c.congState = c.cong.Notify(c.congState, event, 0, uint64(oldest.length), c.recovery.smoothedRTT)
			for _, f := range oldest.frames {
				if f.isPureAck() {
					continue
				}
				// Lost stream data goes back on the stream's send queue so
				// the next buildNewFrames call re-sends it (possibly
				// coalesced with newer data and re-checked against flow
				// control) instead of replaying the frozen frame verbatim.
				if sf, ok := f.(*streamFrame); ok {
					if s, ok := c.streams[sf.streamID]; ok {
						s.requeue(sf.offset, sf.data)
						continue
					}
				}
				frames = append(frames, f)
			}
		}
	}

	if frames == nil && c.congState.Window() > c.recovery.bytesInTransit {
		frames = c.buildNewFrames(typ)
	} else if c.ackNeeded {
		frames = append([]frame{c.buildAck(tm)}, frames...)
	}

	if c.state == stateDisconnecting {
		cc := &connectionCloseFrame{
			errorCode:    uint64(c.closeError.Code),
			reasonPhrase: []byte(c.closeError.Reason),
		}
		// CONNECTION_CLOSE goes right after a leading ACK, before the rest.
		at := 0
		if len(frames) > 0 {
			if _, ok := frames[0].(*ackFrame); ok {
				at = 1
			}
		}
		frames = append(frames[:at], append([]frame{cc}, frames[at:]...)...)
	}

	if len(frames) == 0 {
		c.nextWakeTime = c.recovery.nextWakeTime(tm, c.highestAckTime, c.ackNeeded)
		return 0, nil
	}

	n := c.writePacket(buf, typ, frames, tm)
	c.recovery.onPacketSent(c.recovery.sendSequence, tm, n, frames)
	c.flow.send(uint64(n))
	c.advanceOnSend()

	if c.state == stateDisconnecting && hasConnectionClose(frames) {
		c.state = stateDisconnected
	}

	c.nextWakeTime = c.recovery.nextWakeTime(tm, c.highestAckTime, c.ackNeeded)
	return n, nil
}

func hasConnectionClose(frames []frame) bool {
	for _, f := range frames {
		if _, ok := f.(*connectionCloseFrame); ok {
			return true
		}
	}
	return false
}

func (c *Conn) packetTypeForState() packetType {
	if !c.state.isCleartext() {
		return packetTypeShort
	}
	if c.isClient {
		return packetTypeClientInitial
	}
	return packetTypeServerCleartext
}

// buildNewFrames assembles control frames then application data, in the
// order §4.7 step 4 specifies: ACK, CONNECTION_CLOSE (inserted by Read
// after the ACK when disconnecting), MAX_DATA, MAX_STREAM_DATA, then
// STREAM frames up to the packet budget.
func (c *Conn) buildNewFrames(typ packetType) []frame {
	var frames []frame
	budget := maxPacketPayload

	if c.ackNeeded {
		f := c.buildAck(c.latestProgressTime)
		frames = append(frames, f)
		c.ackNeeded = false
	}

	if newLimit, should := c.flow.shouldSendMaxData(); should {
		c.flow.maxDataLocal = newLimit
		frames = append(frames, &maxDataFrame{maximumData: newLimit})
	}

	for _, id := range c.streamIDs {
		s := c.streams[id]
		if id == streamID0 {
			continue
		}
		if s.flags&streamResetRequested != 0 && s.flags&streamResetSent == 0 {
			s.flags |= streamResetSent
			frames = append(frames, &resetStreamFrame{streamID: id, errorCode: s.localErrorCode, finalSize: s.sent})
		}
		if newLimit, should := streamShouldSendMaxData(s); should {
			s.maxDataLocal = newLimit
			frames = append(frames, &maxStreamDataFrame{streamID: id, maximumData: newLimit})
		}
	}

	// stream 0 is serviced first while handshaking; afterwards, round-robin.
	order := c.scheduleOrder()
	for _, id := range order {
		s := c.streams[id]
		if !s.hasPending() || budget <= 0 {
			continue
		}
		off, data := s.nextSend(budget)
		if len(data) == 0 {
			continue
		}
		fin := s.finRequested && off+uint64(len(data)) == s.sent
		frames = append(frames, &streamFrame{streamID: id, offset: off, data: data, fin: fin})
		s.advance(len(data))
		budget -= len(data)
	}
	return frames
}

func (c *Conn) scheduleOrder() []uint64 {
	if !c.state.isReady() {
		return []uint64{streamID0}
	}
	out := make([]uint64, 0, len(c.streamIDs))
	for _, id := range c.streamIDs {
		if id != streamID0 {
			out = append(out, id)
		}
	}
	if len(out) > 0 {
		// Rotate the order so a different stream leads each packet.
		r := c.rrCursor % len(out)
		out = append(append(make([]uint64, 0, len(out)), out[r:]...), out[:r]...)
		c.rrCursor = r + 1
	}
	return out
}

func (c *Conn) buildAck(now uint64) *ackFrame {
	largest, ok := c.sack.Largest()
	if !ok {
		return &ackFrame{}
	}
	ranges := c.sack.Ranges()
	f := &ackFrame{
		largestAck: largest,
		ackDelay:   now - c.largestRecvTm,
	}
	prevLow := largest + 1
	for _, r := range ranges {
		gap := prevLow - r.high - 1
		f.blocks = append(f.blocks, ackRangeBlock{gap: gap, length: r.high - r.low})
		prevLow = r.low
	}
	c.highestAckTime = now
	return f
}

// writePacket encodes the header, frames, and checksum/AEAD tail into buf.
func (c *Conn) writePacket(buf []byte, typ packetType, frames []frame, now uint64) int {
	var header []byte
	if typ.isLongHeader() {
		header = buildLongHeader(typ, c.peerCID, c.recovery.sendSequence, c.version)
	} else {
		header = buildShortHeader(c.peerCID, false, c.recovery.sendSequence)
	}

	var payload []byte
	for _, f := range frames {
		payload = encodeFrame(payload, f)
	}
	if typ == packetTypeClientInitial {
		for len(header)+len(payload)+8 < maxPacketSize {
			payload = append(payload, 0) // PADDING (type 0) to reach MTU
		}
	}

	var out []byte
	if typ.isCleartext() {
		out = protectCleartext(header, payload)
	} else {
		out = c.tls.seal(header, payload, c.recovery.sendSequence)
	}
	n := copy(buf, out)

	if c.logEventFn != nil {
		p := &packet{typ: typ, packetNumber: c.recovery.sendSequence, payloadLen: len(payload)}
		c.logEvent(newLogEventPacket(time.UnixMicro(int64(now)), logEventPacketSent, p))
	}
	return n
}

// advanceOnSend moves the state machine forward on the first successful
// send of stream-0 data in each handshake state, per §4.10.
func (c *Conn) advanceOnSend() {
	switch c.state {
	case stateClientInit:
		c.state = stateClientInitSent
	case stateClientRenegotiate:
		c.state = stateClientInitResent
	case stateClientAlmostReady:
		c.state = stateClientReady
	case stateServerAlmostReady:
		c.state = stateServerReady
	case stateServerSendHRR:
		c.state = stateServerInit
	}
}

// Timeout reports the next time Read should be called even without new
// input, matching `next_wake_delay` in the design notes.
func (c *Conn) Timeout() time.Time {
	return time.UnixMicro(int64(c.nextWakeTime))
}
