package transport

import "testing"

func TestRenoInitialWindow(t *testing.T) {
	alg := NewRenoCongestion()
	state := alg.Init()
	if state.Window() != initialWindow {
		t.Fatalf("got %d, want %d", state.Window(), initialWindow)
	}
}

func TestRenoSlowStartGrowsOnAck(t *testing.T) {
	alg := NewRenoCongestion()
	state := alg.Init()
	before := state.Window()
	state = alg.Notify(state, CongestionEventAck, 1000, 0, 50000)
	if state.Window() <= before {
		t.Fatalf("window should grow in slow start: before=%d after=%d", before, state.Window())
	}
}

func TestRenoLossHalvesWindow(t *testing.T) {
	alg := NewRenoCongestion()
	state := alg.Init()
	// Grow the window well above the floor first so halving is observable.
	state = alg.Notify(state, CongestionEventAck, initialWindow*4, 0, 50000)
	before := state.Window()
	state = alg.Notify(state, CongestionEventPacketLoss, 0, 1400, 50000)
	if state.Window() >= before {
		t.Fatalf("window should shrink on loss: before=%d after=%d", before, state.Window())
	}
}

func TestRenoSpuriousRepeatIsNoop(t *testing.T) {
	alg := NewRenoCongestion()
	state := alg.Init()
	before := state.Window()
	state = alg.Notify(state, CongestionEventSpuriousRepeat, 0, 0, 50000)
	if state.Window() != before {
		t.Fatalf("spurious repeat must not change the window: before=%d after=%d", before, state.Window())
	}
}
