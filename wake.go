package quic

import (
	"container/list"
	"time"
)

// wakeScheduler keeps connections ordered by next wake time. Each
// connection in this implementation is actually driven by its own
// goroutine (see remoteConn.run), so the scheduler does not drive a
// single event loop: it answers "what's the earliest deadline across all
// connections", and Endpoint.monitorWakes uses that deadline and the
// front connection to nudge it as a backstop to the per-connection timers
// -- the reification the design notes call for when moving off of an
// intrusive doubly linked list.
type wakeScheduler struct {
	items *list.List // of *remoteConn, ordered by next wake time ascending
}

func newWakeScheduler() *wakeScheduler {
	return &wakeScheduler{items: list.New()}
}

func (w *wakeScheduler) insert(c *remoteConn) {
	deadline := c.conn.Timeout()
	for e := w.items.Front(); e != nil; e = e.Next() {
		if e.Value.(*remoteConn).conn.Timeout().After(deadline) {
			w.items.InsertBefore(c, e)
			return
		}
	}
	w.items.PushBack(c)
}

func (w *wakeScheduler) remove(c *remoteConn) {
	for e := w.items.Front(); e != nil; e = e.Next() {
		if e.Value.(*remoteConn) == c {
			w.items.Remove(e)
			return
		}
	}
}

// earliest returns the soonest wake deadline among all scheduled
// connections, or the zero time if none are scheduled.
func (w *wakeScheduler) earliest() time.Time {
	if w.items.Len() == 0 {
		return time.Time{}
	}
	return w.items.Front().Value.(*remoteConn).conn.Timeout()
}

// front returns the connection with the soonest wake deadline, or nil if
// none are scheduled.
func (w *wakeScheduler) front() *remoteConn {
	if w.items.Len() == 0 {
		return nil
	}
	return w.items.Front().Value.(*remoteConn)
}

// reorder re-inserts c at its correct position after its wake deadline has
// changed; the caller holds the endpoint's lock.
func (w *wakeScheduler) reorder(c *remoteConn) {
	w.remove(c)
	w.insert(c)
}
