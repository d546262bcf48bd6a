package quic

import "net"

// connIndex demultiplexes inbound datagrams to a remoteConn, by connection
// id and by peer address, mirroring picoquic's two parallel hash tables
// (picoquic_cnx_id_hash/picoquic_net_id_hash). Registration of a cnx-id
// that is already bound to a different connection is rejected without
// touching the existing binding, per the resolved Open Question in
// SPEC_FULL.md.
type connIndex struct {
	byCID  map[string]*remoteConn
	byAddr map[string]*remoteConn
}

func newConnIndex() *connIndex {
	return &connIndex{
		byCID:  make(map[string]*remoteConn),
		byAddr: make(map[string]*remoteConn),
	}
}

func (idx *connIndex) lookupCID(cid []byte) *remoteConn {
	return idx.byCID[string(cid)]
}

func (idx *connIndex) lookupAddr(addr net.Addr) *remoteConn {
	return idx.byAddr[addr.String()]
}

// registerCID binds cid to c. Returns false without modifying the index if
// cid is already bound to a different connection.
func (idx *connIndex) registerCID(cid []byte, c *remoteConn) bool {
	key := string(cid)
	if existing, ok := idx.byCID[key]; ok && existing != c {
		return false
	}
	idx.byCID[key] = c
	return true
}

func (idx *connIndex) registerAddr(addr net.Addr, c *remoteConn) bool {
	key := addr.String()
	if existing, ok := idx.byAddr[key]; ok && existing != c {
		return false
	}
	idx.byAddr[key] = c
	return true
}

// remove deregisters every index entry pointing at c.
func (idx *connIndex) remove(c *remoteConn) {
	for k, v := range idx.byCID {
		if v == c {
			delete(idx.byCID, k)
		}
	}
	for k, v := range idx.byAddr {
		if v == c {
			delete(idx.byAddr, k)
		}
	}
}
