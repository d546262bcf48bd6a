package quic

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocketBuffers raises the kernel send/receive buffer sizes on a Linux
// UDP socket. The Go runtime's default SO_RCVBUF is too small for a server
// fielding many concurrent connections' worth of datagrams; picoquic-style
// servers set this explicitly rather than relying on net.ListenPacket's
// defaults.
func tuneSocketBuffers(pc net.PacketConn, bytes int) error {
	uc, ok := pc.(*net.UDPConn)
	if !ok {
		return nil
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return err
	}
	var setErr error
	err = raw.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, bytes); e != nil {
			setErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, bytes); e != nil {
			setErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return setErr
}
