//go:build !unix

package artnet

import "syscall"

// The runtime already enables SO_BROADCAST on datagram sockets here.
func controlSocket(_, _ string, _ syscall.RawConn) error {
	return nil
}
