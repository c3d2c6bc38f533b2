package artnet

import (
	"net/netip"
	"slices"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry is the set of known Art-Net peers plus the node's own resolved IP.
// Peers never expire.
type Registry struct {
	peers *xsync.MapOf[netip.AddrPort, struct{}]
	self  atomic.Pointer[netip.Addr]
}

func NewRegistry() *Registry {
	return &Registry{
		peers: xsync.NewMapOf[netip.AddrPort, struct{}](),
	}
}

// Add registers p. It returns false if p is already known or is the node itself.
func (r *Registry) Add(p netip.AddrPort) bool {
	p = netip.AddrPortFrom(p.Addr().Unmap(), p.Port())
	if self, ok := r.Self(); ok && p.Addr() == self {
		return false
	}
	_, loaded := r.peers.LoadOrStore(p, struct{}{})
	if !loaded {
		metricPeers.Set(float64(r.peers.Size()))
	}
	return !loaded
}

// RemoveIP drops every peer with the given IP and returns how many were removed.
func (r *Registry) RemoveIP(ip netip.Addr) int {
	ip = ip.Unmap()
	removed := 0
	r.peers.Range(func(p netip.AddrPort, _ struct{}) bool {
		if p.Addr() == ip {
			r.peers.Delete(p)
			removed++
		}
		return true
	})
	metricPeers.Set(float64(r.peers.Size()))
	return removed
}

// Resolve records ip as the node's own address and purges it from the peers.
func (r *Registry) Resolve(ip netip.Addr) int {
	ip = ip.Unmap()
	r.self.Store(&ip)
	return r.RemoveIP(ip)
}

// Self returns the resolved own IP.
func (r *Registry) Self() (netip.Addr, bool) {
	p := r.self.Load()
	if p == nil {
		return netip.Addr{}, false
	}
	return *p, true
}

// Snapshot returns the peers sorted by address.
func (r *Registry) Snapshot() []netip.AddrPort {
	out := make([]netip.AddrPort, 0, r.peers.Size())
	r.peers.Range(func(p netip.AddrPort, _ struct{}) bool {
		out = append(out, p)
		return true
	})
	slices.SortFunc(out, func(a, b netip.AddrPort) int { return a.Compare(b) })
	return out
}

func (r *Registry) Len() int {
	return r.peers.Size()
}
