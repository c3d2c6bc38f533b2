package artnet

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"artnetnode/internal/logger"
	"golang.org/x/time/rate"
)

// pingPort receives the connectivity check sent when the socket is opened.
const pingPort = 60000

// Node is an Art-Net node (DMX over UDP/IP). It listens for ArtDMX data of its
// subnet, answers discovery and sends DMX output to the known peers.
type Node struct {
	log   *logger.Log
	opts  Options
	token int

	store *Store
	peers *Registry

	pkts   atomic.Pointer[packets]
	pktsMu sync.Mutex

	hibernate atomic.Bool
	unicast   atomic.Bool
	output    atomic.Int32
	state     atomic.Int32

	conn   atomic.Pointer[connRef]
	listen func(port int) (packetConn, error)
	wake   chan struct{}

	out  outputState
	warn *rate.Limiter
}

// Controller is the surface used by applications driving the node.
type Controller interface {
	Resume()
	Pause()
	SetAddress(subnet, net int) bool
	SetUnicast(unicast bool)
	Publish(channels []float64) error
	ReadUniverse(u int) Universe
	ListPeers() []netip.AddrPort
	AddPeer(ip string) bool
	RequestDiscovery() bool
}

var _ Controller = (*Node)(nil)

type connRef struct {
	packetConn
}

// NewNode creates a node. It does not touch the network until Serve runs.
func NewNode(log logger.Logger, opts Options) (*Node, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	l := log.With(logger.Fields{"module": "art-net"})
	if !opts.Address.Valid() {
		l.Warnf("address %s is out of range, using 0:0", opts.Address)
		opts.Address = Address{}
	}

	if !opts.FallbackIP.IsValid() || !opts.Broadcast.IsValid() {
		ip, broadcast, err := FindArtNetIP(opts.AddressRange)
		if err != nil {
			l.Warnf("failed to find the art-net IP: %v", err)
		}
		if !opts.FallbackIP.IsValid() {
			opts.FallbackIP = ip
			if !ip.IsValid() {
				opts.FallbackIP = netip.IPv4Unspecified()
			}
		}
		if !opts.Broadcast.IsValid() {
			opts.Broadcast = broadcast
			if !broadcast.IsValid() {
				opts.Broadcast = limitedBroadcast
			}
		}
	}

	n := &Node{
		log:    l,
		opts:   opts,
		token:  rand.IntN(1024) + 1,
		store:  NewStore(),
		peers:  NewRegistry(),
		listen: listenUDP,
		wake:   make(chan struct{}, 1),
		out:    outputState{last: make([]float64, opts.Channels)},
		warn:   rate.NewLimiter(rate.Every(time.Second), 5),
	}
	n.pkts.Store(buildPackets(opts.Address, opts.FallbackIP, n.token))
	n.hibernate.Store(opts.Hibernate)
	n.unicast.Store(opts.Unicast)
	n.refreshOutput()
	if opts.Hibernate {
		n.setState(Hibernating)
	} else {
		n.setState(Disconnected)
	}

	l.Infof("Using ArtNet address %s, IP %s and broadcast %s", opts.Address, opts.FallbackIP, opts.Broadcast)
	return n, nil
}

// Serve runs the network loop until ctx is cancelled. Network failures are
// logged and retried after the retry interval.
func (n *Node) Serve(ctx context.Context) error {
	for {
		if !n.hibernate.Load() {
			if err := n.session(ctx); err != nil && ctx.Err() == nil {
				n.log.Errorf("Missing network connection: %v", err)
			}
		}

		t := time.NewTimer(n.opts.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			if ref := n.conn.Swap(nil); ref != nil {
				ref.Close()
			}
			return ctx.Err()
		case <-n.wake:
			t.Stop()
		case <-t.C:
		}
	}
}

// session opens the socket, announces the node and runs the receive loop
// until the socket fails or the node is paused.
func (n *Node) session(ctx context.Context) error {
	c, err := n.open()
	if err != nil {
		n.setState(Disconnected)
		return err
	}
	ref := &connRef{c}
	n.conn.Store(ref)
	defer n.release(ref)
	if n.hibernate.Load() {
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	n.setState(Active)
	n.log.Info("ArtNet node started")

	pk := n.packets()
	n.send(c, pk.probe, n.broadcastTo(), kindProbe)
	probe := time.AfterFunc(n.opts.ProbeTimeout, n.probeExpired)
	defer probe.Stop()
	n.send(c, pk.poll, n.broadcastTo(), kindPoll)

	return n.receive(ctx, c)
}

func (n *Node) open() (packetConn, error) {
	c, err := n.listen(n.opts.Port)
	if err != nil {
		return nil, err
	}
	// Fails while no interface can reach the broadcast address.
	if err := c.WriteTo([]byte("ping"), netip.AddrPortFrom(n.opts.Broadcast, pingPort)); err != nil {
		c.Close()
		return nil, fmt.Errorf("connectivity check: %w", err)
	}
	return c, nil
}

func (n *Node) release(ref *connRef) {
	ref.Close()
	n.conn.CompareAndSwap(ref, nil)
	if n.hibernate.Load() {
		n.setState(Hibernating)
	} else {
		n.setState(Disconnected)
	}
}

func (n *Node) probeExpired() {
	if _, ok := n.peers.Self(); ok {
		return
	}
	n.log.Warnf("own IP not resolved within %v, announcing %s", n.opts.ProbeTimeout, n.packets().self)
}

// Resume leaves hibernation and lets Serve open the socket.
func (n *Node) Resume() {
	n.log.Info("ArtNet continued")
	n.hibernate.Store(false)
	n.refreshOutput()
	if !n.state.CompareAndSwap(int32(Hibernating), int32(Disconnected)) {
		return
	}
	metricState.Set(float64(Disconnected))
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Pause closes the socket and turns outgoing data into a no-op.
func (n *Node) Pause() {
	n.log.Info("ArtNet paused")
	n.hibernate.Store(true)
	n.refreshOutput()
	n.stopListener()
	n.setState(Hibernating)
}

// Close pauses the node for good.
func (n *Node) Close() {
	n.Pause()
	n.log.Info("ArtNet node stopped")
}

// stopListener sends the shutdown signal to our own port and closes the socket.
func (n *Node) stopListener() {
	ref := n.conn.Swap(nil)
	if ref == nil {
		return
	}
	self := netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), uint16(n.opts.Port))
	if err := ref.WriteTo(n.packets().shutdown, self); err != nil {
		n.log.Debugf("Could not signal ArtNet listener: %v", err)
	}
	ref.Close()
}

// SetAddress sets the subnet and net to send and receive on. It returns false
// and keeps the current address if the pair is out of range.
func (n *Node) SetAddress(subnet, net int) bool {
	addr, err := NewAddress(subnet, net)
	if err != nil {
		n.log.Debug(err)
		return false
	}
	n.pktsMu.Lock()
	cur := n.pkts.Load()
	n.pkts.Store(buildPackets(addr, cur.self, n.token))
	n.pktsMu.Unlock()
	n.log.Infof("ArtNet address set to %s", addr)
	return true
}

func (n *Node) resolveSelf(ip netip.Addr) {
	n.pktsMu.Lock()
	cur := n.pkts.Load()
	n.pkts.Store(buildPackets(cur.addr, ip, n.token))
	n.pktsMu.Unlock()
}

// SetUnicast selects unicast to known peers (true) or broadcast output.
func (n *Node) SetUnicast(unicast bool) {
	n.unicast.Store(unicast)
	n.refreshOutput()
}

// RequestDiscovery broadcasts an ArtPoll. It returns false without a socket.
func (n *Node) RequestDiscovery() bool {
	ref := n.conn.Load()
	if ref == nil {
		return false
	}
	return n.send(ref, n.packets().poll, n.broadcastTo(), kindPoll)
}

// AddPeer registers a peer by "ip" or "ip:port". It returns true if the peer
// was unknown before.
func (n *Node) AddPeer(ip string) bool {
	p, err := netip.ParseAddrPort(ip)
	if err != nil {
		a, aerr := netip.ParseAddr(ip)
		if aerr != nil {
			n.log.Debugf("invalid peer address %q", ip)
			return false
		}
		p = netip.AddrPortFrom(a, DefaultPort)
	}
	if !p.Addr().Unmap().Is4() {
		n.log.Debugf("peer %q is not an IPv4 address", ip)
		return false
	}
	return n.peers.Add(p)
}

// ListPeers returns the known peers.
func (n *Node) ListPeers() []netip.AddrPort {
	return n.peers.Snapshot()
}

// ReadUniverse returns a copy of the last data received for universe u.
// It panics if u is outside [0,16).
func (n *Node) ReadUniverse(u int) Universe {
	return n.store.Read(u)
}

func (n *Node) Address() Address {
	return n.packets().addr
}

// SelfIP returns the announced IP and whether it was confirmed by the probe.
func (n *Node) SelfIP() (netip.Addr, bool) {
	if ip, ok := n.peers.Self(); ok {
		return ip, true
	}
	return n.packets().self, false
}

func (n *Node) State() State {
	return State(n.state.Load())
}

func (n *Node) Channels() int {
	return n.opts.Channels
}

func (n *Node) String() string {
	return fmt.Sprintf("artnet.Node@%s", n.Address())
}

func (n *Node) setState(s State) {
	n.state.Store(int32(s))
	metricState.Set(float64(s))
}

func (n *Node) packets() *packets {
	return n.pkts.Load()
}

func (n *Node) broadcastTo() netip.AddrPort {
	return netip.AddrPortFrom(n.opts.Broadcast, uint16(n.opts.Port))
}
