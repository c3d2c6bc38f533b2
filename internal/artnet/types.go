package artnet

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	goartnet "github.com/Haba1234/go-artnet"
)

const (
	// DefaultPort is the UDP port Art-Net nodes listen on.
	DefaultPort = 6454
	// UniverseSize is the number of DMX channels in one universe.
	UniverseSize = 512
	// UniverseCount is the number of universes in one subnet.
	UniverseCount = 16

	maxSubnet = 15
	maxNet    = 127
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidLength  = errors.New("invalid channel count")
	ErrShortPacket    = errors.New("packet too short")
	ErrBadPreamble    = errors.New("not an art-net packet")
	ErrForeign        = errors.New("packet belongs to another node")
)

// Address is the (subnet, net) pair a node sends and receives on.
type Address struct {
	Subnet uint8 // Subnet: 0-15.
	Net    uint8 // Net: 0-127.
}

// NewAddress validates subnet and net.
func NewAddress(subnet, net int) (Address, error) {
	if subnet < 0 || subnet > maxSubnet || net < 0 || net > maxNet {
		return Address{}, fmt.Errorf("%w: subnet=%d net=%d", ErrInvalidAddress, subnet, net)
	}
	return Address{Subnet: uint8(subnet), Net: uint8(net)}, nil
}

// Valid reports whether a is inside the Art-Net ranges.
func (a Address) Valid() bool {
	return a.Subnet <= maxSubnet && a.Net <= maxNet
}

// Port returns the wire address of one universe inside a.
func (a Address) Port(universe int) goartnet.Address {
	return goartnet.Address{
		Net:    a.Net,
		SubUni: a.Subnet<<4 | uint8(universe)&0x0f,
	}
}

// Packed returns net<<8 | subnet<<4 | universe.
func (a Address) Packed(universe int) uint16 {
	p := a.Port(universe)
	return uint16(p.Net)<<8 | uint16(p.SubUni)
}

func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.Net, a.Subnet)
}

// Universe wraps the 512 byte array for convenience.
type Universe [UniverseSize]byte

// State of the node lifecycle.
type State int32

const (
	Hibernating State = iota
	Disconnected
	Active
)

func (s State) String() string {
	switch s {
	case Hibernating:
		return "hibernating"
	case Disconnected:
		return "disconnected"
	case Active:
		return "active"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options configures a Node.
type Options struct {
	Address         Address
	Hibernate       bool
	Unicast         bool
	IgnoreLocalData bool
	Channels        int // Channels: positive multiple of 512, at most 16 universes.
	Port            int
	Broadcast       netip.Addr // zero value: derived from the local interface
	AddressRange    string     // CIDR used to pick the local interface
	FallbackIP      netip.Addr // used in ArtPollReply until the own IP is resolved
	RetryInterval   time.Duration
	ProbeTimeout    time.Duration
}

func (o *Options) setDefaults() {
	if o.Channels == 0 {
		o.Channels = UniverseSize
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 2 * time.Second
	}
}

func (o *Options) validate() error {
	if o.Channels <= 0 || o.Channels%UniverseSize != 0 || o.Channels > UniverseSize*UniverseCount {
		return fmt.Errorf("%w: %d is not a multiple of %d up to %d universes",
			ErrInvalidLength, o.Channels, UniverseSize, UniverseCount)
	}
	if o.Port <= 0 || o.Port > 0xffff {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	return nil
}
