package artnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/Haba1234/go-artnet/packet"
	"github.com/Haba1234/go-artnet/packet/code"
)

const (
	// Opcodes private to this node. They share the Art-Net framing so that they
	// travel through the same socket as regular traffic.
	opProbe    code.OpCode = 0x6464
	opShutdown code.OpCode = 0x9999

	protocolVersion = 14
	firmwareVersion = 200
	oemCode         = 0x0360 // E:Cue 1x DMX Out
	statusFlags     = 0xd0
	estaCode        = "LL"
	physicalPort    = 1
	talkToMe        = 0x00
	pollPriority    = 0xe0

	headerSize    = 10
	dmxHeaderSize = 18
	tagOffset     = 12
	replySize     = 109
	shortNameSize = 18
	longNameSize  = 64

	shortName = "artnetnode"
	longName  = "artnetnode Art-Net node"

	probeTagFormat    = "artnetnode_ip_check_%d"
	shutdownTagFormat = "artnetnode_kill_signal_%d"
)

var preamble = []byte("Art-Net\x00")

// PollReply holds the fields of an ArtPollReply that this node cares about.
type PollReply struct {
	IP        netip.Addr
	Port      uint16
	Address   Address
	ShortName string
	LongName  string
}

// packets holds the prebuilt datagrams for one address/self-IP combination.
// A packets value is never mutated after buildPackets returns.
type packets struct {
	addr     Address
	self     netip.Addr
	poll     []byte
	probe    []byte
	shutdown []byte
	reply    []byte
	headers  [UniverseCount][]byte
}

func buildPackets(addr Address, self netip.Addr, token int) *packets {
	p := &packets{
		addr:     addr,
		self:     self,
		poll:     encodePoll(),
		probe:    encodeTagged(opProbe, fmt.Sprintf(probeTagFormat, token)),
		shutdown: encodeTagged(opShutdown, fmt.Sprintf(shutdownTagFormat, token)),
		reply:    encodePollReply(self, addr),
	}
	for u := range p.headers {
		p.headers[u] = encodeDMXHeader(addr, u)
	}
	return p
}

// dmx returns a full ArtDMX datagram for universe u carrying data.
func (p *packets) dmx(u int, data []byte) []byte {
	b := make([]byte, dmxHeaderSize+UniverseSize)
	copy(b, p.headers[u])
	copy(b[dmxHeaderSize:], data)
	return b
}

func newHeader(op code.OpCode, size int) []byte {
	b := make([]byte, size)
	copy(b, preamble)
	binary.LittleEndian.PutUint16(b[8:10], uint16(op))
	return b
}

// encodeDMXHeader returns the first 18 bytes of an ArtDMX packet for universe.
func encodeDMXHeader(addr Address, universe int) []byte {
	port := addr.Port(universe)
	p := packet.NewArtDMXPacket()
	p.Physical = physicalPort
	p.SubUni = port.SubUni
	p.Net = port.Net
	b, err := p.MarshalBinary()
	if err != nil {
		// ArtDMX has a fixed layout, so this is a bug in the packet package.
		panic(fmt.Sprintf("artnet: marshal ArtDMX header: %v", err))
	}
	return b[:dmxHeaderSize:dmxHeaderSize]
}

func encodePoll() []byte {
	b := newHeader(code.OpPoll, 15)
	binary.BigEndian.PutUint16(b[10:12], protocolVersion)
	binary.BigEndian.PutUint16(b[12:14], talkToMe)
	b[14] = pollPriority
	return b
}

func encodeTagged(op code.OpCode, tag string) []byte {
	b := newHeader(op, tagOffset+len(tag))
	binary.BigEndian.PutUint16(b[10:12], protocolVersion)
	copy(b[tagOffset:], tag)
	return b
}

// encodePollReply builds the ArtPollReply. It carries no protocol version.
func encodePollReply(ip netip.Addr, addr Address) []byte {
	b := newHeader(code.OpPollReply, replySize)
	if ip = ip.Unmap(); ip.Is4() {
		ip4 := ip.As4()
		copy(b[10:14], ip4[:])
	}
	binary.LittleEndian.PutUint16(b[14:16], DefaultPort)
	binary.BigEndian.PutUint16(b[16:18], firmwareVersion)
	b[18] = addr.Net
	b[19] = addr.Subnet
	binary.BigEndian.PutUint16(b[20:22], oemCode)
	b[22] = 0 // UBEA
	binary.BigEndian.PutUint16(b[23:25], statusFlags)
	copy(b[25:27], estaCode)
	putName(b[27:27+shortNameSize], shortName)
	putName(b[27+shortNameSize:replySize], longName)
	return b
}

// putName copies s into a zero padded field, keeping the last byte as terminator.
func putName(field []byte, s string) {
	n := copy(field[:len(field)-1], s)
	for i := n; i < len(field); i++ {
		field[i] = 0
	}
}

func readName(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}

// opcodeOf validates the preamble and returns the packet opcode.
func opcodeOf(b []byte) (code.OpCode, error) {
	if len(b) < headerSize {
		return 0, ErrShortPacket
	}
	if !bytes.Equal(b[:8], preamble) {
		return 0, ErrBadPreamble
	}
	return code.OpCode(binary.LittleEndian.Uint16(b[8:10])), nil
}

// decodeDMX extracts the universe and channel data of an ArtDMX packet
// addressed to want. Full size packets go through packet.ArtDMXPacket, shorter
// ones are read field by field and carry as many channels as they hold.
func decodeDMX(b []byte, want Address) (int, []byte, error) {
	if len(b) < dmxHeaderSize {
		return 0, nil, ErrShortPacket
	}
	subUni, net, length, data := b[14], b[15], int(binary.BigEndian.Uint16(b[16:18])), b[dmxHeaderSize:]
	if len(b) == dmxHeaderSize+UniverseSize {
		p := packet.NewArtDMXPacket()
		if err := p.UnmarshalBinary(b); err == nil {
			subUni, net, length, data = p.SubUni, p.Net, int(p.Length), p.Data[:]
		}
	}
	if net != want.Net || subUni>>4 != want.Subnet {
		return 0, nil, ErrForeign
	}
	length = min(length, UniverseSize, len(data))
	return int(subUni & 0x0f), data[:length], nil
}

// DecodePollReply parses the fields of an ArtPollReply.
func DecodePollReply(b []byte) (PollReply, error) {
	op, err := opcodeOf(b)
	if err != nil {
		return PollReply{}, err
	}
	if op != code.OpPollReply {
		return PollReply{}, fmt.Errorf("unexpected opcode %#04x", uint16(op))
	}
	if len(b) < 27 {
		return PollReply{}, ErrShortPacket
	}
	r := PollReply{
		IP:      netip.AddrFrom4([4]byte{b[10], b[11], b[12], b[13]}),
		Port:    binary.LittleEndian.Uint16(b[14:16]),
		Address: Address{Net: b[18], Subnet: b[19]},
	}
	if len(b) >= replySize {
		r.ShortName = readName(b[27 : 27+shortNameSize])
		r.LongName = readName(b[27+shortNameSize : replySize])
	}
	return r, nil
}

// hasTag reports whether the tagged packet b carries exactly tag.
func hasTag(b []byte, tag []byte) bool {
	return len(b) >= tagOffset && bytes.Equal(b[tagOffset:], tag)
}
