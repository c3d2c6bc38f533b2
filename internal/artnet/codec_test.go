package artnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"
	"testing"

	"github.com/Haba1234/go-artnet/packet"
	"github.com/Haba1234/go-artnet/packet/code"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDMXHeader(t *testing.T) {
	h := encodeDMXHeader(Address{Subnet: 3, Net: 10}, 7)
	require.Len(t, h, dmxHeaderSize)

	assert.Equal(t, "Art-Net\x00", string(h[:8]))
	assert.Equal(t, []byte{0x00, 0x50}, h[8:10], "opcode is sent low byte first")
	assert.Equal(t, []byte{0x00, 14}, h[10:12], "version is sent high byte first")
	assert.Equal(t, byte(0), h[12])
	assert.Equal(t, byte(physicalPort), h[13])
	assert.Equal(t, uint16(10<<8|3<<4|7), binary.LittleEndian.Uint16(h[14:16]))
	assert.Equal(t, []byte{0x02, 0x00}, h[16:18], "length is sent high byte first")
}

func TestDMX_MatchesArtDMXPacket(t *testing.T) {
	data := make([]byte, UniverseSize)
	for i := range data {
		data[i] = byte(i)
	}

	lib := packet.NewArtDMXPacket()
	lib.Physical = physicalPort
	lib.SubUni = 3<<4 | 2
	lib.Net = 10
	copy(lib.Data[:], data)
	want, err := lib.MarshalBinary()
	require.NoError(t, err)

	got := buildPackets(Address{Subnet: 3, Net: 10}, netip.IPv4Unspecified(), 1).dmx(2, data)
	assert.Equal(t, want, got)

	u, decoded, err := decodeDMX(want, Address{Subnet: 3, Net: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, u)
	assert.Equal(t, data, decoded)
}

func TestDecodeDMX_LengthFieldOnFullPacket(t *testing.T) {
	b := buildPackets(Address{}, netip.IPv4Unspecified(), 1).dmx(0, bytes.Repeat([]byte{8}, UniverseSize))
	binary.BigEndian.PutUint16(b[16:18], 6)

	_, got, err := decodeDMX(b, Address{})
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{8}, 6), got)
}

func TestAddress_Packed(t *testing.T) {
	a := Address{Subnet: 15, Net: 127}
	assert.Equal(t, uint16(127<<8|15<<4|15), a.Packed(15))
	assert.Equal(t, uint16(127<<8|15<<4), a.Packed(0))
}

func TestNewAddress(t *testing.T) {
	tests := []struct {
		subnet, net int
		valid       bool
	}{
		{0, 0, true},
		{15, 127, true},
		{16, 0, false},
		{0, 128, false},
		{-1, 0, false},
		{0, -1, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.subnet, tt.net), func(t *testing.T) {
			a, err := NewAddress(tt.subnet, tt.net)
			if !tt.valid {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Address{Subnet: uint8(tt.subnet), Net: uint8(tt.net)}, a)
			assert.True(t, a.Valid())
		})
	}
}

func TestEncodePoll(t *testing.T) {
	b := encodePoll()
	require.Len(t, b, 15)
	op, err := opcodeOf(b)
	require.NoError(t, err)
	assert.Equal(t, code.OpPoll, op)
	assert.Equal(t, []byte{0x00, 14, 0x00, 0x00, 0xe0}, b[10:15])
}

func TestPollReply_RoundTrip(t *testing.T) {
	ip := netip.MustParseAddr("192.168.6.21")
	addr := Address{Subnet: 3, Net: 10}

	b := encodePollReply(ip, addr)
	require.Len(t, b, replySize)
	assert.Equal(t, []byte{0x00, 0x21}, b[8:10])
	assert.Equal(t, []byte{0x36, 0x19}, b[14:16])
	assert.Equal(t, []byte{0x03, 0x60}, b[20:22])
	assert.Equal(t, []byte{0x00, 0xd0}, b[23:25])
	assert.Equal(t, "LL", string(b[25:27]))
	assert.Equal(t, byte(0), b[27+shortNameSize-1], "short name is null terminated")
	assert.Equal(t, byte(0), b[replySize-1], "long name is null terminated")

	r, err := DecodePollReply(b)
	require.NoError(t, err)
	assert.Equal(t, ip, r.IP)
	assert.Equal(t, uint16(DefaultPort), r.Port)
	assert.Equal(t, addr, r.Address)
	assert.Equal(t, shortName, r.ShortName)
	assert.Equal(t, longName, r.LongName)
}

func TestDecodePollReply_WrongOpcode(t *testing.T) {
	_, err := DecodePollReply(encodePoll())
	assert.Error(t, err)
}

func TestEncodeTagged(t *testing.T) {
	p := buildPackets(Address{}, netip.MustParseAddr("10.0.0.1"), 42)

	op, err := opcodeOf(p.probe)
	require.NoError(t, err)
	assert.Equal(t, opProbe, op)
	assert.Equal(t, "artnetnode_ip_check_42", string(p.probe[tagOffset:]))

	op, err = opcodeOf(p.shutdown)
	require.NoError(t, err)
	assert.Equal(t, opShutdown, op)
	assert.Equal(t, "artnetnode_kill_signal_42", string(p.shutdown[tagOffset:]))

	other := buildPackets(Address{}, netip.MustParseAddr("10.0.0.1"), 43)
	assert.True(t, hasTag(p.probe, p.probe[tagOffset:]))
	assert.False(t, hasTag(other.probe, p.probe[tagOffset:]))
	assert.False(t, hasTag(p.probe[:5], p.probe[tagOffset:]))
}

func TestOpcodeOf(t *testing.T) {
	_, err := opcodeOf([]byte("Art-Net"))
	assert.ErrorIs(t, err, ErrShortPacket)

	_, err = opcodeOf([]byte("Art-Nex\x00\x00\x50"))
	assert.ErrorIs(t, err, ErrBadPreamble)

	op, err := opcodeOf([]byte("Art-Net\x00\x64\x64"))
	require.NoError(t, err)
	assert.Equal(t, opProbe, op)
}

func TestDecodeDMX(t *testing.T) {
	addr := Address{Subnet: 2, Net: 5}
	data := make([]byte, UniverseSize)
	data[0], data[511] = 1, 255
	b := buildPackets(addr, netip.IPv4Unspecified(), 1).dmx(9, data)

	u, got, err := decodeDMX(b, addr)
	require.NoError(t, err)
	assert.Equal(t, 9, u)
	assert.Equal(t, data, got)

	_, _, err = decodeDMX(b, Address{Subnet: 2, Net: 6})
	assert.ErrorIs(t, err, ErrForeign)
	_, _, err = decodeDMX(b, Address{Subnet: 3, Net: 5})
	assert.ErrorIs(t, err, ErrForeign)
	_, _, err = decodeDMX(b[:12], addr)
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestDecodeDMX_ShortData(t *testing.T) {
	addr := Address{}
	b := encodeDMXHeader(addr, 1)
	binary.BigEndian.PutUint16(b[16:18], 4)
	b = append(b, 10, 20, 30, 40)

	u, got, err := decodeDMX(b, addr)
	require.NoError(t, err)
	assert.Equal(t, 1, u)
	assert.Equal(t, []byte{10, 20, 30, 40}, got)

	// length field larger than the datagram
	binary.BigEndian.PutUint16(b[16:18], 512)
	_, got, err = decodeDMX(b, addr)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestBuildPackets_Headers(t *testing.T) {
	p := buildPackets(Address{Subnet: 1, Net: 2}, netip.MustParseAddr("10.1.1.1"), 7)
	for u, h := range p.headers {
		assert.Equal(t, uint16(2<<8|1<<4|u), binary.LittleEndian.Uint16(h[14:16]), "universe %d", u)
	}
	r, err := DecodePollReply(p.reply)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.1.1.1"), r.IP)
}
