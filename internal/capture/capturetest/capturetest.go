// Package capturetest builds synthetic frames and capture files for tests.
package capturetest

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

// Packet describes an Ethernet/IPv4 frame to synthesize.
type Packet struct {
	SrcIP          string
	DstIP          string
	Protocol       layers.IPProtocol
	ID             uint16
	MoreFragments  bool
	DontFragment   bool
	FragmentOffset uint16 // Bytes, must be a multiple of 8
	Payload        []byte
}

// IPv4Frame serializes p into an Ethernet frame carrying an IPv4 header.
func IPv4Frame(t testing.TB, p Packet) []byte {
	t.Helper()

	var flags layers.IPv4Flag
	if p.MoreFragments {
		flags |= layers.IPv4MoreFragments
	}
	if p.DontFragment {
		flags |= layers.IPv4DontFragment
	}

	src, dst := p.SrcIP, p.DstIP
	if src == "" {
		src = "10.0.0.1"
	}
	if dst == "" {
		dst = "10.0.0.2"
	}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:    4,
		IHL:        5,
		TTL:        64,
		Id:         p.ID,
		Flags:      flags,
		FragOffset: p.FragmentOffset / 8,
		Protocol:   p.Protocol,
		SrcIP:      net.ParseIP(src).To4(),
		DstIP:      net.ParseIP(dst).To4(),
	}

	payload := p.Payload
	if payload == nil {
		payload = []byte("capsentry")
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	err := gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload(payload))
	require.NoError(t, err)

	return buf.Bytes()
}

// ARPFrame returns a frame whose ethertype is ARP.
func ARPFrame(t testing.TB) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       layers.EthernetBroadcast,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(eth.SrcMAC),
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 2},
	}

	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp)
	require.NoError(t, err)

	return buf.Bytes()
}

// Epoch is the timestamp of the first frame in every written capture. Later
// frames follow one millisecond apart.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Pcap writes frames into an in-memory classic pcap file.
func Pcap(t testing.TB, frames ...[]byte) []byte {
	t.Helper()
	return PcapLinkType(t, layers.LinkTypeEthernet, frames...)
}

// PcapLinkType is Pcap with an explicit link type in the file header.
func PcapLinkType(t testing.TB, lt layers.LinkType, frames ...[]byte) []byte {
	t.Helper()

	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	require.NoError(t, w.WriteFileHeader(65536, lt))

	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     Epoch.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		require.NoError(t, w.WritePacket(ci, frame))
	}

	return out.Bytes()
}

// PcapNg writes frames into an in-memory pcapng file.
func PcapNg(t testing.TB, frames ...[]byte) []byte {
	t.Helper()

	var out bytes.Buffer
	w, err := pcapgo.NewNgWriter(&out, layers.LinkTypeEthernet)
	require.NoError(t, err)

	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:      Epoch.Add(time.Duration(i) * time.Millisecond),
			CaptureLength:  len(frame),
			Length:         len(frame),
			InterfaceIndex: 0,
		}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	require.NoError(t, w.Flush())

	return out.Bytes()
}

// WriteFile stores data in a temporary directory and returns its path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// ScenarioFrames returns the three-frame capture used across packages: a
// 20-byte runt, a plain TCP frame and a GRE fragment at offset 4000.
func ScenarioFrames(t testing.TB) [][]byte {
	t.Helper()

	return [][]byte{
		make([]byte, 20),
		IPv4Frame(t, Packet{
			SrcIP:    "192.168.1.10",
			DstIP:    "192.168.1.20",
			Protocol: layers.IPProtocolTCP,
			ID:       100,
		}),
		IPv4Frame(t, Packet{
			SrcIP:          "203.0.113.7",
			DstIP:          "192.168.1.20",
			Protocol:       layers.IPProtocolGRE,
			ID:             200,
			FragmentOffset: 4000,
		}),
	}
}
