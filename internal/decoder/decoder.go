// Package decoder extracts Ethernet and IPv4 header fields from raw frames.
//
// Decoding never fails with an error. Frames that cannot or should not be
// decoded come back with a SkipReason so callers can count them without
// branching on error values for conditions that occur on every capture.
package decoder

import (
	"encoding/binary"

	"github.com/google/gopacket/layers"

	"capsentry/internal/models"
)

const (
	EthernetHeaderLen = 14
	IPv4MinHeaderLen  = 20
	// MinFrameLen is the shortest frame that can hold Ethernet plus a
	// minimal IPv4 header. It is a fixed floor.
	MinFrameLen = EthernetHeaderLen + IPv4MinHeaderLen

	etherTypeOffset = 12

	// Offsets relative to the start of the IPv4 header.
	ipVerIHL    = 0
	ipID        = 4
	ipFlagsFrag = 6
	ipProtocol  = 9
	ipSrc       = 12
	ipDst       = 16

	moreFragmentsBit = 0x2000
	fragOffsetMask   = 0x1fff
)

// SkipReason says why a frame produced no record.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipTooShort
	SkipNotIPv4
	SkipTruncatedHeader
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "decoded"
	case SkipTooShort:
		return "too_short"
	case SkipNotIPv4:
		return "not_ipv4"
	case SkipTruncatedHeader:
		return "truncated_header"
	default:
		return "unknown"
	}
}

// Malformed reports whether the frame claimed to be IPv4 but its header
// could not be trusted.
func (r SkipReason) Malformed() bool {
	return r == SkipTruncatedHeader
}

// DecodeEthernet reads the ethertype of a frame.
func DecodeEthernet(data []byte) (models.EthernetHeader, bool) {
	if len(data) < EthernetHeaderLen {
		return models.EthernetHeader{}, false
	}
	return models.EthernetHeader{
		EtherType: binary.BigEndian.Uint16(data[etherTypeOffset:]),
	}, true
}

// Decode extracts the IPv4 header carried by frame.
//
// The fixed fields read below all sit inside the first 20 bytes, which
// MinFrameLen guarantees, so an IHL below 5 still decodes. A declared header
// length that runs past the end of the frame does not.
func Decode(frame models.RawFrame) (models.IPv4HeaderRecord, SkipReason) {
	data := frame.Data
	if len(data) < MinFrameLen {
		return models.IPv4HeaderRecord{}, SkipTooShort
	}

	eth, _ := DecodeEthernet(data)
	if layers.EthernetType(eth.EtherType) != layers.EthernetTypeIPv4 {
		return models.IPv4HeaderRecord{}, SkipNotIPv4
	}

	ip := data[EthernetHeaderLen:]
	if headerLen := int(ip[ipVerIHL]&0x0f) * 4; headerLen > len(ip) {
		return models.IPv4HeaderRecord{}, SkipTruncatedHeader
	}

	flagsOffset := binary.BigEndian.Uint16(ip[ipFlagsFrag:])

	rec := models.IPv4HeaderRecord{
		Protocol:       ip[ipProtocol],
		Identification: binary.BigEndian.Uint16(ip[ipID:]),
		MoreFragments:  flagsOffset&moreFragmentsBit != 0,
		FragmentOffset: uint32(flagsOffset&fragOffsetMask) * 8,
	}
	copy(rec.Source[:], ip[ipSrc:ipSrc+4])
	copy(rec.Destination[:], ip[ipDst:ipDst+4])

	return rec, SkipNone
}
