package models

import (
	"fmt"
	"time"
)

// RawFrame is one link-layer frame as read from a capture container.
type RawFrame struct {
	Seq       int // 1-based position in the capture
	Data      []byte
	Timestamp time.Time
	WireLen   int // Original length on the wire, may exceed len(Data)
}

// EthernetHeader only models the ethertype; it gates IPv4 decoding.
type EthernetHeader struct {
	EtherType uint16
}

// IPv4HeaderRecord holds the IPv4 fields extracted from a single frame.
type IPv4HeaderRecord struct {
	Source         [4]byte
	Destination    [4]byte
	Protocol       uint8
	Identification uint16
	MoreFragments  bool
	FragmentOffset uint32 // Bytes, always a multiple of 8
}

// IsFragment reports whether the record belongs to a fragmented datagram.
func (r IPv4HeaderRecord) IsFragment() bool {
	return r.MoreFragments || r.FragmentOffset > 0
}

// SourceIP returns the source address in dotted-decimal form.
func (r IPv4HeaderRecord) SourceIP() string {
	return FormatIPv4(r.Source)
}

// DestinationIP returns the destination address in dotted-decimal form.
func (r IPv4HeaderRecord) DestinationIP() string {
	return FormatIPv4(r.Destination)
}

// FormatIPv4 renders four octets as dotted-decimal.
func FormatIPv4(a [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// NetworkLog is the log entry emitted for every decoded IPv4 frame.
type NetworkLog struct {
	SrcIP          string `json:"srcIP" yaml:"srcIP"`
	DstIP          string `json:"dstIP" yaml:"dstIP"`
	Protocol       uint8  `json:"protocol" yaml:"protocol"`
	MoreFragments  bool   `json:"moreFragments" yaml:"moreFragments"`
	FragmentOffset uint32 `json:"fragmentOffset" yaml:"fragmentOffset"`
}

// NewNetworkLog builds the log entry for a decoded record.
func NewNetworkLog(r IPv4HeaderRecord) NetworkLog {
	return NetworkLog{
		SrcIP:          r.SourceIP(),
		DstIP:          r.DestinationIP(),
		Protocol:       r.Protocol,
		MoreFragments:  r.MoreFragments,
		FragmentOffset: r.FragmentOffset,
	}
}
