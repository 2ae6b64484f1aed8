package analysis

import (
	"strconv"
	"strings"

	"github.com/google/gopacket/layers"
)

var commonProtocols = map[uint8]string{
	1:   "ICMP",
	2:   "IGMP",
	6:   "TCP",
	17:  "UDP",
	41:  "IPv6",
	47:  "GRE",
	50:  "ESP",
	51:  "AH",
	89:  "OSPF",
	132: "SCTP",
}

// GetProtocolName returns a short name for an IP protocol number, or the
// number itself when neither the local table nor gopacket knows it.
func GetProtocolName(proto uint8) string {
	if name, ok := commonProtocols[proto]; ok {
		return name
	}
	name := layers.IPProtocol(proto).String()
	if name == "" || strings.HasPrefix(name, "Unknown") {
		return strconv.Itoa(int(proto))
	}
	return name
}
