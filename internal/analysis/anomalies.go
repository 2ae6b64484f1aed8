package analysis

import (
	"fmt"

	"github.com/google/gopacket/layers"

	"capsentry/internal/models"
)

// LargeFragmentOffsetThreshold is the fragment offset, in bytes, above which
// a record is flagged.
const LargeFragmentOffsetThreshold = 3000

// standardProtocols are the IP protocols that never raise an
// Unknown Protocol event.
var standardProtocols = map[layers.IPProtocol]bool{
	layers.IPProtocolICMPv4: true,
	layers.IPProtocolTCP:    true,
	layers.IPProtocolUDP:    true,
}

type rule func(rec models.IPv4HeaderRecord) (models.SuspiciousEvent, bool)

// Classifier applies the fixed rule set to decoded headers. It holds no
// per-run state and is safe for concurrent use.
type Classifier struct {
	rules []rule
}

// NewClassifier returns a classifier with the rules in evaluation order.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []rule{
			detectUnknownProtocol,
			detectLargeFragmentOffset,
		},
	}
}

// Classify returns every event rec triggers, in rule order.
func (c *Classifier) Classify(rec models.IPv4HeaderRecord) []models.SuspiciousEvent {
	var events []models.SuspiciousEvent
	for _, r := range c.rules {
		if ev, hit := r(rec); hit {
			events = append(events, ev)
		}
	}
	return events
}

// detectUnknownProtocol flags anything other than ICMP, TCP and UDP.
func detectUnknownProtocol(rec models.IPv4HeaderRecord) (models.SuspiciousEvent, bool) {
	if standardProtocols[layers.IPProtocol(rec.Protocol)] {
		return models.SuspiciousEvent{}, false
	}
	return models.SuspiciousEvent{
		Type:    models.EventUnknownProtocol,
		Details: fmt.Sprintf("Non-standard protocol %d from %s", rec.Protocol, rec.SourceIP()),
	}, true
}

// detectLargeFragmentOffset flags fragments placed far into their datagram.
func detectLargeFragmentOffset(rec models.IPv4HeaderRecord) (models.SuspiciousEvent, bool) {
	if rec.FragmentOffset <= LargeFragmentOffsetThreshold {
		return models.SuspiciousEvent{}, false
	}
	return models.SuspiciousEvent{
		Type:    models.EventLargeFragmentOffset,
		Details: fmt.Sprintf("%s offset=%d", rec.SourceIP(), rec.FragmentOffset),
	}, true
}
