package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capsentry/internal/capture"
	"capsentry/internal/capture/capturetest"
	"capsentry/internal/models"
)

// sliceSource replays frames and then returns err (io.EOF when nil).
type sliceSource struct {
	frames [][]byte
	err    error
	pos    int
	closed bool
}

func (s *sliceSource) Next() (models.RawFrame, error) {
	if s.pos >= len(s.frames) {
		if s.err != nil {
			return models.RawFrame{}, s.err
		}
		return models.RawFrame{}, io.EOF
	}
	s.pos++
	return models.RawFrame{Seq: s.pos, Data: s.frames[s.pos-1]}, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type recordingObserver struct {
	calls []FragmentGroup
}

func (r *recordingObserver) Observe(id uint16, offset uint32, mf bool) {
	r.calls = append(r.calls, FragmentGroup{ID: id, Offsets: []uint32{offset}})
}

func TestAnalyze_Scenario(t *testing.T) {
	data := capturetest.Pcap(t, capturetest.ScenarioFrames(t)...)

	result, err := NewAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, models.StatusComplete, result.Status)
	assert.True(t, result.Complete())
	assert.Empty(t, result.StopReason)

	assert.Equal(t, []models.NetworkLog{
		{SrcIP: "192.168.1.10", DstIP: "192.168.1.20", Protocol: 6},
		{SrcIP: "203.0.113.7", DstIP: "192.168.1.20", Protocol: 47, FragmentOffset: 4000},
	}, result.NetworkLogs)

	assert.Equal(t, []models.SuspiciousEvent{
		{Type: models.EventUnknownProtocol, Details: "Non-standard protocol 47 from 203.0.113.7"},
		{Type: models.EventLargeFragmentOffset, Details: "203.0.113.7 offset=4000"},
	}, result.SuspiciousActivity)

	assert.Equal(t, models.FrameCounts{Total: 3, Decoded: 2, TooShort: 1}, result.Frames)
}

func TestAnalyze_Idempotent(t *testing.T) {
	frames := append(capturetest.ScenarioFrames(t),
		capturetest.ARPFrame(t),
		capturetest.IPv4Frame(t, capturetest.Packet{Protocol: layers.IPProtocolUDP, ID: 9, MoreFragments: true}),
		capturetest.IPv4Frame(t, capturetest.Packet{Protocol: layers.IPProtocolUDP, ID: 9, FragmentOffset: 3200}),
	)
	path := capturetest.WriteFile(t, "idem.pcap", capturetest.Pcap(t, frames...))

	a := NewAnalyzer()
	first, err := a.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	second, err := a.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestAnalyze_PcapNg(t *testing.T) {
	data := capturetest.PcapNg(t, capturetest.ScenarioFrames(t)...)

	result, err := NewAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Len(t, result.NetworkLogs, 2)
	assert.Len(t, result.SuspiciousActivity, 2)
}

func TestAnalyze_NonIPv4ContributesNothing(t *testing.T) {
	src := &sliceSource{frames: [][]byte{
		capturetest.ARPFrame(t),
		capturetest.ARPFrame(t),
	}}

	result, err := NewAnalyzer().Analyze(context.Background(), src)
	require.NoError(t, err)

	assert.Empty(t, result.NetworkLogs)
	assert.Empty(t, result.SuspiciousActivity)
	assert.NotNil(t, result.NetworkLogs)
	assert.NotNil(t, result.SuspiciousActivity)
	assert.Equal(t, models.FrameCounts{Total: 2, NotIPv4: 2}, result.Frames)
	assert.False(t, src.closed, "Analyze must leave closing to the caller")
}

func TestAnalyze_MalformedHeaderSkipped(t *testing.T) {
	bad := capturetest.IPv4Frame(t, capturetest.Packet{Protocol: layers.IPProtocolTCP})
	bad[14] = 0x4f // IHL 15 needs 60 bytes the frame does not have

	good := capturetest.IPv4Frame(t, capturetest.Packet{Protocol: layers.IPProtocolTCP})

	result, err := NewAnalyzer().Analyze(context.Background(), &sliceSource{frames: [][]byte{bad, good}})
	require.NoError(t, err)

	assert.Len(t, result.NetworkLogs, 1)
	assert.Equal(t, 1, result.Frames.Malformed)
	assert.Equal(t, models.StatusComplete, result.Status)
}

func TestAnalyze_MidStreamFailure(t *testing.T) {
	frames := capturetest.ScenarioFrames(t)
	src := &sliceSource{
		frames: frames,
		err:    fmt.Errorf("%w after frame 3: boom", capture.ErrCorrupt),
	}

	result, err := NewAnalyzer().Analyze(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, result.Status)
	assert.False(t, result.Complete())
	assert.Contains(t, result.StopReason, "boom")
	assert.Len(t, result.NetworkLogs, 2)
	assert.Len(t, result.SuspiciousActivity, 2)
	assert.Equal(t, 3, result.Frames.Total)
}

func TestAnalyze_TruncatedCapture(t *testing.T) {
	frames := [][]byte{
		capturetest.IPv4Frame(t, capturetest.Packet{SrcIP: "10.0.0.1", Protocol: layers.IPProtocolTCP}),
		capturetest.IPv4Frame(t, capturetest.Packet{SrcIP: "10.0.0.2", Protocol: 99, FragmentOffset: 3200}),
		capturetest.IPv4Frame(t, capturetest.Packet{SrcIP: "10.0.0.3", Protocol: 132}),
	}
	data := capturetest.Pcap(t, frames...)

	result, err := NewAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader(data[:len(data)-3]))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, result.Status)
	assert.Contains(t, result.StopReason, capture.ErrTruncated.Error())

	// Only the two complete frames contribute.
	require.Len(t, result.NetworkLogs, 2)
	assert.Equal(t, "10.0.0.1", result.NetworkLogs[0].SrcIP)
	assert.Equal(t, "10.0.0.2", result.NetworkLogs[1].SrcIP)
	assert.Len(t, result.SuspiciousActivity, 2)
	assert.Equal(t, 2, result.Frames.Total)
}

func TestAnalyze_TruncatedPcapNg(t *testing.T) {
	frames := [][]byte{
		capturetest.IPv4Frame(t, capturetest.Packet{SrcIP: "10.0.0.1", Protocol: layers.IPProtocolTCP}),
		capturetest.IPv4Frame(t, capturetest.Packet{SrcIP: "10.0.0.2", Protocol: layers.IPProtocolTCP}),
		capturetest.IPv4Frame(t, capturetest.Packet{SrcIP: "10.0.0.3", Protocol: layers.IPProtocolTCP}),
	}
	data := capturetest.PcapNg(t, frames...)
	blockLen := len(data) - len(capturetest.PcapNg(t, frames[:2]...))

	for cut := 1; cut < blockLen; cut++ {
		result, err := NewAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader(data[:len(data)-cut]))
		require.NoError(t, err, "cut %d", cut)

		assert.Equal(t, models.StatusPartial, result.Status, "cut %d", cut)
		assert.Contains(t, result.StopReason, capture.ErrTruncated.Error(), "cut %d", cut)
		assert.Len(t, result.NetworkLogs, 2, "cut %d", cut)
	}
}

func TestAnalyze_CaptureTotals(t *testing.T) {
	frames := capturetest.ScenarioFrames(t)
	var size int64
	for _, f := range frames {
		size += int64(len(f))
	}

	result, err := NewAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader(capturetest.PcapNg(t, frames...)))
	require.NoError(t, err)

	assert.Equal(t, size, result.Frames.CapturedBytes)
	assert.Equal(t, size, result.Frames.WireBytes)
	assert.Zero(t, result.Frames.Clipped)
	require.NotNil(t, result.Window)
	assert.True(t, capturetest.Epoch.Equal(result.Window.First))
	assert.Equal(t, 2*time.Millisecond, result.Window.Duration())
}

func TestAnalyzer_WithLoggerReachesSource(t *testing.T) {
	var buf bytes.Buffer
	a := NewAnalyzer(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	data := capturetest.PcapLinkType(t, layers.LinkTypeRaw, capturetest.ScenarioFrames(t)[1])
	_, err := a.AnalyzeReader(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "capture link type is not ethernet")
}

func TestAnalyze_FailsBeforeFirstFrame(t *testing.T) {
	// A valid file header followed by half a record header.
	data := append(capturetest.Pcap(t), 0x01, 0x02, 0x03, 0x04, 0x05)

	result, err := NewAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader(data))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, capture.ErrTruncated)
}

func TestAnalyze_UnreadableContainer(t *testing.T) {
	_, err := NewAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader([]byte("GET / HTTP/1.1\r\n\r\n")))
	assert.ErrorIs(t, err, capture.ErrUnreadable)
}

func TestAnalyzeFile_Missing(t *testing.T) {
	_, err := NewAnalyzer().AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.pcap"))
	assert.ErrorIs(t, err, capture.ErrOpen)
}

func TestAnalyze_EmptyCapture(t *testing.T) {
	result, err := NewAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader(capturetest.Pcap(t)))
	require.NoError(t, err)

	assert.Equal(t, models.StatusComplete, result.Status)
	assert.Empty(t, result.NetworkLogs)
	assert.Empty(t, result.SuspiciousActivity)
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewAnalyzer().Analyze(ctx, &sliceSource{frames: capturetest.ScenarioFrames(t)})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, result.Status)
	assert.Equal(t, context.Canceled.Error(), result.StopReason)
	assert.Zero(t, result.Frames.Total)
}

func TestAnalyze_TrackerFactory(t *testing.T) {
	var observers []*recordingObserver
	a := NewAnalyzer(WithTrackerFactory(func() FragmentObserver {
		o := &recordingObserver{}
		observers = append(observers, o)
		return o
	}))

	frames := [][]byte{
		capturetest.IPv4Frame(t, capturetest.Packet{Protocol: layers.IPProtocolUDP, ID: 11, MoreFragments: true}),
		capturetest.ARPFrame(t),
		capturetest.IPv4Frame(t, capturetest.Packet{Protocol: layers.IPProtocolUDP, ID: 11, FragmentOffset: 1480}),
	}

	_, err := a.Analyze(context.Background(), &sliceSource{frames: frames})
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), &sliceSource{frames: frames})
	require.NoError(t, err)

	require.Len(t, observers, 2, "each run gets its own tracker")
	assert.Equal(t, []FragmentGroup{
		{ID: 11, Offsets: []uint32{0}},
		{ID: 11, Offsets: []uint32{1480}},
	}, observers[0].calls)
	assert.Equal(t, observers[0].calls, observers[1].calls)
}

func TestAnalyze_TrackerDoesNotAffectResult(t *testing.T) {
	frames := capturetest.ScenarioFrames(t)

	withTracker, err := NewAnalyzer().Analyze(context.Background(), &sliceSource{frames: frames})
	require.NoError(t, err)

	noop := NewAnalyzer(WithTrackerFactory(func() FragmentObserver { return &recordingObserver{} }))
	without, err := noop.Analyze(context.Background(), &sliceSource{frames: frames})
	require.NoError(t, err)

	assert.Equal(t, withTracker, without)
}

func TestAnalyze_SourceErrorIsNotEOF(t *testing.T) {
	src := &sliceSource{err: errors.New("disk on fire")}

	result, err := NewAnalyzer().Analyze(context.Background(), src)
	assert.Nil(t, result)
	assert.EqualError(t, err, "reading first frame: disk on fire")
}
