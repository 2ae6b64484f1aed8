// Package capture reads link-layer frames out of pcap and pcapng containers.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"capsentry/internal/models"
)

var (
	// ErrOpen means the capture file could not be opened.
	ErrOpen = errors.New("cannot open capture")
	// ErrUnreadable means the container header is missing or invalid.
	ErrUnreadable = errors.New("unreadable capture container")
	// ErrTruncated means the container ended in the middle of a record.
	ErrTruncated = errors.New("truncated capture")
	// ErrCorrupt covers any other container-level failure between frames.
	ErrCorrupt = errors.New("corrupt capture")
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Source yields raw frames in capture order. Next returns io.EOF once the
// capture is exhausted. A Source cannot be rewound.
type Source interface {
	Next() (models.RawFrame, error)
	Close() error
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// FileSource is a Source backed by a pcap or pcapng stream.
type FileSource struct {
	reader   packetReader
	closer   io.Closer
	br       *bufio.Reader
	tail     *blockTail // pcapng only
	format   string
	seq      int
	done     bool
	logger   *slog.Logger
	linkType layers.LinkType
}

// Option configures a FileSource.
type Option func(*FileSource)

// WithLogger sets the logger for container level warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *FileSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens the capture at path. The caller must Close the returned source.
func Open(path string, opts ...Option) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}

	src, err := newSource(f, f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// NewSource reads a capture from r. Closing the source does not close r.
func NewSource(r io.Reader, opts ...Option) (*FileSource, error) {
	return newSource(r, nil, opts)
}

func newSource(r io.Reader, closer io.Closer, opts []Option) (*FileSource, error) {
	src := &FileSource{
		closer: closer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(src)
	}
	src.logger = src.logger.With("component", "capture")

	// NgReader keeps using br as long as it is at least bufio's default
	// size, so tail.read minus br.Buffered() is what the reader consumed.
	tail := newBlockTail(r)
	br := bufio.NewReader(tail)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("%w: reading magic number: %w", ErrUnreadable, err)
	}

	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
		}
		src.reader = ng
		src.format = "pcapng"
		src.br = br
		src.tail = tail
		src.markBoundary()
	} else {
		tail.discard()
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
		}
		src.reader = pr
		src.format = "pcap"
	}

	src.linkType = src.reader.LinkType()
	if src.linkType != layers.LinkTypeEthernet {
		// Frames are still decoded as Ethernet, the decoder will skip what
		// does not carry an IPv4 ethertype at offset 12.
		src.logger.Warn("capture link type is not ethernet",
			"format", src.format,
			"link_type", src.linkType.String())
	}

	return src, nil
}

// Format returns "pcap" or "pcapng".
func (s *FileSource) Format() string {
	return s.format
}

// LinkType returns the link type declared by the container.
func (s *FileSource) LinkType() layers.LinkType {
	return s.linkType
}

// Next returns the next frame or io.EOF when the capture is exhausted.
func (s *FileSource) Next() (models.RawFrame, error) {
	if s.done {
		return models.RawFrame{}, io.EOF
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		s.done = true
		return models.RawFrame{}, s.classify(err, data)
	}

	s.seq++
	s.markBoundary()
	return models.RawFrame{
		Seq:       s.seq,
		Data:      data,
		Timestamp: ci.Timestamp,
		WireLen:   ci.Length,
	}, nil
}

func (s *FileSource) markBoundary() {
	if s.tail != nil {
		s.tail.mark(s.tail.read - int64(s.br.Buffered()))
	}
}

// classify maps reader errors onto the package sentinels. A clean io.EOF
// with a record already allocated means the file ended inside that record,
// and for pcapng so does one that leaves a partial block behind.
func (s *FileSource) classify(err error, data []byte) error {
	switch {
	case errors.Is(err, io.EOF) && len(data) == 0 && s.tail != nil && !s.tail.complete():
		return fmt.Errorf("%w after frame %d: stream ends inside a pcapng block", ErrTruncated, s.seq)
	case errors.Is(err, io.EOF) && len(data) == 0:
		return io.EOF
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w after frame %d: %v", ErrTruncated, s.seq, err)
	default:
		return fmt.Errorf("%w after frame %d: %w", ErrCorrupt, s.seq, err)
	}
}

// Close releases the underlying file. It is safe to call more than once.
func (s *FileSource) Close() error {
	s.done = true
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}
