package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/log"
)

// SSDTP framing constants.
const (
	// HeaderSize is the size of an SSDTP frame header: flag, reserved
	// byte and a 10-byte big-endian size.
	HeaderSize = 12

	// sizeFieldLength is the length of the size part of the header.
	sizeFieldLength = 10

	// DefaultMaxPacketSize is the default maximum reassembled packet size (10 MB).
	DefaultMaxPacketSize = 10 * 1024 * 1024

	// timeCodeTrailerSize is the number of bytes following a time code header.
	timeCodeTrailerSize = 2
)

// SSDTP frame flags.
const (
	FlagCompleteEOP      uint8 = 0x00
	FlagCompleteEEP      uint8 = 0x01
	FlagFragmented       uint8 = 0x02
	FlagSendTimeCode     uint8 = 0x30
	FlagGotTimeCode      uint8 = 0x31
	FlagChangeTxSpeed    uint8 = 0x38
	FlagRegisterRead     uint8 = 0x40
	FlagRegisterReadAck  uint8 = 0x41
	FlagRegisterWrite    uint8 = 0x50
	FlagRegisterWriteAck uint8 = 0x51
)

// EOPType is the end marker of a SpaceWire packet.
type EOPType uint8

const (
	// EOP is a normal end of packet.
	EOP EOPType = iota
	// EEP is an error end of packet.
	EEP
	// Continued marks a fragment with more data to follow.
	Continued
)

// String returns the end marker name.
func (e EOPType) String() string {
	switch e {
	case EOP:
		return "EOP"
	case EEP:
		return "EEP"
	case Continued:
		return "CONTINUED"
	default:
		return "UNKNOWN"
	}
}

func (e EOPType) flag() uint8 {
	switch e {
	case EEP:
		return FlagCompleteEEP
	case Continued:
		return FlagFragmented
	default:
		return FlagCompleteEOP
	}
}

// Framing errors.
var (
	// ErrPacketTooLarge indicates the packet exceeds the maximum size.
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrUnknownFlag indicates a frame flag this implementation cannot handle.
	ErrUnknownFlag = errors.New("unknown SSDTP flag")

	// ErrEEP indicates the received packet was terminated by an error end of packet.
	ErrEEP = errors.New("packet terminated by EEP")

	// ErrTimeCodeRange indicates a time code value above 63.
	ErrTimeCodeRange = errors.New("time code out of range")
)

func putSize(h []byte, size uint64) {
	for i := HeaderSize - 1; i >= HeaderSize-sizeFieldLength; i-- {
		h[i] = byte(size)
		size >>= 8
	}
}

func readSize(h []byte) (uint64, error) {
	// Sizes beyond 8 bytes of significance cannot be buffered.
	if h[2] != 0 || h[3] != 0 {
		return 0, ErrPacketTooLarge
	}
	var size uint64
	for _, b := range h[HeaderSize-sizeFieldLength:] {
		size = size<<8 | uint64(b)
	}
	return size, nil
}

// FrameWriter writes SSDTP frames to an underlying writer.
type FrameWriter struct {
	w             io.Writer
	maxPacketSize uint64
	mu            sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return NewFrameWriterWithMaxSize(w, DefaultMaxPacketSize)
}

// NewFrameWriterWithMaxSize creates a frame writer with a custom max size.
func NewFrameWriterWithMaxSize(w io.Writer, maxSize uint64) *FrameWriter {
	return &FrameWriter{
		w:             w,
		maxPacketSize: maxSize,
	}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WritePacket writes data as one SSDTP frame terminated by eop.
// Header and payload go out in a single Write.
func (fw *FrameWriter) WritePacket(data []byte, eop EOPType) error {
	if uint64(len(data)) > fw.maxPacketSize {
		return fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, len(data), fw.maxPacketSize)
	}

	frame := make([]byte, HeaderSize+len(data))
	frame[0] = eop.flag()
	putSize(frame[:HeaderSize], uint64(len(data)))
	copy(frame[HeaderSize:], data)

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(fw.connID, log.DirectionOut, frame[0], data))
	}
	return nil
}

// WriteTimeCode sends a SpaceWire time code (0-63).
func (fw *FrameWriter) WriteTimeCode(tc uint8) error {
	if tc > 63 {
		return fmt.Errorf("%w: %d", ErrTimeCodeRange, tc)
	}
	frame := make([]byte, HeaderSize+timeCodeTrailerSize)
	frame[0] = FlagSendTimeCode
	frame[HeaderSize] = tc

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("write time code: %w", err)
	}
	if fw.logger != nil {
		fw.logger.Log(makeTimeCodeEvent(fw.connID, log.DirectionOut, tc))
	}
	return nil
}

func makeFrameEvent(connID string, direction log.Direction, flag uint8, data []byte) log.Event {
	frameData := data
	truncated := false
	if len(data) > log.MaxLogDataSize {
		frameData = data[:log.MaxLogDataSize]
		truncated = true
	}
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerLink,
		Category:     log.CategoryPacket,
		Frame: &log.FrameEvent{
			Size:      HeaderSize + len(data),
			Data:      frameData,
			Truncated: truncated,
			Flag:      flag,
		},
	}
}

func makeTimeCodeEvent(connID string, direction log.Direction, tc uint8) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerLink,
		Category:     log.CategoryControl,
		Control:      &log.ControlEvent{Type: log.ControlTimeCode, TimeCode: &tc},
	}
}

// FrameReader reads SSDTP frames and reassembles fragmented packets.
type FrameReader struct {
	r             io.Reader
	maxPacketSize uint64
	header        [HeaderSize]byte

	// partial holds fragments of a packet still waiting for its end marker.
	partial bytes.Buffer

	onTimeCode func(tc uint8)

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithMaxSize(r, DefaultMaxPacketSize)
}

// NewFrameReaderWithMaxSize creates a frame reader with a custom max size.
func NewFrameReaderWithMaxSize(r io.Reader, maxSize uint64) *FrameReader {
	return &FrameReader{
		r:             r,
		maxPacketSize: maxSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// OnTimeCode registers a callback for received time codes.
func (fr *FrameReader) OnTimeCode(fn func(tc uint8)) {
	fr.onTimeCode = fn
}

// ReadPacket reads frames until a complete packet has been received and
// returns it with its end marker. Time codes are consumed and reported
// through the OnTimeCode callback. Empty packets are skipped.
func (fr *FrameReader) ReadPacket() ([]byte, EOPType, error) {
	for {
		if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
			if err == io.EOF && fr.partial.Len() == 0 {
				return nil, EOP, io.EOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
				return nil, EOP, ErrFrameTruncated
			}
			return nil, EOP, fmt.Errorf("read header: %w", err)
		}

		flag := fr.header[0]
		switch flag {
		case FlagCompleteEOP, FlagCompleteEEP, FlagFragmented:
		case FlagSendTimeCode, FlagGotTimeCode:
			if err := fr.readTimeCode(); err != nil {
				return nil, EOP, err
			}
			continue
		default:
			return nil, EOP, fmt.Errorf("%w: 0x%02x", ErrUnknownFlag, flag)
		}

		size, err := readSize(fr.header[:])
		if err != nil || size > fr.maxPacketSize || uint64(fr.partial.Len())+size > fr.maxPacketSize {
			return nil, EOP, fmt.Errorf("%w: fragment of %d bytes after %d", ErrPacketTooLarge, size, fr.partial.Len())
		}
		if _, err := io.CopyN(&fr.partial, fr.r, int64(size)); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
				return nil, EOP, ErrFrameTruncated
			}
			return nil, EOP, fmt.Errorf("read payload: %w", err)
		}

		if flag == FlagFragmented {
			continue
		}
		if fr.partial.Len() == 0 {
			continue
		}

		packet := bytes.Clone(fr.partial.Bytes())
		fr.partial.Reset()

		if fr.logger != nil {
			fr.logger.Log(makeFrameEvent(fr.connID, log.DirectionIn, flag, packet))
		}
		if flag == FlagCompleteEEP {
			return packet, EEP, nil
		}
		return packet, EOP, nil
	}
}

func (fr *FrameReader) readTimeCode() error {
	var trailer [timeCodeTrailerSize]byte
	if _, err := io.ReadFull(fr.r, trailer[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return ErrFrameTruncated
		}
		return fmt.Errorf("read time code: %w", err)
	}
	tc := trailer[0] & 0x3f
	if fr.logger != nil {
		fr.logger.Log(makeTimeCodeEvent(fr.connID, log.DirectionIn, tc))
	}
	if fr.onTimeCode != nil {
		fr.onTimeCode(tc)
	}
	return nil
}

// SetMaxPacketSize updates the maximum reassembled packet size.
func (fr *FrameReader) SetMaxPacketSize(size uint64) {
	fr.maxPacketSize = size
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxPacketSize)
}

// NewFramerWithMaxSize creates a framer with a custom max packet size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint64) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithMaxSize(rw, maxSize),
		FrameWriter: NewFrameWriterWithMaxSize(rw, maxSize),
	}
}

// SetLogger configures logging for both reader and writer.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}

// FrameSize returns the total frame size of an unfragmented packet.
func FrameSize(payloadSize int) int {
	return HeaderSize + payloadSize
}
