package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const headerSize = 4

var (
	// ErrFrameTooLarge means the peer declared a frame above the decoder's
	// cap. The connection cannot be resynchronized and must be closed.
	ErrFrameTooLarge = errors.New("frame length exceeds limit")
	// ErrBadPacket means one frame carried an envelope that failed to
	// deserialize. The stream itself is still in sync.
	ErrBadPacket = errors.New("malformed packet")
)

// Decoder turns a byte stream into a sequence of Packets. It keeps a
// growable buffer so that frames split across reads and multiple frames
// coalesced into one read both come out as discrete packets.
type Decoder struct {
	r        io.Reader
	buf      []byte
	start    int // consumed prefix of buf
	maxFrame int
	chunk    []byte
}

func NewDecoder(r io.Reader, maxFrame int) *Decoder {
	return &Decoder{
		r:        r,
		maxFrame: maxFrame,
		chunk:    make([]byte, 4096),
	}
}

// Next blocks until one complete frame is buffered and returns its decoded
// Packet. io.EOF means an orderly close on a frame boundary; ErrBadPacket is
// recoverable, any other error is fatal for the connection.
func (d *Decoder) Next() (*Packet, error) {
	for {
		if pkt, err, ok := d.tryDecode(); ok {
			return pkt, err
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
			continue
		}
		if err != nil {
			if err == io.EOF && len(d.buf) > d.start {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// tryDecode attempts to cut one frame out of the buffer. The length prefix
// is parsed in place; only the payload slice is handed to the deserializer.
func (d *Decoder) tryDecode() (*Packet, error, bool) {
	pending := d.buf[d.start:]
	if len(pending) < headerSize {
		d.compact()
		return nil, nil, false
	}

	length := int(binary.LittleEndian.Uint32(pending[:headerSize]))
	if length < 0 || length > d.maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length), true
	}
	if len(pending) < headerSize+length {
		d.compact()
		return nil, nil, false
	}

	body := pending[headerSize : headerSize+length]
	d.start += headerSize + length

	var pkt Packet
	if err := msgpack.Unmarshal(body, &pkt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPacket, err), true
	}
	return &pkt, nil, true
}

// compact drops the consumed prefix so the buffer does not grow without
// bound across long-lived connections.
func (d *Decoder) compact() {
	if d.start == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.start:])
	d.buf = d.buf[:n]
	d.start = 0
}

// EncodeFrame serializes a Packet and prepends the little-endian length
// header. The length covers the serialized envelope, not the header itself.
func EncodeFrame(pkt *Packet) ([]byte, error) {
	body, err := msgpack.Marshal(pkt)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint32(frame[:headerSize], uint32(len(body)))
	copy(frame[headerSize:], body)
	return frame, nil
}
