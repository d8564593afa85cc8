package realtime

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// FeedMessage field numbers.
const (
	headerField protowire.Number = 1
	entityField protowire.Number = 2
)

const maxFieldSize = 64 << 20

var unmarshalOpts = proto.UnmarshalOptions{AllowPartial: true}

// Decoder reads a GTFS-RT FeedMessage one entity at a time, without
// buffering the whole message.
type Decoder struct {
	r      *bufio.Reader
	header *gtfs.FeedHeader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Header returns the feed header once it has been read, or nil.
func (d *Decoder) Header() *gtfs.FeedHeader {
	return d.header
}

// Entities yields each FeedEntity in stream order. The sequence ends at
// end of input, or after yielding a single non-nil error. It reads from the
// underlying reader and cannot be restarted.
func (d *Decoder) Entities() iter.Seq2[*gtfs.FeedEntity, error] {
	return func(yield func(*gtfs.FeedEntity, error) bool) {
		for {
			tag, err := binary.ReadUvarint(d.r)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("read tag: %w", err))
				return
			}
			num, typ := protowire.DecodeTag(tag)
			if num < protowire.MinValidNumber {
				yield(nil, fmt.Errorf("invalid field number %d", num))
				return
			}

			switch {
			case num == headerField && typ == protowire.BytesType:
				b, err := d.readBytes()
				if err != nil {
					yield(nil, fmt.Errorf("read header: %w", err))
					return
				}
				h := &gtfs.FeedHeader{}
				if err := unmarshalOpts.Unmarshal(b, h); err != nil {
					yield(nil, fmt.Errorf("unmarshal header: %w", err))
					return
				}
				d.header = h

			case num == entityField && typ == protowire.BytesType:
				b, err := d.readBytes()
				if err != nil {
					yield(nil, fmt.Errorf("read entity: %w", err))
					return
				}
				e := &gtfs.FeedEntity{}
				if err := unmarshalOpts.Unmarshal(b, e); err != nil {
					yield(nil, fmt.Errorf("unmarshal entity: %w", err))
					return
				}
				if !yield(e, nil) {
					return
				}

			default:
				if err := d.skip(num, typ); err != nil {
					yield(nil, err)
					return
				}
			}
		}
	}
}

func (d *Decoder) readBytes() ([]byte, error) {
	n, err := binary.ReadUvarint(d.r)
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if n > maxFieldSize {
		return nil, fmt.Errorf("field length %d exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return nil, unexpectedEOF(err)
	}
	return b, nil
}

func (d *Decoder) skip(num protowire.Number, typ protowire.Type) error {
	var err error
	switch typ {
	case protowire.VarintType:
		_, err = binary.ReadUvarint(d.r)
	case protowire.Fixed32Type:
		_, err = d.r.Discard(4)
	case protowire.Fixed64Type:
		_, err = d.r.Discard(8)
	case protowire.BytesType:
		var n uint64
		n, err = binary.ReadUvarint(d.r)
		if err == nil {
			if n > maxFieldSize {
				return fmt.Errorf("field %d length %d exceeds limit", num, n)
			}
			_, err = d.r.Discard(int(n))
		}
	default:
		return fmt.Errorf("field %d: unsupported wire type %d", num, typ)
	}
	if err != nil {
		return fmt.Errorf("skip field %d: %w", num, unexpectedEOF(err))
	}
	return nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
