package log

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// fileMagic opens every .plog file: the CBOR self-described tag 55799
// (RFC 8949 section 3.4.6). Decoders that ignore it still see a valid stream.
var fileMagic = []byte{0xd9, 0xd9, 0xf7}

// ErrNotTraceFile is returned when a file does not start with the trace header.
var ErrNotTraceFile = errors.New("log: not a panduza trace file")

var (
	traceEnc cbor.EncMode
	traceDec cbor.DecMode
)

func init() {
	// Identical events encode to identical bytes.
	enc := cbor.CoreDetEncOptions()
	enc.Time = cbor.TimeRFC3339Nano
	enc.NilContainers = cbor.NilContainerAsNull

	var err error
	if traceEnc, err = enc.EncMode(); err != nil {
		panic("log: cbor encoder: " + err.Error())
	}

	// Older files may carry keys this build does not know about.
	dec := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyQuiet,
		IndefLength:      cbor.IndefLengthAllowed,
		MaxArrayElements: MaxFrameData * 4,
	}
	if traceDec, err = dec.DecMode(); err != nil {
		panic("log: cbor decoder: " + err.Error())
	}
}

// EncodeEvent encodes a single event.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent decodes a single event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns an event stream encoder writing to w. It does not
// write the file header.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return traceEnc.NewEncoder(w)
}

// NewDecoder returns an event stream decoder reading from r, which must be
// positioned after the file header.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return traceDec.NewDecoder(r)
}

// readHeader checks that r starts with the file header. An empty stream is
// accepted so a freshly created trace reads as zero events.
func readHeader(br *bufio.Reader) error {
	head, err := br.Peek(len(fileMagic))
	if len(head) == 0 && errors.Is(err, io.EOF) {
		return nil
	}
	if !bytes.Equal(head, fileMagic) {
		return ErrNotTraceFile
	}
	_, err = br.Discard(len(fileMagic))
	return err
}
