package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxLineSize caps a single framed message on stream transports.
const MaxLineSize = 64 * 1024

// ErrLineTooLong is returned when a peer sends a frame over MaxLineSize
var ErrLineTooLong = errors.New("message exceeds maximum line size")

// Pool of buffers to avoid allocation and ensure thread safety
var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// Marshal serializes a message as a single newline terminated JSON line
func Marshal(msg *Message) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	// Encode appends the trailing newline
	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal parses one JSON line into a message envelope
func Unmarshal(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return &msg, nil
}

// Writer frames messages onto a stream. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a framing writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage writes one framed message
func (w *Writer) WriteMessage(msg *Message) error {
	data, err := Marshal(msg)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(data)
	return err
}

// Reader reads framed messages from a stream
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a framing reader with the MaxLineSize limit
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)
	return &Reader{scanner: scanner}
}

// ReadMessage blocks until the next message arrives. Blank lines are skipped.
// It returns io.EOF when the stream ends cleanly.
func (r *Reader) ReadMessage() (*Message, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return Unmarshal(line)
	}

	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrLineTooLong
		}
		return nil, err
	}
	return nil, io.EOF
}
