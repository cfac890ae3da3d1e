package flat

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

const (
	formatVersion = 1
	// maxValues bounds allocation when decoding untrusted headers.
	maxValues = 1 << 28
)

var magic = [4]byte{'C', 'V', 'I', 'X'}

type header struct {
	Magic    [4]byte
	Version  uint16
	Reserved uint16
	Dim      uint32
	Rows     uint32
}

// WriteTo writes the binary form of the index to w.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	h := header{Magic: magic, Version: formatVersion, Dim: uint32(x.dim), Rows: uint32(x.rows)}
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return cw.n, fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, x.data); err != nil {
		return cw.n, fmt.Errorf("write vectors: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadFrom decodes an index written by WriteTo.
func (Factory) ReadFrom(r io.Reader) (driven.VectorIndex, error) {
	x, err := Read(r)
	if err != nil {
		return nil, err
	}
	return x, nil
}

// Read decodes an index written by WriteTo.
func Read(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", domain.ErrIndexCorrupt, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", domain.ErrIndexCorrupt, h.Magic[:])
	}
	if h.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrIndexCorrupt, h.Version)
	}
	if h.Dim == 0 || h.Rows == 0 {
		return nil, fmt.Errorf("%w: empty index", domain.ErrIndexCorrupt)
	}
	total := uint64(h.Dim) * uint64(h.Rows)
	if total > maxValues {
		return nil, fmt.Errorf("%w: %d values exceeds limit", domain.ErrIndexCorrupt, total)
	}

	data := make([]float32, total)
	if err := binary.Read(br, binary.LittleEndian, data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated vectors", domain.ErrIndexCorrupt)
		}
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return &Index{dim: int(h.Dim), rows: int(h.Rows), data: data}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
