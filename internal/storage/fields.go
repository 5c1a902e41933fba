package storage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var fieldsMagic = [4]byte{'R', 'D', 'S', 'F'}

const fieldsVersion = 1

var ErrBadArchive = errors.New("storage: not a field archive")

// FieldHeader is the provenance record at the start of a field archive.
type FieldHeader struct {
	Version int       `json:"version"`
	RunID   string    `json:"run_id"`
	Created time.Time `json:"created"`
	D1      float64   `json:"d1"`
	D2      float64   `json:"d2"`
	Beta    float64   `json:"beta"`
	L       float64   `json:"L"`
	N       int       `json:"n"`
	Method  string    `json:"method"`
	RelTol  float64   `json:"rtol"`
	AbsTol  float64   `json:"atol"`
	Times   []float64 `json:"times"`
}

// WriteFields writes a gzip stream holding the magic, a length-prefixed
// JSON header, then every u field followed by every v field as
// little-endian float64 in (time, row, column) order.
func WriteFields(w io.Writer, hdr FieldHeader, u, v [][]float64) error {
	if len(u) != len(hdr.Times) || len(v) != len(hdr.Times) {
		return fmt.Errorf("storage: %d times but %d u and %d v fields", len(hdr.Times), len(u), len(v))
	}
	hdr.Version = fieldsVersion

	meta, err := json.Marshal(hdr)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(w)
	bw := bufio.NewWriter(zw)

	bw.Write(fieldsMagic[:])
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(meta))); err != nil {
		return err
	}
	bw.Write(meta)

	points := hdr.N * hdr.N
	for _, stack := range [][][]float64{u, v} {
		for k, field := range stack {
			if len(field) != points {
				return fmt.Errorf("storage: field %d has %d points, want %d", k, len(field), points)
			}
			if err := binary.Write(bw, binary.LittleEndian, field); err != nil {
				return err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return zw.Close()
}

func ReadFields(r io.Reader) (*FieldHeader, [][]float64, [][]float64, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer zr.Close()
	br := bufio.NewReader(zr)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil || magic != fieldsMagic {
		return nil, nil, nil, ErrBadArchive
	}

	var size uint32
	if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
		return nil, nil, nil, err
	}
	meta := make([]byte, size)
	if _, err := io.ReadFull(br, meta); err != nil {
		return nil, nil, nil, err
	}

	var hdr FieldHeader
	if err := json.Unmarshal(meta, &hdr); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: header: %v", ErrBadArchive, err)
	}
	if hdr.Version != fieldsVersion {
		return nil, nil, nil, fmt.Errorf("storage: unsupported archive version %d", hdr.Version)
	}

	points := hdr.N * hdr.N
	read := func() ([][]float64, error) {
		stack := make([][]float64, len(hdr.Times))
		for k := range stack {
			stack[k] = make([]float64, points)
			if err := binary.Read(br, binary.LittleEndian, stack[k]); err != nil {
				return nil, fmt.Errorf("field %d: %w", k, err)
			}
		}
		return stack, nil
	}

	u, err := read()
	if err != nil {
		return nil, nil, nil, err
	}
	v, err := read()
	if err != nil {
		return nil, nil, nil, err
	}
	return &hdr, u, v, nil
}

func WriteFieldsFile(path string, hdr FieldHeader, u, v [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFields(f, hdr, u, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadFieldsFile(path string) (*FieldHeader, [][]float64, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()
	return ReadFields(f)
}
