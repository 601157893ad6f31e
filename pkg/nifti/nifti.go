// Package nifti provides minimal NIfTI-1 header access for the conversion
// pipeline. Its job is intent tagging: FSL tools only recognize a volume as
// a displacement field when the header's intent_code is set to 2006, and
// the field files produced by format conversion leave that field vacant.
// The header is patched at fixed byte offsets; image data and all other
// header fields pass through untouched.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// IntentDisplacementField is the NIfTI intent code FSL uses to mark a
// volume as a displacement (warp) field.
const IntentDisplacementField = 2006

// headerSize is the fixed size of a NIfTI-1 header in bytes.
const headerSize = 348

// Byte offsets of the header fields this package touches.
const (
	offsetDim        = 40
	offsetIntentCode = 68
	offsetDatatype   = 70
	offsetMagic      = 344
)

// Header holds the NIfTI-1 header fields the pipeline needs to inspect.
type Header struct {
	// Dim is the dimension array; Dim[0] is the number of dimensions
	// and Dim[1..Dim[0]] are the extents along each axis.
	Dim [8]int16

	// IntentCode identifies the semantic meaning of the volume data
	IntentCode int16

	// Datatype is the NIfTI datatype code of the voxel data
	Datatype int16

	// ByteOrder is the endianness the file was written with
	ByteOrder binary.ByteOrder

	// Compressed reports whether the file is gzip-compressed
	Compressed bool
}

// ReadHeader parses the header of a .nii or .nii.gz file.
func ReadHeader(path string) (*Header, error) {
	raw, compressed, err := readDecompressed(path)
	if err != nil {
		return nil, err
	}
	hdr, err := parseHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	hdr.Compressed = compressed
	return hdr, nil
}

// SetWarpIntent rewrites the intent_code of the NIfTI file at inPath to the
// FSL displacement-field constant and writes the result to outPath. The two
// paths may be identical, which rewrites the file in place. Compression is
// preserved: a gzipped input produces a gzipped output.
func SetWarpIntent(inPath, outPath string) error {
	raw, compressed, err := readDecompressed(inPath)
	if err != nil {
		return err
	}
	hdr, err := parseHeader(raw)
	if err != nil {
		return fmt.Errorf("%s: %v", inPath, err)
	}

	hdr.ByteOrder.PutUint16(raw[offsetIntentCode:offsetIntentCode+2], uint16(IntentDisplacementField))

	var out []byte
	if compressed {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("failed to recompress %s: %v", outPath, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to recompress %s: %v", outPath, err)
		}
		out = buf.Bytes()
	} else {
		out = raw
	}

	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %v", outPath, err)
	}
	return nil
}

// readDecompressed reads the whole file, transparently decompressing gzip
// content, and reports whether the file was compressed.
func readDecompressed(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %v", path, err)
	}

	// gzip magic bytes
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, false, fmt.Errorf("failed to decompress %s: %v", path, err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decompress %s: %v", path, err)
		}
		return raw, true, nil
	}
	return data, false, nil
}

// parseHeader validates the NIfTI-1 header in raw and extracts the fields
// this package exposes. Both byte orders are accepted; the order is
// detected from the sizeof_hdr field.
func parseHeader(raw []byte) (*Header, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("file too short for a NIfTI-1 header (%d bytes)", len(raw))
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(raw[0:4]) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(raw[0:4]) == headerSize:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a NIfTI-1 file: bad sizeof_hdr")
	}

	magic := raw[offsetMagic : offsetMagic+4]
	if !bytes.Equal(magic, []byte("n+1\x00")) && !bytes.Equal(magic, []byte("ni1\x00")) {
		return nil, fmt.Errorf("not a NIfTI-1 file: bad magic %q", magic)
	}

	hdr := &Header{ByteOrder: order}
	for i := 0; i < 8; i++ {
		hdr.Dim[i] = int16(order.Uint16(raw[offsetDim+2*i : offsetDim+2*i+2]))
	}
	hdr.IntentCode = int16(order.Uint16(raw[offsetIntentCode : offsetIntentCode+2]))
	hdr.Datatype = int16(order.Uint16(raw[offsetDatatype : offsetDatatype+2]))

	return hdr, nil
}
