package region

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/klauspost/compress/lz4"
)

// Compression type byte values from the region file format. Bit 7 set
// denotes an externalized payload (c.<x>.<z>.mcc), which is not supported.
const (
	compressionGZipAlt    = 0 // treated as uncompressed
	compressionGZip       = 1
	compressionZlib       = 2
	compressionUncompress = 3
	compressionLZ4        = 4
	externalFlag          = 0x80
)

func decompress(compressionType byte, payload []byte) ([]byte, error) {
	if compressionType&externalFlag != 0 {
		return nil, &Error{Kind: ChunkLoading, Reason: "externalized .mcc payload is not supported"}
	}
	switch compressionType {
	case compressionGZipAlt, compressionUncompress:
		return payload, nil
	case compressionGZip:
		r, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, &Error{Kind: ChunkLoading, Reason: "gzip: " + err.Error()}
		}
		defer r.Close()
		return io.ReadAll(r)
	case compressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, &Error{Kind: ChunkLoading, Reason: "zlib: " + err.Error()}
		}
		defer r.Close()
		return io.ReadAll(r)
	case compressionLZ4:
		r := lz4.NewReader(bytes.NewReader(payload))
		return io.ReadAll(r)
	default:
		return nil, &Error{Kind: ChunkLoading, Reason: "unknown compression type"}
	}
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
