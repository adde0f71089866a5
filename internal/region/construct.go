package region

import (
	"encoding/binary"
	"os"
)

// Create makes a new region file at path with totalSectors sectors,
// zero-filled (so every chunk slot starts not-created), and opens it.
func Create(path string, totalSectors int) (*File, error) {
	if totalSectors < headerSectors {
		totalSectors = headerSectors
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(totalSectors * sectorSize)); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return Open(path)
}

// SetChunkData writes a new payload for chunk idx by appending fresh
// sectors at the end of the file; it never reuses space freed by a prior
// write to the same slot (that is Defragment's job). compressionType must
// be zlib or uncompressed.
func (file *File) SetChunkData(idx int, compressionType byte, data []byte, timestamp uint32) error {
	var compressed []byte
	switch compressionType {
	case compressionZlib:
		var err error
		compressed, err = compressZlib(data)
		if err != nil {
			return err
		}
	case compressionUncompress, compressionGZipAlt:
		compressed = data
	default:
		return newErr(ChunkLoading, file.path, "unsupported compression type for write")
	}
	length := 1 + len(compressed)
	physical := 4 + length
	sectors := (physical + sectorSize - 1) / sectorSize

	oldLen := len(file.m)
	startSector := oldLen / sectorSize
	if err := file.resize(oldLen + sectors*sectorSize); err != nil {
		return err
	}
	start := startSector * sectorSize
	binary.BigEndian.PutUint32(file.m[start:start+4], uint32(length))
	file.m[start+4] = compressionType
	copy(file.m[start+5:start+5+len(compressed)], compressed)

	file.headers[idx] = ChunkHeader{State: Live, Offset: startSector, Size: sectors, Timestamp: timestamp}
	file.dirty = true
	return nil
}

// SetHeaderForTest overrides a chunk header directly, bypassing the
// normal write path. Used to construct corrupted fixtures (e.g. two
// chunks claiming the same offset) for defragment/corruption tests.
func (file *File) SetHeaderForTest(idx int, h ChunkHeader) {
	file.headers[idx] = h
	file.dirty = true
}
