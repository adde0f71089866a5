// Package region implements memory-mapped access to Minecraft region
// (".mca") files: header parsing, chunk decompression, defragmentation,
// and the reverse-diff filter/apply operations the backup chain is built
// on. See SPEC_FULL.md §4.2 for the full semantics.
package region

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
	"github.com/mcbackup/mcbackup/internal/nbt"
)

const (
	sectorSize    = 4096
	headerEntries = 1024
	headerSectors = 2
	headerBytes   = headerSectors * sectorSize
)

// File is an open, memory-mapped region file.
type File struct {
	path    string
	f       *os.File
	m       mmap.MMap
	headers [headerEntries]ChunkHeader
	dirty   bool
}

// Open maps path for read-write access and parses its header tables.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, newErr(EmptyRegion, path, "zero-length region file")
	}
	if size < headerBytes {
		f.Close()
		return nil, newErr(RegionLoading, path, "file smaller than the 8 KiB header")
	}
	m, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, wrapErr(RegionLoading, path, "mapping region file", err)
	}
	file := &File{path: path, f: f, m: m}
	file.loadHeaders()
	return file, nil
}

func (file *File) loadHeaders() {
	for i := 0; i < headerEntries; i++ {
		location := binary.BigEndian.Uint32(file.m[i*4 : i*4+4])
		timestamp := binary.BigEndian.Uint32(file.m[sectorSize+i*4 : sectorSize+i*4+4])
		file.headers[i] = decodeHeader(location, timestamp)
	}
}

func (file *File) flushHeaders() {
	for i := 0; i < headerEntries; i++ {
		h := file.headers[i]
		binary.BigEndian.PutUint32(file.m[i*4:i*4+4], h.locationWord())
		binary.BigEndian.PutUint32(file.m[sectorSize+i*4:sectorSize+i*4+4], h.Timestamp)
	}
}

// Close flushes headers (if mutated) and unmaps the file.
func (file *File) Close() error {
	if file.dirty {
		file.flushHeaders()
	}
	if err := file.m.Unmap(); err != nil {
		file.f.Close()
		return err
	}
	return file.f.Close()
}

// Path returns the file system path this region was opened from.
func (file *File) Path() string { return file.path }

// Header returns the chunk header at idx (0..1023).
func (file *File) Header(idx int) ChunkHeader { return file.headers[idx] }

// GetChunkData returns the decompressed NBT payload for chunk idx. It
// fails if the chunk is not-created or unmodified, or names an unknown or
// externalized compression scheme.
func (file *File) GetChunkData(idx int) ([]byte, error) {
	h := file.headers[idx]
	if h.State != Live {
		return nil, newErr(ChunkLoading, file.path, "chunk is not-created or unmodified")
	}
	start, end := h.physicalSpan()
	if end > len(file.m) {
		return nil, newErr(ChunkLoading, file.path, "payload extends beyond file end")
	}
	raw := file.m[start:end]
	if len(raw) < 5 {
		return nil, newErr(ChunkLoading, file.path, "truncated payload header")
	}
	length := binary.BigEndian.Uint32(raw[0:4])
	if length < 1 || int(4+length) > len(raw) {
		return nil, newErr(ChunkLoading, file.path, "invalid payload length")
	}
	compressionType := raw[4]
	compressed := raw[5 : 4+length]
	return decompress(compressionType, compressed)
}

// CheckUnchanged reports whether chunk idx in file equals chunk otherIdx
// in other, short-circuiting on matching timestamps before falling back
// to a structural NBT comparison.
func (file *File) CheckUnchanged(idx int, other *File, otherIdx int, isChunk bool) (bool, error) {
	h := file.headers[idx]
	oh := other.headers[otherIdx]
	if h.Timestamp == oh.Timestamp {
		return true, nil
	}
	a, err := file.GetChunkData(idx)
	if err != nil {
		return false, err
	}
	b, err := other.GetChunkData(otherIdx)
	if err != nil {
		return false, err
	}
	if len(a) != len(b) {
		return false, nil
	}
	return nbt.Compare(a, b, isChunk)
}

// Density is the ratio of used sectors (including the two header sectors)
// to the file's total sector count.
func (file *File) Density() float64 {
	total := len(file.m) / sectorSize
	used := headerSectors
	for _, h := range file.headers {
		if h.State == Live {
			used += h.Size
		}
	}
	return float64(used) / float64(total)
}

type liveEntry struct {
	idx int
	h   ChunkHeader
}

func (file *File) liveEntries() []liveEntry {
	var entries []liveEntry
	for i, h := range file.headers {
		if h.State == Live {
			entries = append(entries, liveEntry{idx: i, h: h})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].h.Offset < entries[j].h.Offset })
	return entries
}

// Defragment packs every live chunk contiguously starting at sector 2, in
// ascending offset order, and truncates trailing space. Overlapping
// payloads are reported as CorruptedRegion.
func (file *File) Defragment() error {
	return file.defragmentLocked()
}

func (file *File) defragmentLocked() error {
	entries := file.liveEntries()
	cursor := headerSectors
	prevEnd := headerSectors
	for _, e := range entries {
		if e.h.Offset < prevEnd {
			return newErr(CorruptedRegion, file.path, "overlapping chunk payloads detected during defragment")
		}
		if e.h.Offset != cursor {
			srcStart := e.h.Offset * sectorSize
			dstStart := cursor * sectorSize
			n := e.h.Size * sectorSize
			copy(file.m[dstStart:dstStart+n], file.m[srcStart:srcStart+n])
			nh := file.headers[e.idx]
			nh.Offset = cursor
			file.headers[e.idx] = nh
			file.dirty = true
		}
		prevEnd = e.h.Offset + e.h.Size
		cursor += e.h.Size
	}
	return file.resize(cursor * sectorSize)
}

func (file *File) resize(newLen int) error {
	if newLen == len(file.m) {
		return nil
	}
	if err := file.m.Unmap(); err != nil {
		return err
	}
	if err := file.f.Truncate(int64(newLen)); err != nil {
		return err
	}
	m, err := mmap.MapRegion(file.f, newLen, mmap.RDWR, 0, 0)
	if err != nil {
		return err
	}
	file.m = m
	return nil
}

// FilterDiffDefragment turns file into a reverse-diff against other: every
// live chunk whose counterpart in other is live and passes CheckUnchanged
// is marked Unmodified, the rest are defragmented back, and the file is
// truncated. It returns true iff no live chunks remain, so the caller can
// delete the file entirely.
func (file *File) FilterDiffDefragment(other *File, isChunk bool) (identical bool, err error) {
	for idx := 0; idx < headerEntries; idx++ {
		h := file.headers[idx]
		if h.State != Live {
			continue
		}
		oh := other.headers[idx]
		if oh.State != Live {
			continue
		}
		unchanged, err := file.CheckUnchanged(idx, other, idx, isChunk)
		if err != nil {
			return false, err
		}
		if unchanged {
			file.headers[idx] = ChunkHeader{State: Unmodified, Timestamp: h.Timestamp}
			file.dirty = true
		}
	}
	if err := file.defragmentLocked(); err != nil {
		return false, err
	}
	identical = true
	for _, h := range file.headers {
		if h.State == Live {
			identical = false
			break
		}
	}
	return identical, nil
}

type stagedPayload struct {
	idx  int
	data []byte
}

// ApplyDiff layers an older reverse-diff (other) onto file, which must be
// the newer, fuller region. Per slot, the timestamp is always taken from
// other; an Unmodified slot in other leaves file's payload in place, a
// NotCreated slot clears file's slot, and a Live slot is written over
// file's payload when it fits in file's sectors, or appended after the
// end of the file otherwise.
func (file *File) ApplyDiff(other *File, defragment bool) error {
	var staged []stagedPayload
	for idx := 0; idx < headerEntries; idx++ {
		sh := file.headers[idx]
		oh := other.headers[idx]
		sh.Timestamp = oh.Timestamp
		switch oh.State {
		case Unmodified:
			// keep self's payload as-is.
		case NotCreated:
			sh.State = NotCreated
			sh.Offset = 0
			sh.Size = 0
		case Live:
			srcStart, srcEnd := oh.physicalSpan()
			data := other.m[srcStart:srcEnd]
			if oh.Size <= sh.Size {
				dstStart := sh.Offset * sectorSize
				copy(file.m[dstStart:dstStart+len(data)], data)
				sh.Size = oh.Size
			} else {
				buf := make([]byte, len(data))
				copy(buf, data)
				staged = append(staged, stagedPayload{idx: idx, data: buf})
				sh.State = NotCreated
				sh.Offset = 0
				sh.Size = 0
			}
		}
		file.headers[idx] = sh
	}
	file.dirty = true

	if defragment {
		if err := file.defragmentLocked(); err != nil {
			return err
		}
	}

	if len(staged) == 0 {
		return nil
	}
	extra := 0
	for _, s := range staged {
		extra += len(s.data)
	}
	oldLen := len(file.m)
	if err := file.resize(oldLen + extra); err != nil {
		return err
	}
	cursor := oldLen / sectorSize
	for _, s := range staged {
		start := cursor * sectorSize
		copy(file.m[start:start+len(s.data)], s.data)
		sizeSectors := len(s.data) / sectorSize
		h := file.headers[s.idx]
		h.State = Live
		h.Offset = cursor
		h.Size = sizeSectors
		file.headers[s.idx] = h
		cursor += sizeSectors
	}
	return nil
}
