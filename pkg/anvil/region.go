// Package anvil reads and writes region files: the sector-based .mca
// container that stores up to 32x32 compressed NBT chunk roots.
package anvil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/OCharnyshevich/nbt/pkg/nbt"
)

const (
	sectorSize    = 4096
	headerSectors = 2 // location table + timestamp table

	schemeGZip = 1
	schemeZlib = 2
	schemeNone = 3
)

// ErrChunkNotPresent reports a lookup of a chunk the region does not
// contain.
var ErrChunkNotPresent = errors.New("chunk not present in region")

// ChunkPos addresses a chunk within a region (0..31 on each axis, or
// absolute coordinates which are reduced modulo 32).
type ChunkPos struct {
	X, Z int
}

var regionNameRE = regexp.MustCompile(`r\.(-?\d+)\.(-?\d+)\.mca$`)

// Region is a fully buffered region file. Open reads the location and
// timestamp tables along with the chunk data.
type Region struct {
	rx, rz     int
	data       []byte
	locations  [1024]uint32
	timestamps [1024]uint32
}

// Open reads the region file at path. The region coordinates are
// derived from the canonical r.<x>.<z>.mca name when it matches.
func Open(path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region file: %w", err)
	}
	if len(data) < headerSectors*sectorSize {
		return nil, fmt.Errorf("region file %s: header truncated at %d bytes", path, len(data))
	}
	r := &Region{data: data}
	if m := regionNameRE.FindStringSubmatch(path); m != nil {
		r.rx, _ = strconv.Atoi(m[1])
		r.rz, _ = strconv.Atoi(m[2])
	}
	for i := 0; i < 1024; i++ {
		r.locations[i] = binary.BigEndian.Uint32(data[i*4:])
		r.timestamps[i] = binary.BigEndian.Uint32(data[sectorSize+i*4:])
	}
	return r, nil
}

// Pos returns the region's coordinates.
func (r *Region) Pos() (rx, rz int) { return r.rx, r.rz }

// Chunks lists the positions of every chunk present in the region.
func (r *Region) Chunks() []ChunkPos {
	var out []ChunkPos
	for i, loc := range r.locations {
		if loc != 0 {
			out = append(out, ChunkPos{X: i & 31, Z: i >> 5})
		}
	}
	return out
}

// Timestamp returns the chunk's last-modified time.
func (r *Region) Timestamp(x, z int) time.Time {
	return time.Unix(int64(r.timestamps[chunkIndex(x, z)]), 0)
}

func chunkIndex(x, z int) int {
	return (x & 31) + (z&31)*32
}

// ReadChunk decompresses and parses the chunk's NBT root.
func (r *Region) ReadChunk(x, z int) (*nbt.Tag, error) {
	loc := r.locations[chunkIndex(x, z)]
	if loc == 0 {
		return nil, fmt.Errorf("chunk (%d,%d): %w", x, z, ErrChunkNotPresent)
	}
	off := int(loc>>8) * sectorSize
	sectors := int(loc & 0xff)
	if off+5 > len(r.data) || off+sectors*sectorSize > len(r.data) {
		return nil, fmt.Errorf("chunk (%d,%d): location beyond file end", x, z)
	}
	length := int(binary.BigEndian.Uint32(r.data[off : off+4]))
	if length < 1 || off+4+length > len(r.data) {
		return nil, fmt.Errorf("chunk (%d,%d): bad payload length %d", x, z, length)
	}
	scheme := r.data[off+4]
	payload := r.data[off+5 : off+4+length]

	f := nbt.NewFile()
	switch scheme {
	case schemeGZip:
		f.Compression = nbt.CompressionGZip
	case schemeZlib:
		f.Compression = nbt.CompressionZLib
	case schemeNone:
		f.Compression = nbt.CompressionNone
	default:
		return nil, fmt.Errorf("chunk (%d,%d): unknown compression scheme %d", x, z, scheme)
	}
	if _, err := f.LoadBytes(payload); err != nil {
		return nil, fmt.Errorf("chunk (%d,%d): %w", x, z, err)
	}
	return f.Root, nil
}

// WriteRegion writes all provided chunk roots to a region file under
// dir, zlib-compressed and padded to sector boundaries. The file is
// replaced atomically.
func WriteRegion(dir string, rx, rz int, chunks map[ChunkPos]*nbt.Tag) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create region dir: %w", err)
	}

	type chunkEntry struct {
		index      int
		compressed []byte
	}
	entries := make([]chunkEntry, 0, len(chunks))

	f := nbt.NewFile()
	f.Compression = nbt.CompressionZLib
	for pos, root := range chunks {
		f.Root = root
		compressed, err := f.SaveBytes()
		if err != nil {
			return fmt.Errorf("compress chunk (%d,%d): %w", pos.X, pos.Z, err)
		}
		entries = append(entries, chunkEntry{index: chunkIndex(pos.X, pos.Z), compressed: compressed})
	}

	locations := make([]byte, sectorSize)
	timestamps := make([]byte, sectorSize)
	now := uint32(time.Now().Unix())

	// Each chunk's data: 4 bytes length + 1 byte compression scheme +
	// compressed payload, padded to a sector boundary.
	var dataBuf []byte
	currentSector := uint32(headerSectors)

	for i := range entries {
		e := &entries[i]

		payloadLen := uint32(len(e.compressed)) + 1 // +1 for the scheme byte
		totalLen := 4 + payloadLen                  // 4 for the length field itself
		sectorCount := (totalLen + sectorSize - 1) / sectorSize

		off := e.index * 4
		binary.BigEndian.PutUint32(locations[off:off+4],
			(currentSector<<8)|uint32(sectorCount&0xFF))
		binary.BigEndian.PutUint32(timestamps[off:off+4], now)

		var header [5]byte
		binary.BigEndian.PutUint32(header[0:4], payloadLen)
		header[4] = schemeZlib
		dataBuf = append(dataBuf, header[:]...)
		dataBuf = append(dataBuf, e.compressed...)

		paddedSize := int(sectorCount) * sectorSize
		if pad := paddedSize - int(totalLen); pad > 0 {
			dataBuf = append(dataBuf, make([]byte, pad)...)
		}

		currentSector += sectorCount
	}

	path := filepath.Join(dir, fmt.Sprintf("r.%d.%d.mca", rx, rz))
	tmp := path + ".tmp"

	fh, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp region file: %w", err)
	}
	defer func() {
		fh.Close()
		os.Remove(tmp)
	}()

	if _, err := fh.Write(locations); err != nil {
		return fmt.Errorf("write locations: %w", err)
	}
	if _, err := fh.Write(timestamps); err != nil {
		return fmt.Errorf("write timestamps: %w", err)
	}
	if _, err := fh.Write(dataBuf); err != nil {
		return fmt.Errorf("write chunk data: %w", err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close region file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename region file: %w", err)
	}

	return nil
}
