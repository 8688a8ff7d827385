// Package geotiff writes uncompressed RGBA GeoTIFF files with the minimal
// tag set GIS tools need to place an image on a map.
package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"sort"
)

const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeDouble   = 12

	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagXResolution     = 282
	tagYResolution     = 283
	tagResolutionUnit  = 296

	TagImageDescription = 270
	TagDateTime         = 306
	TagModelPixelScale  = 33550
	TagModelTiepoint    = 33922
	TagGeoKeyDirectory  = 34735
)

var enc = binary.LittleEndian

type ifdEntry struct {
	tag      uint16
	datatype uint16
	count    uint32
	data     []byte
}

type byTag []ifdEntry

func (d byTag) Len() int           { return len(d) }
func (d byTag) Less(i, j int) bool { return d[i].tag < d[j].tag }
func (d byTag) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

// Encode writes m to w as a single-strip uncompressed RGBA TIFF.
// extraTags maps TIFF tag IDs to values; []uint16 encodes as SHORT,
// []float64 as DOUBLE, and string as NUL-terminated ASCII.
func Encode(w io.Writer, m image.Image, extraTags map[uint16]interface{}) error {
	bounds := m.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Little-endian magic, version 42, first IFD at byte 8.
	header := []byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}
	if _, err := w.Write(header); err != nil {
		return err
	}

	pixelData := new(bytes.Buffer)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := m.At(x, y).RGBA()
			pixelData.WriteByte(uint8(r >> 8))
			pixelData.WriteByte(uint8(g >> 8))
			pixelData.WriteByte(uint8(b >> 8))
			pixelData.WriteByte(uint8(a >> 8))
		}
	}
	pixels := pixelData.Bytes()

	var entries []ifdEntry
	addEntry := func(tag uint16, datatype uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag, datatype, count, data})
	}

	addEntry(tagImageWidth, typeShort, 1, enc16(uint16(width)))
	addEntry(tagImageLength, typeShort, 1, enc16(uint16(height)))
	addEntry(tagBitsPerSample, typeShort, 4, enc16s([]uint16{8, 8, 8, 8}))
	addEntry(tagCompression, typeShort, 1, enc16(1))
	addEntry(tagPhotometric, typeShort, 1, enc16(2))
	addEntry(tagSamplesPerPixel, typeShort, 1, enc16(4))
	addEntry(tagRowsPerStrip, typeShort, 1, enc16(uint16(height)))
	addEntry(tagXResolution, typeRational, 1, encRational(72, 1))
	addEntry(tagYResolution, typeRational, 1, encRational(72, 1))
	addEntry(tagResolutionUnit, typeShort, 1, enc16(2))

	// Patched once the pixel offset is known.
	addEntry(tagStripOffsets, typeLong, 1, make([]byte, 4))
	addEntry(tagStripByteCounts, typeLong, 1, make([]byte, 4))

	for tag, val := range extraTags {
		switch v := val.(type) {
		case []uint16:
			addEntry(tag, typeShort, uint32(len(v)), enc16s(v))
		case []float64:
			addEntry(tag, typeDouble, uint32(len(v)), encDoubles(v))
		case string:
			b := append([]byte(v), 0)
			addEntry(tag, typeASCII, uint32(len(b)), b)
		default:
			return fmt.Errorf("unsupported tag value type for tag %d", tag)
		}
	}

	// IFD entries must be sorted by tag number.
	sort.Sort(byTag(entries))

	// Layout: header, IFD table, out-of-line values, pixel strip.
	ifdSize := 2 + 12*len(entries) + 4
	valueDataOffset := 8 + ifdSize

	var largeDataBuf bytes.Buffer
	for i := range entries {
		e := &entries[i]
		if len(e.data) <= 4 {
			// Inlined in the value field.
			continue
		}
		currentOffset := uint32(valueDataOffset + largeDataBuf.Len())
		largeDataBuf.Write(e.data)
		e.data = enc32(currentOffset)
	}

	pixelsOffset := uint32(valueDataOffset + largeDataBuf.Len())
	for i := range entries {
		switch entries[i].tag {
		case tagStripOffsets:
			entries[i].data = enc32(pixelsOffset)
		case tagStripByteCounts:
			entries[i].data = enc32(uint32(len(pixels)))
		}
	}

	if err := binary.Write(w, enc, uint16(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(w, enc, e.tag); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.datatype); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.count); err != nil {
			return err
		}
		var val [4]byte
		copy(val[:], e.data)
		if _, err := w.Write(val[:]); err != nil {
			return err
		}
	}
	// No further IFDs.
	if err := binary.Write(w, enc, uint32(0)); err != nil {
		return err
	}

	if _, err := largeDataBuf.WriteTo(w); err != nil {
		return err
	}
	if _, err := w.Write(pixels); err != nil {
		return err
	}
	return nil
}

func enc16(v uint16) []byte {
	b := make([]byte, 2)
	enc.PutUint16(b, v)
	return b
}

func enc32(v uint32) []byte {
	b := make([]byte, 4)
	enc.PutUint32(b, v)
	return b
}

func enc16s(vs []uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		enc.PutUint16(b[i*2:], v)
	}
	return b
}

func encDoubles(vs []float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		enc.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func encRational(num, den uint32) []byte {
	b := make([]byte, 8)
	enc.PutUint32(b[:4], num)
	enc.PutUint32(b[4:], den)
	return b
}
