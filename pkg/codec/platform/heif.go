package platform

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pion/animdecode/pkg/codec"
	"github.com/pion/animdecode/pkg/frame"
)

// SampleEntry describes how the samples of an image sequence track are
// coded.
type SampleEntry struct {
	// Type is the sample entry four-character code, e.g. "hvc1".
	Type          string
	Width, Height int
	// Data is the visual sample entry body, including codec configuration
	// boxes such as hvcC.
	Data []byte
}

// SampleDecoder decodes the coded samples of one track into images. A
// SampleDecoder serves one decode session.
type SampleDecoder interface {
	DecodeSample(sample []byte) (image.Image, error)
}

// SampleDecoderBuilder creates a SampleDecoder for a track.
type SampleDecoderBuilder func(entry SampleEntry) (SampleDecoder, error)

var (
	sampleDecodersMu sync.RWMutex
	sampleDecoders   = make(map[string]SampleDecoderBuilder)
)

// RegisterSampleDecoder registers the decoder for samples whose sample
// entry type is fourcc. Hosts register the platform's HEVC decoder here;
// without one, HEIF sequences fail with an *codec.UnsupportedFormatError.
func RegisterSampleDecoder(fourcc string, b SampleDecoderBuilder) {
	sampleDecodersMu.Lock()
	defer sampleDecodersMu.Unlock()
	sampleDecoders[fourcc] = b
}

// SampleDecoders returns the registered sample entry types.
func SampleDecoders() []string {
	sampleDecodersMu.RLock()
	defer sampleDecodersMu.RUnlock()

	types := make([]string, 0, len(sampleDecoders))
	for t := range sampleDecoders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func lookupSampleDecoder(fourcc string) (SampleDecoderBuilder, bool) {
	sampleDecodersMu.RLock()
	defer sampleDecodersMu.RUnlock()
	b, ok := sampleDecoders[fourcc]
	return b, ok
}

// elst flag marking an edit list that repeats forever.
const elstRepeat = 1

type sample struct {
	offset   uint64
	size     uint32
	duration time.Duration
}

type heifBackend struct {
	limits codec.Limits

	data    []byte
	width   int
	height  int
	samples []sample
	decoder SampleDecoder
	next    int
	opened  bool
}

// NewHEIF returns the native HEIF backend. It reads the image sequence
// track of an ISO base media file and hands its coded samples to the
// SampleDecoder registered for the track's sample entry type.
func NewHEIF(limits codec.Limits) codec.Backend {
	return &heifBackend{limits: limits}
}

// track is what the backend needs from a trak box.
type track struct {
	handler   string
	width     int
	height    int
	repeat    bool
	timescale uint32
	entry     SampleEntry
	samples   []sample
}

func (b *heifBackend) Open(r io.Reader) (codec.Header, error) {
	if b.opened {
		return codec.Header{}, fmt.Errorf("platform: heif backend already opened")
	}
	b.opened = true

	data, err := readAll(r, b.limits)
	if err != nil {
		return codec.Header{}, err
	}
	b.data = data

	top := newBoxReader(box{data: data})
	ftyp, err := top.next()
	if err != nil {
		return codec.Header{}, malformed(codec.FormatHEIF, -1, "reading ftyp box", err)
	}
	if ftyp.typ != "ftyp" {
		return codec.Header{}, malformed(codec.FormatHEIF, -1, fmt.Sprintf("first box is %q, not ftyp", ftyp.typ), nil)
	}
	if !heifBrand(ftyp) {
		return codec.Header{}, malformed(codec.FormatHEIF, -1, "no HEIF brand in ftyp box", nil)
	}

	var moov *box
	for moov == nil {
		bx, err := top.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return codec.Header{}, malformed(codec.FormatHEIF, -1, "reading top level box", err)
		}
		if bx.typ == "moov" {
			moov = &bx
		}
	}
	if moov == nil {
		return codec.Header{}, &codec.UnsupportedFormatError{
			Format:    codec.FormatHEIF,
			Threshold: -1,
			Reason:    "no image sequence track",
		}
	}

	t, err := b.findTrack(*moov)
	if err != nil {
		return codec.Header{}, err
	}

	build, ok := lookupSampleDecoder(t.entry.Type)
	if !ok {
		return codec.Header{}, &codec.UnsupportedFormatError{
			Format:    codec.FormatHEIF,
			Threshold: -1,
			Reason:    fmt.Sprintf("no sample decoder registered for %q", t.entry.Type),
		}
	}
	if b.decoder, err = build(t.entry); err != nil {
		return codec.Header{}, fmt.Errorf("platform: creating %q sample decoder: %w", t.entry.Type, err)
	}

	b.width, b.height = t.width, t.height
	b.samples = t.samples

	hdr := codec.Header{
		Width:      b.width,
		Height:     b.height,
		LoopCount:  1,
		FrameCount: len(b.samples),
	}
	if t.repeat {
		hdr.LoopCount = 0
	}
	logger.Debugf("heif: %dx%d %s track, %d samples, loop count %d", hdr.Width, hdr.Height, t.entry.Type, hdr.FrameCount, hdr.LoopCount)
	return hdr, nil
}

func heifBrand(ftyp box) bool {
	if len(ftyp.data) < 8 {
		return false
	}
	if codec.IsHEIFBrand(string(ftyp.data[0:4])) {
		return true
	}
	for i := 8; i+4 <= len(ftyp.data); i += 4 {
		if codec.IsHEIFBrand(string(ftyp.data[i : i+4])) {
			return true
		}
	}
	return false
}

// findTrack returns the first picture or video track of moov.
func (b *heifBackend) findTrack(moov box) (*track, error) {
	boxes, err := children(moov, "trak")
	if err != nil {
		return nil, malformed(codec.FormatHEIF, -1, "reading moov box", err)
	}
	for _, trak := range boxes["trak"] {
		t, err := b.parseTrack(trak)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		return t, nil
	}
	return nil, &codec.UnsupportedFormatError{
		Format:    codec.FormatHEIF,
		Threshold: -1,
		Reason:    "no image sequence track",
	}
}

// parseTrack returns nil for tracks that do not carry pictures.
func (b *heifBackend) parseTrack(trak box) (*track, error) {
	bad := func(reason string, err error) error {
		return malformed(codec.FormatHEIF, -1, reason, err)
	}

	tb, err := children(trak)
	if err != nil {
		return nil, bad("reading trak box", err)
	}
	mdia, ok := first(tb, "mdia")
	if !ok {
		return nil, bad("trak without mdia box", nil)
	}
	mb, err := children(mdia)
	if err != nil {
		return nil, bad("reading mdia box", err)
	}

	t := &track{}
	if hdlr, ok := first(mb, "hdlr"); ok {
		_, _, p, err := fullBox(hdlr)
		if err != nil || len(p) < 8 {
			return nil, bad("short hdlr box", err)
		}
		t.handler = string(p[4:8])
	}
	if t.handler != "pict" && t.handler != "vide" {
		logger.Debugf("heif: skipping %q track", t.handler)
		return nil, nil
	}

	mdhd, ok := first(mb, "mdhd")
	if !ok {
		return nil, bad("mdia without mdhd box", nil)
	}
	version, _, p, err := fullBox(mdhd)
	if err != nil {
		return nil, bad("reading mdhd box", err)
	}
	tr := &tableReader{buf: p}
	if version == 1 {
		tr.skip(16)
	} else {
		tr.skip(8)
	}
	t.timescale = tr.u32()
	if tr.err != nil {
		return nil, bad("reading mdhd box", tr.err)
	}
	if t.timescale == 0 {
		return nil, bad("zero media timescale", nil)
	}

	if tkhd, ok := first(tb, "tkhd"); ok && len(tkhd.data) >= 8 {
		// Width and height are the last two 16.16 fixed point fields.
		wh := tkhd.data[len(tkhd.data)-8:]
		t.width = int(binary.BigEndian.Uint32(wh) >> 16)
		t.height = int(binary.BigEndian.Uint32(wh[4:]) >> 16)
	}
	if edts, ok := first(tb, "edts"); ok {
		eb, err := children(edts)
		if err != nil {
			return nil, bad("reading edts box", err)
		}
		if elst, ok := first(eb, "elst"); ok {
			_, flags, _, err := fullBox(elst)
			if err != nil {
				return nil, bad("reading elst box", err)
			}
			t.repeat = flags&elstRepeat != 0
		}
	}

	minf, ok := first(mb, "minf")
	if !ok {
		return nil, bad("mdia without minf box", nil)
	}
	nb, err := children(minf)
	if err != nil {
		return nil, bad("reading minf box", err)
	}
	stbl, ok := first(nb, "stbl")
	if !ok {
		return nil, bad("minf without stbl box", nil)
	}
	if err := b.parseSampleTable(t, stbl); err != nil {
		return nil, err
	}

	if t.width == 0 || t.height == 0 {
		t.width, t.height = t.entry.Width, t.entry.Height
	}
	if t.width <= 0 || t.height <= 0 {
		return nil, bad(fmt.Sprintf("invalid track size %dx%d", t.width, t.height), nil)
	}
	if err := b.limits.CheckCanvas(t.width, t.height); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *heifBackend) parseSampleTable(t *track, stbl box) error {
	bad := func(reason string, err error) error {
		return malformed(codec.FormatHEIF, -1, reason, err)
	}

	sb, err := children(stbl)
	if err != nil {
		return bad("reading stbl box", err)
	}
	for _, name := range []string{"stsd", "stts", "stsz", "stsc"} {
		if _, ok := first(sb, name); !ok {
			return bad(fmt.Sprintf("stbl without %s box", name), nil)
		}
	}

	// Sample description: the first entry is used for every sample.
	stsd, _ := first(sb, "stsd")
	_, _, p, err := fullBox(stsd)
	if err != nil || len(p) < 4 {
		return bad("reading stsd box", err)
	}
	entry, err := newBoxReader(box{data: p[4:], offset: stsd.offset + 8}).next()
	if err != nil {
		return bad("reading sample entry", err)
	}
	// Visual sample entry: 8 bytes of SampleEntry, 16 bytes of predefined
	// and reserved fields, then width and height.
	if len(entry.data) < 28 {
		return bad(fmt.Sprintf("short %q sample entry", entry.typ), nil)
	}
	t.entry = SampleEntry{
		Type:   entry.typ,
		Width:  int(binary.BigEndian.Uint16(entry.data[24:])),
		Height: int(binary.BigEndian.Uint16(entry.data[26:])),
		Data:   entry.data,
	}

	// Sample sizes.
	stsz, _ := first(sb, "stsz")
	_, _, p, err = fullBox(stsz)
	if err != nil {
		return bad("reading stsz box", err)
	}
	tr := &tableReader{buf: p}
	fixedSize := tr.u32()
	n := int(tr.u32())
	if tr.err != nil {
		return bad("reading stsz box", tr.err)
	}
	if n == 0 {
		return bad("track has no samples", nil)
	}
	if err := b.limits.CheckFrames(n); err != nil {
		return err
	}
	if fixedSize == 0 && uint64(n)*4 > uint64(len(tr.buf)) {
		return bad(fmt.Sprintf("stsz box too short for %d samples", n), nil)
	}
	samples := make([]sample, n)
	for i := range samples {
		if fixedSize != 0 {
			samples[i].size = fixedSize
		} else {
			samples[i].size = tr.u32()
		}
	}

	// Durations.
	stts, _ := first(sb, "stts")
	_, _, p, err = fullBox(stts)
	if err != nil {
		return bad("reading stts box", err)
	}
	tr = &tableReader{buf: p}
	i := 0
	for k := tr.count(8); k > 0; k-- {
		count, delta := tr.u32(), tr.u32()
		d := time.Duration(uint64(delta) * uint64(time.Second) / uint64(t.timescale))
		for ; count > 0 && i < n; count-- {
			samples[i].duration = d
			i++
		}
	}
	if tr.err != nil {
		return bad("reading stts box", tr.err)
	}
	if i != n {
		return bad(fmt.Sprintf("stts box covers %d of %d samples", i, n), nil)
	}

	// Chunk offsets.
	var offsets []uint64
	if stco, ok := first(sb, "stco"); ok {
		_, _, p, err := fullBox(stco)
		if err != nil {
			return bad("reading stco box", err)
		}
		tr := &tableReader{buf: p}
		for c := tr.count(4); c > 0; c-- {
			offsets = append(offsets, uint64(tr.u32()))
		}
		if tr.err != nil {
			return bad("reading stco box", tr.err)
		}
	} else if co64, ok := first(sb, "co64"); ok {
		_, _, p, err := fullBox(co64)
		if err != nil {
			return bad("reading co64 box", err)
		}
		tr := &tableReader{buf: p}
		for c := tr.count(8); c > 0; c-- {
			offsets = append(offsets, tr.u64())
		}
		if tr.err != nil {
			return bad("reading co64 box", tr.err)
		}
	} else {
		return bad("stbl without stco or co64 box", nil)
	}

	// Sample to chunk mapping.
	stsc, _ := first(sb, "stsc")
	_, _, p, err = fullBox(stsc)
	if err != nil {
		return bad("reading stsc box", err)
	}
	tr = &tableReader{buf: p}
	type run struct{ firstChunk, perChunk uint32 }
	var runs []run
	for c := tr.count(12); c > 0; c-- {
		firstChunk, perChunk := tr.u32(), tr.u32()
		tr.skip(4)
		runs = append(runs, run{firstChunk, perChunk})
	}
	if tr.err != nil {
		return bad("reading stsc box", tr.err)
	}
	if len(runs) == 0 || runs[0].firstChunk != 1 {
		return bad("stsc box does not start at chunk 1", nil)
	}

	end := uint64(len(b.data))
	s := 0
	for ri, ru := range runs {
		last := uint32(len(offsets))
		if ri+1 < len(runs) {
			last = runs[ri+1].firstChunk - 1
		}
		if ru.firstChunk == 0 || last > uint32(len(offsets)) || ru.firstChunk > last+1 {
			return bad("stsc box references missing chunks", nil)
		}
		for c := ru.firstChunk; c <= last && s < n; c++ {
			off := offsets[c-1]
			for k := uint32(0); k < ru.perChunk && s < n; k++ {
				size := uint64(samples[s].size)
				if off > end || size > end-off {
					return malformed(codec.FormatHEIF, s, fmt.Sprintf("sample data at offset %d, size %d beyond end of file", off, size), nil)
				}
				samples[s].offset = off
				off += size
				s++
			}
		}
	}
	if s != n {
		return bad(fmt.Sprintf("chunks hold %d of %d samples", s, n), nil)
	}
	t.samples = samples
	return nil
}

func first(m map[string][]box, typ string) (box, bool) {
	if boxes := m[typ]; len(boxes) > 0 {
		return boxes[0], true
	}
	return box{}, false
}

func (b *heifBackend) NextFrame() (*frame.Delta, error) {
	if b.decoder == nil {
		return nil, fmt.Errorf("platform: heif backend not opened")
	}
	i := b.next
	if i >= len(b.samples) {
		return nil, io.EOF
	}
	b.next++

	smp := b.samples[i]
	img, err := b.decoder.DecodeSample(b.data[smp.offset : smp.offset+uint64(smp.size)])
	if err != nil {
		return nil, malformed(codec.FormatHEIF, i, "decoding sample", err)
	}
	if got := img.Bounds(); got.Dx() != b.width || got.Dy() != b.height {
		return nil, malformed(codec.FormatHEIF, i, fmt.Sprintf("sample size %dx%d does not match track size %dx%d", got.Dx(), got.Dy(), b.width, b.height), nil)
	}

	return &frame.Delta{
		Rect:     image.Rect(0, 0, b.width, b.height),
		Patch:    toNRGBA(img),
		Dispose:  frame.DisposeNone,
		Blend:    frame.BlendSource,
		Duration: smp.duration,
		Final:    i == len(b.samples)-1,
	}, nil
}

func (b *heifBackend) Close() error {
	b.data = nil
	b.samples = nil
	b.decoder = nil
	return nil
}
