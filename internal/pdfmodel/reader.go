package pdfmodel

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdferrors"
)

// Reader holds a fully-indexed PDF document: the original bytes, its
// cross-reference table, trailer, and a cache of resolved objects. It
// operates over an in-memory byte buffer rather than an io.ReadSeeker so
// that incremental writes can later append to Data without re-opening a
// file handle.
type Reader struct {
	Path     string
	Data     []byte
	Version  string
	XRef     *XRefTable
	Trailer  *Dictionary
	Catalog  *Dictionary
	cache    map[ObjectID]Object
	security *securityContext
}

// Open reads path into memory and builds the object index. passphrase is
// used only if the document's trailer names an /Encrypt dictionary; pass ""
// for unencrypted documents.
func Open(path, passphrase string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindIoFailure, err).WithContext(path)
	}
	return OpenBytes(path, data, passphrase)
}

// OpenBytes builds a Reader from an already-loaded buffer, attributing Path
// for diagnostics only.
func OpenBytes(path string, data []byte, passphrase string) (*Reader, error) {
	version, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	startXRef, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		Path:    path,
		Data:    data,
		Version: version,
		XRef:    NewXRefTable(),
		cache:   make(map[ObjectID]Object),
	}

	if err := r.loadXRefChain(startXRef); err != nil {
		return nil, err
	}
	if r.Trailer == nil {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "no trailer found")
	}

	if r.Trailer.Has("Encrypt") {
		sec, err := newSecurityContext(r, passphrase)
		if err != nil {
			return nil, err
		}
		r.security = sec
	}

	root := r.Trailer.Get("Root")
	catalog, err := r.resolveToDictionary(root)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindPdfInvalid, err).WithContext("resolving /Root")
	}
	if catalog.GetName("Type") != "Catalog" {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "root object is not a Catalog")
	}
	r.Catalog = catalog

	return r, nil
}

// findStartXRef scans the final 2048 bytes of the file for the trailing
// "startxref\n<offset>\n%%EOF" marker.
func findStartXRef(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
		data = tail
	}
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, pdferrors.New(pdferrors.KindPdfInvalid, "missing startxref")
	}
	lex := newLexer(data, int64(idx+len("startxref")))
	tok, err := lex.next()
	if err != nil || tok.kind != tokNumber {
		return 0, pdferrors.New(pdferrors.KindPdfInvalid, "malformed startxref offset")
	}
	off, err := strconv.ParseInt(tok.value, 10, 64)
	if err != nil {
		return 0, pdferrors.Wrap(pdferrors.KindPdfInvalid, err)
	}
	return off, nil
}

// loadXRefChain walks the Prev chain of classic xref tables and/or
// cross-reference streams, merging entries so earlier (more recent)
// sections take precedence, matching incremental-update semantics.
func (r *Reader) loadXRefChain(offset int64) error {
	seen := map[int64]bool{}
	for offset != 0 {
		if seen[offset] {
			break // Prev cycle; tolerate and stop rather than loop forever.
		}
		seen[offset] = true

		lex := newLexer(r.Data, offset)
		save := lex.pos
		tok, err := lex.next()
		if err != nil {
			return pdferrors.New(pdferrors.KindPdfInvalid, "bad xref offset").WithContext(fmt.Sprintf("%d", offset))
		}

		var trailer *Dictionary
		if tok.kind == tokKeyword && tok.value == "xref" {
			trailer, err = r.parseClassicXRefSection(lex)
		} else {
			lex.pos = save
			trailer, err = r.parseXRefStreamSection(offset)
		}
		if err != nil {
			return err
		}

		if r.Trailer == nil {
			r.Trailer = trailer
		} else {
			r.mergeTrailerDefaults(trailer)
		}

		offset = 0
		if trailer.Has("Prev") {
			offset = trailer.GetInt("Prev")
		}
		if trailer.Has("XRefStm") {
			// Hybrid-reference file: also merge the xref stream section
			// referenced by the classic table, before following Prev.
			if err := r.mergeXRefStream(trailer.GetInt("XRefStm")); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reader) mergeTrailerDefaults(t *Dictionary) {
	for _, k := range t.Keys {
		if !r.Trailer.Has(k) {
			r.Trailer.Set(k, t.Values[k])
		}
	}
}

func (r *Reader) mergeXRefStream(offset int64) error {
	_, err := r.parseXRefStreamSection(offset)
	return err
}

// parseClassicXRefSection parses one "xref ... trailer <<...>>" section
// starting just after the "xref" keyword has been consumed.
func (r *Reader) parseClassicXRefSection(lex *lexer) (*Dictionary, error) {
	for {
		save := lex.pos
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokKeyword && tok.value == "trailer" {
			break
		}
		if tok.kind != tokNumber {
			lex.pos = save
			break
		}
		startNum, _ := strconv.ParseInt(tok.value, 10, 64)

		countTok, err := lex.next()
		if err != nil || countTok.kind != tokNumber {
			return nil, pdferrors.New(pdferrors.KindPdfInvalid, "malformed xref subsection header")
		}
		count, _ := strconv.ParseInt(countTok.value, 10, 64)

		lex.skipWhitespaceAndComments()
		for i := int64(0); i < count; i++ {
			if lex.pos+20 > int64(len(lex.data)) {
				return nil, pdferrors.New(pdferrors.KindPdfInvalid, "truncated xref entry")
			}
			line := string(lex.data[lex.pos : lex.pos+20])
			lex.pos += 20
			offStr := line[0:10]
			genStr := line[11:16]
			kind := line[17:18]

			off, _ := strconv.ParseInt(offStr, 10, 64)
			gen, _ := strconv.ParseInt(genStr, 10, 64)
			num := startNum + i
			entry := &XRefEntry{ID: ObjectID{Number: num, Generation: gen}, Offset: off, Kind: XRefNormal}
			entry.InUse = kind == "n"
			if !entry.InUse {
				entry.Kind = XRefFree
			}
			if r.XRef.Get(num) == nil {
				r.XRef.Add(entry)
			}
		}
	}

	dictTok, err := lex.next()
	if err != nil || dictTok.kind != tokDictStart {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "expected trailer dictionary")
	}
	op := &objParser{lex: lex}
	obj, err := op.parseDictionary()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*Dictionary)
	if !ok {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "trailer is not a dictionary")
	}
	return dict, nil
}

// parseXRefStreamSection handles PDF 1.5+ cross-reference streams: the
// object at offset is itself a Stream whose dictionary doubles as the
// trailer and whose decoded body holds packed (type, field2, field3) rows
// per the /W widths and /Index ranges.
func (r *Reader) parseXRefStreamSection(offset int64) (*Dictionary, error) {
	op := newObjParser(r.Data, offset)
	_, obj, err := op.parseIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "expected xref stream object")
	}

	decoded, err := decodeStream(stream)
	if err != nil {
		return nil, err
	}

	widths := stream.Dict.GetArray("W")
	if widths.Len() != 3 {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "xref stream missing /W")
	}
	w := [3]int{int(widths.Get(0).(*Number).Int()), int(widths.Get(1).(*Number).Int()), int(widths.Get(2).(*Number).Int())}
	rowLen := w[0] + w[1] + w[2]

	index := stream.Dict.GetArray("Index")
	var pairs [][2]int64
	if index.Len() == 0 {
		pairs = [][2]int64{{0, stream.Dict.GetInt("Size")}}
	} else {
		for i := 0; i+1 < index.Len(); i += 2 {
			pairs = append(pairs, [2]int64{index.Get(i).(*Number).Int(), index.Get(i + 1).(*Number).Int()})
		}
	}

	pos := 0
	for _, pr := range pairs {
		start, count := pr[0], pr[1]
		for i := int64(0); i < count; i++ {
			if pos+rowLen > len(decoded) {
				break
			}
			row := decoded[pos : pos+rowLen]
			pos += rowLen
			fields := unpackXRefRow(row, w)
			num := start + i
			if r.XRef.Get(num) != nil {
				continue
			}
			entry := &XRefEntry{ID: ObjectID{Number: num}}
			switch fields[0] {
			case 0:
				entry.Kind = XRefFree
				entry.InUse = false
			case 1:
				entry.Kind = XRefNormal
				entry.InUse = true
				entry.Offset = fields[1]
				entry.ID.Generation = fields[2]
			case 2:
				entry.Kind = XRefCompressed
				entry.InUse = true
				entry.StreamNum = fields[1]
				entry.StreamIdx = fields[2]
			}
			r.XRef.Add(entry)
		}
	}

	return stream.Dict, nil
}

func unpackXRefRow(row []byte, w [3]int) [3]int64 {
	var out [3]int64
	idx := 0
	for i, width := range w {
		var v int64
		for j := 0; j < width; j++ {
			v = v<<8 | int64(row[idx])
			idx++
		}
		out[i] = v
	}
	return out
}

// Resolve follows an indirect reference to its concrete object, using the
// cache first and falling back to the xref table.
func (r *Reader) Resolve(obj Object) (Object, error) {
	ref, ok := obj.(*IndirectRef)
	if !ok {
		return obj, nil
	}
	if cached, ok := r.cache[ref.ID]; ok {
		return cached, nil
	}

	entry := r.XRef.Get(ref.ID.Number)
	if entry == nil || !entry.InUse {
		return nil, pdferrors.New(pdferrors.KindDanglingRef, "indirect reference has no xref entry").
			WithObject(ref.ID.Number, ref.ID.Generation)
	}

	var resolved Object
	var err error
	switch entry.Kind {
	case XRefCompressed:
		resolved, err = r.resolveFromObjectStream(entry)
	default:
		op := newObjParser(r.Data, entry.Offset)
		_, resolved, err = op.parseIndirectObject()
	}
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindPdfInvalid, err).WithObject(ref.ID.Number, ref.ID.Generation)
	}

	if stream, ok := resolved.(*Stream); ok && r.security != nil {
		resolved = &Stream{Dict: stream.Dict, Data: r.security.decrypt(ref.ID, stream.Data), Offset: stream.Offset}
	} else if s, ok := resolved.(*String); ok && r.security != nil {
		resolved = &String{Value: string(r.security.decrypt(ref.ID, []byte(s.Value))), IsHex: s.IsHex}
	}

	r.cache[ref.ID] = resolved
	return resolved, nil
}

func (r *Reader) resolveFromObjectStream(entry *XRefEntry) (Object, error) {
	containerRef := &IndirectRef{ID: ObjectID{Number: entry.StreamNum}}
	containerObj, err := r.Resolve(containerRef)
	if err != nil {
		return nil, err
	}
	container, ok := containerObj.(*Stream)
	if !ok {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "object stream container is not a stream")
	}
	decoded, err := decodeStream(container)
	if err != nil {
		return nil, err
	}

	n := container.Dict.GetInt("N")
	first := container.Dict.GetInt("First")
	headerParser := newObjParser(decoded, 0)
	type headEntry struct{ num, off int64 }
	var heads []headEntry
	for i := int64(0); i < n; i++ {
		numTok, err := headerParser.lex.next()
		if err != nil || numTok.kind != tokNumber {
			return nil, pdferrors.New(pdferrors.KindPdfInvalid, "malformed object stream header")
		}
		offTok, err := headerParser.lex.next()
		if err != nil || offTok.kind != tokNumber {
			return nil, pdferrors.New(pdferrors.KindPdfInvalid, "malformed object stream header")
		}
		num, _ := strconv.ParseInt(numTok.value, 10, 64)
		off, _ := strconv.ParseInt(offTok.value, 10, 64)
		heads = append(heads, headEntry{num, off})
	}
	if entry.StreamIdx >= int64(len(heads)) {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "object stream index out of range")
	}
	target := heads[entry.StreamIdx]
	bodyParser := newObjParser(decoded, first+target.off)
	return bodyParser.parseObject()
}

func (r *Reader) resolveToDictionary(obj Object) (*Dictionary, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch v := resolved.(type) {
	case *Dictionary:
		return v, nil
	case *Stream:
		return v.Dict, nil
	default:
		return nil, fmt.Errorf("expected dictionary, got %s", resolved.Type())
	}
}

// decodeStream applies the stream's /Filter chain, covering FlateDecode via
// stdlib compress/zlib and delegating anything else (ASCIIHex, ASCII85,
// RunLength, LZW) to pdfcpu's filter package rather than reimplementing
// them, per DESIGN.md.
func decodeStream(s *Stream) ([]byte, error) {
	data := s.Data
	for _, f := range s.Filters() {
		var err error
		switch f {
		case "FlateDecode", "Fl":
			data, err = inflate(data)
		case "":
			// no-op
		default:
			data, err = decodeWithPdfcpu(f, data, s.Dict)
		}
		if err != nil {
			return nil, pdferrors.Wrap(pdferrors.KindUnsupportedFilter, err).WithContext(f)
		}
	}
	return data, nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
