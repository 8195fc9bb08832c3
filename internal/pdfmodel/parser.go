package pdfmodel

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdferrors"
)

const headerPattern = "%PDF-"

// objParser turns a lexer's token stream into typed Objects via a
// straightforward recursive-descent walk over the PDF object grammar.
type objParser struct {
	lex *lexer
}

func newObjParser(data []byte, pos int64) *objParser {
	return &objParser{lex: newLexer(data, pos)}
}

// parseIndirectObject parses "N G obj ... endobj" starting at the parser's
// current position and returns the object id and value.
func (p *objParser) parseIndirectObject() (ObjectID, Object, error) {
	numTok, err := p.lex.next()
	if err != nil || numTok.kind != tokNumber {
		return ObjectID{}, nil, fmt.Errorf("expected object number at %d", p.lex.pos)
	}
	objNum, err := strconv.ParseInt(numTok.value, 10, 64)
	if err != nil {
		return ObjectID{}, nil, fmt.Errorf("invalid object number: %w", err)
	}

	genTok, err := p.lex.next()
	if err != nil || genTok.kind != tokNumber {
		return ObjectID{}, nil, fmt.Errorf("expected generation number at %d", p.lex.pos)
	}
	gen, _ := strconv.ParseInt(genTok.value, 10, 64)

	kwTok, err := p.lex.next()
	if err != nil || kwTok.kind != tokKeyword || kwTok.value != "obj" {
		return ObjectID{}, nil, fmt.Errorf("expected 'obj' keyword at %d", p.lex.pos)
	}

	obj, err := p.parseObject()
	if err != nil {
		return ObjectID{}, nil, fmt.Errorf("failed to parse object %d %d: %w", objNum, gen, err)
	}

	endTok, err := p.lex.next()
	if err != nil || endTok.kind != tokKeyword || endTok.value != "endobj" {
		// Be liberal: some producers omit whitespace/formatting oddities before endobj.
		// We already have the object value; trust it.
	}

	return ObjectID{Number: objNum, Generation: gen}, obj, nil
}

func (p *objParser) parseObject() (Object, error) {
	tok, err := p.lex.next()
	if err != nil {
		return nil, err
	}
	return p.fromToken(tok)
}

func (p *objParser) fromToken(tok token) (Object, error) {
	switch tok.kind {
	case tokKeyword:
		switch tok.value {
		case "null":
			return &Null{}, nil
		case "true":
			return &Bool{Value: true}, nil
		case "false":
			return &Bool{Value: false}, nil
		default:
			return &Null{}, nil
		}
	case tokNumber:
		return p.numberOrRef(tok)
	case tokString:
		return &String{Value: tok.value}, nil
	case tokHexString:
		return &String{Value: decodeHex(tok.value), IsHex: true}, nil
	case tokName:
		return &Name{Value: tok.value}, nil
	case tokArrayStart:
		return p.parseArray()
	case tokDictStart:
		return p.parseDictionary()
	case tokEOF:
		return &Null{}, nil
	default:
		return nil, fmt.Errorf("unexpected token at %d", tok.pos)
	}
}

func decodeHex(s string) string {
	s = strings.Map(func(r rune) rune {
		if isHexRune(r) {
			return r
		}
		return -1
	}, s)
	if len(s)%2 == 1 {
		s += "0"
	}
	out := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		if v, ok := hexPair(s[i], s[i+1]); ok {
			out = append(out, v)
		}
	}
	return string(out)
}

func isHexRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func (p *objParser) numberOrRef(numTok token) (Object, error) {
	num := parseNumberToken(numTok)

	save := p.lex.pos
	tok2, err := p.lex.next()
	if err == nil && tok2.kind == tokNumber {
		save2 := p.lex.pos
		tok3, err3 := p.lex.next()
		if err3 == nil && tok3.kind == tokRef {
			objNum := num.(*Number).Int()
			gen, _ := strconv.ParseInt(tok2.value, 10, 64)
			return &IndirectRef{ID: ObjectID{Number: objNum, Generation: gen}}, nil
		}
		p.lex.pos = save2
	}
	p.lex.pos = save
	return num, nil
}

func parseNumberToken(tok token) Object {
	if strings.ContainsAny(tok.value, ".") {
		v, _ := strconv.ParseFloat(tok.value, 64)
		return &Number{Value: v}
	}
	v, err := strconv.ParseInt(tok.value, 10, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(tok.value, 64)
		return &Number{Value: f}
	}
	return &Number{Value: v}
}

func (p *objParser) parseArray() (Object, error) {
	arr := &Array{}
	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokArrayEnd || tok.kind == tokEOF {
			break
		}
		obj, err := p.fromToken(tok)
		if err != nil {
			return nil, err
		}
		arr.Add(obj)
	}
	return arr, nil
}

func (p *objParser) parseDictionary() (Object, error) {
	dict := NewDictionary()
	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokDictEnd || tok.kind == tokEOF {
			break
		}
		if tok.kind != tokName {
			return nil, fmt.Errorf("expected name key at %d", tok.pos)
		}
		key := tok.value
		val, err := p.parseObject()
		if err != nil {
			return nil, fmt.Errorf("failed to parse value for /%s: %w", key, err)
		}
		dict.Set(key, val)
	}
	return p.checkForStream(dict)
}

// checkForStream looks ahead for the "stream" keyword immediately following
// a dictionary and, if present, reads Length raw bytes as the stream body.
func (p *objParser) checkForStream(dict *Dictionary) (Object, error) {
	save := p.lex.pos
	tok, err := p.lex.next()
	if err != nil || tok.kind != tokKeyword || tok.value != "stream" {
		p.lex.pos = save
		return dict, nil
	}

	pos := p.lex.pos
	data := p.lex.data
	// Skip the single EOL after "stream" per spec (CRLF or LF).
	if pos < int64(len(data)) && data[pos] == '\r' {
		pos++
	}
	if pos < int64(len(data)) && data[pos] == '\n' {
		pos++
	}

	length := int64(-1)
	if n, ok := dict.Get("Length").(*Number); ok {
		length = n.Int()
	}
	if length < 0 || pos+length > int64(len(data)) {
		// Fall back to scanning for "endstream" when Length is an indirect
		// ref we haven't resolved yet or is simply wrong.
		idx := bytes.Index(data[pos:], []byte("endstream"))
		if idx < 0 {
			return nil, pdferrors.New(pdferrors.KindPdfInvalid, "stream missing endstream").
				WithContext(fmt.Sprintf("offset %d", pos))
		}
		length = int64(idx)
		// Trim a single trailing EOL before "endstream".
		for length > 0 && (data[pos+length-1] == '\n' || data[pos+length-1] == '\r') {
			length--
		}
	}

	streamData := make([]byte, length)
	copy(streamData, data[pos:pos+length])
	p.lex.pos = pos + length

	// Consume up to and including "endstream".
	for {
		t, err := p.lex.next()
		if err != nil || t.kind == tokEOF {
			break
		}
		if t.kind == tokKeyword && t.value == "endstream" {
			break
		}
	}

	return &Stream{Dict: dict, Data: streamData, Offset: pos}, nil
}

// parseHeader reads the "%PDF-x.y" banner and returns the version string.
func parseHeader(data []byte) (string, error) {
	idx := bytes.Index(data, []byte(headerPattern))
	if idx < 0 || idx > 1024 {
		return "", pdferrors.New(pdferrors.KindPdfInvalid, "missing %PDF- header")
	}
	end := idx + len(headerPattern)
	lineEnd := end
	for lineEnd < len(data) && data[lineEnd] != '\n' && data[lineEnd] != '\r' {
		lineEnd++
	}
	version := strings.TrimSpace(string(data[end:lineEnd]))
	if version == "" {
		version = "1.4"
	}
	return version, nil
}
