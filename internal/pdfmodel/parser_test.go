package pdfmodel

import "testing"

func parseString(t *testing.T, src string) Object {
	t.Helper()
	p := newObjParser([]byte(src), 0)
	obj, err := p.parseObject()
	if err != nil {
		t.Fatalf("parseObject(%q) = %v", src, err)
	}
	return obj
}

func TestParseObjectNumberVsIndirectRef(t *testing.T) {
	if n, ok := parseString(t, "42").(*Number); !ok || n.Int() != 42 {
		t.Errorf("parseObject(42) = %#v, want a plain Number", n)
	}

	ref, ok := parseString(t, "3 0 R").(*IndirectRef)
	if !ok {
		t.Fatalf("parseObject(3 0 R) = %T, want *IndirectRef", ref)
	}
	if ref.ID.Number != 3 || ref.ID.Generation != 0 {
		t.Errorf("ID = %+v, want {3 0}", ref.ID)
	}

	// Two bare numbers with no trailing "R" must not be mistaken for a ref;
	// the lookahead should rewind and leave the second number unconsumed.
	p := newObjParser([]byte("5 6"), 0)
	first, err := p.parseObject()
	if err != nil {
		t.Fatalf("parseObject(5 6) first = %v", err)
	}
	if _, ok := first.(*Number); !ok {
		t.Fatalf("first = %T, want *Number", first)
	}
	second, err := p.parseObject()
	if err != nil {
		t.Fatalf("parseObject(5 6) second = %v", err)
	}
	if n, ok := second.(*Number); !ok || n.Int() != 6 {
		t.Errorf("second = %#v, want the unconsumed Number 6", second)
	}
}

func TestParseObjectRealNumber(t *testing.T) {
	n, ok := parseString(t, "3.14").(*Number)
	if !ok {
		t.Fatalf("parseObject(3.14) = %T, want *Number", n)
	}
	if n.Float() != 3.14 {
		t.Errorf("Float() = %v, want 3.14", n.Float())
	}
}

func TestParseObjectNameWithHexEscape(t *testing.T) {
	name, ok := parseString(t, "/A#20B").(*Name)
	if !ok {
		t.Fatalf("parseObject(/A#20B) = %T, want *Name", name)
	}
	if name.Value != "A B" {
		t.Errorf("Value = %q, want %q", name.Value, "A B")
	}
}

func TestParseObjectLiteralStringWithEscapes(t *testing.T) {
	s, ok := parseString(t, `(line1\nline2\(nested\))`).(*String)
	if !ok {
		t.Fatalf("parseObject(literal string) = %T, want *String", s)
	}
	want := "line1\nline2(nested)"
	if s.Value != want {
		t.Errorf("Value = %q, want %q", s.Value, want)
	}
}

func TestParseObjectHexString(t *testing.T) {
	s, ok := parseString(t, "<48656C6C6F>").(*String)
	if !ok {
		t.Fatalf("parseObject(hex string) = %T, want *String", s)
	}
	if !s.IsHex {
		t.Error("IsHex should be true for a hex string")
	}
	if s.Value != "Hello" {
		t.Errorf("Value = %q, want %q", s.Value, "Hello")
	}
}

func TestParseObjectArrayOfMixedTypes(t *testing.T) {
	arr, ok := parseString(t, "[1 2 0 R /Foo]").(*Array)
	if !ok {
		t.Fatalf("parseObject(array) = %T, want *Array", arr)
	}
	if arr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", arr.Len())
	}
	if n, ok := arr.Get(0).(*Number); !ok || n.Int() != 1 {
		t.Errorf("Get(0) = %#v, want Number 1", arr.Get(0))
	}
	if ref, ok := arr.Get(1).(*IndirectRef); !ok || ref.ID.Number != 2 {
		t.Errorf("Get(1) = %#v, want IndirectRef to object 2", arr.Get(1))
	}
	if name, ok := arr.Get(2).(*Name); !ok || name.Value != "Foo" {
		t.Errorf("Get(2) = %#v, want Name Foo", arr.Get(2))
	}
}

func TestParseObjectNestedDictionary(t *testing.T) {
	dict, ok := parseString(t, "<< /Type /Page /Resources << /Font /F1 >> >>").(*Dictionary)
	if !ok {
		t.Fatalf("parseObject(dict) = %T, want *Dictionary", dict)
	}
	if dict.GetName("Type") != "Page" {
		t.Errorf("Type = %q, want Page", dict.GetName("Type"))
	}
	res, ok := dict.Get("Resources").(*Dictionary)
	if !ok {
		t.Fatalf("Resources = %T, want *Dictionary", dict.Get("Resources"))
	}
	if res.GetName("Font") != "F1" {
		t.Errorf("Resources/Font = %q, want F1", res.GetName("Font"))
	}
}

func TestParseObjectDictionaryWithStream(t *testing.T) {
	src := "<< /Length 5 >>\nstream\nhello\nendstream"
	s, ok := parseString(t, src).(*Stream)
	if !ok {
		t.Fatalf("parseObject(stream) = %T, want *Stream", s)
	}
	if string(s.Data) != "hello" {
		t.Errorf("Data = %q, want %q", s.Data, "hello")
	}
}

func TestParseIndirectObjectRoundTrip(t *testing.T) {
	p := newObjParser([]byte("7 0 obj\n<< /Type /Catalog >>\nendobj"), 0)
	id, obj, err := p.parseIndirectObject()
	if err != nil {
		t.Fatalf("parseIndirectObject() = %v", err)
	}
	if id.Number != 7 || id.Generation != 0 {
		t.Errorf("ID = %+v, want {7 0}", id)
	}
	dict, ok := obj.(*Dictionary)
	if !ok {
		t.Fatalf("obj = %T, want *Dictionary", obj)
	}
	if dict.GetName("Type") != "Catalog" {
		t.Errorf("Type = %q, want Catalog", dict.GetName("Type"))
	}
}

func TestLexerTokenizesDelimitersAndKeywords(t *testing.T) {
	l := newLexer([]byte("true false null obj"), 0)
	wantKinds := []tokenType{tokKeyword, tokKeyword, tokKeyword, tokKeyword, tokEOF}
	wantValues := []string{"true", "false", "null", "obj", ""}
	for i, wantKind := range wantKinds {
		tok, err := l.next()
		if err != nil {
			t.Fatalf("next() #%d = %v", i, err)
		}
		if tok.kind != wantKind {
			t.Errorf("token #%d kind = %v, want %v", i, tok.kind, wantKind)
		}
		if tok.value != wantValues[i] {
			t.Errorf("token #%d value = %q, want %q", i, tok.value, wantValues[i])
		}
	}
}

func TestLexerSkipsComments(t *testing.T) {
	l := newLexer([]byte("% a comment\n/Name"), 0)
	tok, err := l.next()
	if err != nil {
		t.Fatalf("next() = %v", err)
	}
	if tok.kind != tokName || tok.value != "Name" {
		t.Errorf("token = %+v, want Name token with value %q", tok, "Name")
	}
}

func TestParseHeaderReadsVersion(t *testing.T) {
	version, err := parseHeader([]byte("%PDF-1.7\n1 0 obj"))
	if err != nil {
		t.Fatalf("parseHeader() = %v", err)
	}
	if version != "1.7" {
		t.Errorf("version = %q, want 1.7", version)
	}
}

func TestParseHeaderMissingBannerFails(t *testing.T) {
	if _, err := parseHeader([]byte("not a pdf at all")); err == nil {
		t.Fatal("parseHeader() without a %PDF- banner should fail")
	}
}
