package pdfmodel

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"testing"
)

// buildMinimalPDF assembles a Catalog/Pages/Page document with a classic
// xref table, recording each object's offset as it's written rather than
// counting bytes by hand.
func buildMinimalPDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int64, 4)
	writeObj := func(num int, body string) {
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")

	xrefOffset := int64(buf.Len())
	buf.WriteString("xref\n0 4\n")
	fmt.Fprintf(&buf, "%010d %05d f\r\n", 0, 65535)
	for num := 1; num <= 3; num++ {
		fmt.Fprintf(&buf, "%010d %05d n\r\n", offsets[num], 0)
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)

	return buf.Bytes()
}

func TestOpenBytesParsesClassicXRefAndCatalog(t *testing.T) {
	data := buildMinimalPDF(t)

	r, err := OpenBytes("fixture.pdf", data, "")
	if err != nil {
		t.Fatalf("OpenBytes() = %v", err)
	}
	if r.Version != "1.4" {
		t.Errorf("Version = %q, want %q", r.Version, "1.4")
	}
	if r.Catalog.GetName("Type") != "Catalog" {
		t.Errorf("Catalog Type = %q, want Catalog", r.Catalog.GetName("Type"))
	}

	pages, err := r.Resolve(r.Catalog.Get("Pages"))
	if err != nil {
		t.Fatalf("Resolve(Pages) = %v", err)
	}
	dict, ok := pages.(*Dictionary)
	if !ok {
		t.Fatalf("Pages resolved to %T, want *Dictionary", pages)
	}
	if dict.GetInt("Count") != 1 {
		t.Errorf("Pages Count = %d, want 1", dict.GetInt("Count"))
	}
}

func TestResolveDanglingReferenceFails(t *testing.T) {
	data := buildMinimalPDF(t)
	r, err := OpenBytes("fixture.pdf", data, "")
	if err != nil {
		t.Fatalf("OpenBytes() = %v", err)
	}

	_, err = r.Resolve(&IndirectRef{ID: ObjectID{Number: 99}})
	if err == nil {
		t.Fatal("Resolve() of a nonexistent object should fail")
	}
}

func TestOpenBytesRejectsMissingStartXRef(t *testing.T) {
	data := []byte("%PDF-1.4\nnot a real pdf body")
	if _, err := OpenBytes("fixture.pdf", data, ""); err == nil {
		t.Fatal("OpenBytes() without a startxref marker should fail")
	}
}

func TestOpenBytesRejectsNonCatalogRoot(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	off := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Pages >>\nendobj\n")
	xrefOffset := int64(buf.Len())
	buf.WriteString("xref\n0 2\n")
	fmt.Fprintf(&buf, "%010d %05d f\r\n", 0, 65535)
	fmt.Fprintf(&buf, "%010d %05d n\r\n", off, 0)
	buf.WriteString("trailer\n<< /Size 2 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)

	if _, err := OpenBytes("fixture.pdf", buf.Bytes(), ""); err == nil {
		t.Fatal("OpenBytes() with a non-Catalog root should fail")
	}
}

func TestDecodeStreamInflatesFlateDecode(t *testing.T) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write([]byte("hello stream")); err != nil {
		t.Fatalf("zlib.Write() = %v", err)
	}
	zw.Close()

	dict := NewDictionary()
	dict.Set("Filter", &Name{Value: "FlateDecode"})
	s := &Stream{Dict: dict, Data: compressed.Bytes()}

	decoded, err := decodeStream(s)
	if err != nil {
		t.Fatalf("decodeStream() = %v", err)
	}
	if string(decoded) != "hello stream" {
		t.Errorf("decodeStream() = %q, want %q", decoded, "hello stream")
	}
}
