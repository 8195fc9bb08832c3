package pdfmodel

import (
	"bytes"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
)

// decodeWithPdfcpu covers the stream filters the custom lexer/parser never
// needs to produce itself (ASCII85Decode, ASCIIHexDecode, LZWDecode,
// RunLengthDecode), reusing pdfcpu's filter package instead of
// reimplementing each one.
func decodeWithPdfcpu(name string, data []byte, parms *Dictionary) ([]byte, error) {
	f, err := filter.NewFilter(name, nil)
	if err != nil {
		return nil, err
	}
	r, err := f.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
