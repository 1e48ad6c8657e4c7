package ldapconn_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ldapwire/ldapconn"
)

func getBooleanSimple(data []byte, shouldbe bool) bool {
	b, err := ldapconn.BerGetBoolean(data)
	if err != nil {
		return !shouldbe
	}
	return b
}

func getIntegerSimple(data []byte, shouldbe int64) int64 {
	i, err := ldapconn.BerGetInteger(data)
	if err != nil {
		return shouldbe - 1
	}
	return i
}

func slicesEqual[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i, ai := range a {
		if ai != b[i] {
			return false
		}
	}
	return true
}

func TestBerTypes(t *testing.T) {
	if ldapconn.BerType(0b00000000).Class() != ldapconn.BerClassUniversal {
		t.Fatal("invalid BER type reported")
	}
	if ldapconn.BerType(0b01000000).Class() != ldapconn.BerClassApplication {
		t.Fatal("invalid BER type reported")
	}
	if ldapconn.BerType(0b10000000).Class() != ldapconn.BerClassContextSpecific {
		t.Fatal("invalid BER type reported")
	}
	if ldapconn.BerType(0b11000000).Class() != ldapconn.BerClassPrivate {
		t.Fatal("invalid BER type reported")
	}
	if ldapconn.BerType(0b00100000).IsPrimitive() {
		t.Fatal("invalid primitive flag reported")
	}
	if !ldapconn.BerType(0b00000000).IsPrimitive() {
		t.Fatal("invalid primitive flag reported")
	}
	if ldapconn.BerType(0b00000000).IsConstructed() {
		t.Fatal("invalid constructed flag reported")
	}
	if !ldapconn.BerType(0b00100000).IsConstructed() {
		t.Fatal("invalid constructed flag reported")
	}
	if ldapconn.BerType(0b11111111).TagNumber() != 0b00011111 {
		t.Fatal("invalid tag number reported")
	}
}

func TestBerSizes(t *testing.T) {
	type sizetest struct {
		size uint32
		err  error
		repr []byte
	}
	for _, st := range []sizetest{
		{0x0, nil, []byte{0x00}},
		{0x1, nil, []byte{0x01}},
		{0x7f, nil, []byte{0x7f}},
		{0x80, nil, []byte{0x81, 0x80}},
		{0xff, nil, []byte{0x82, 0x00, 0xff}},
		{0xff00ff00, nil, []byte{0x84, 0xff, 0x00, 0xff, 0x00}},
		{0, ldapconn.ErrMalformedBER, []byte{0x80}},
		{0, ldapconn.ErrIntegerTooLarge, []byte{0x85, 0x00, 0x00, 0x00, 0x00, 0x00}},
	} {
		size, err := ldapconn.BerReadSize(bytes.NewReader(st.repr))
		if size != st.size {
			t.Fatal("invalid size read")
		}
		if !errors.Is(err, st.err) {
			t.Fatal("Expected error", st.err, ", got error", err)
		}
	}
}

func TestBerReadElement(t *testing.T) {
	type elementTest struct {
		res  ldapconn.BerRawElement
		repr []byte
		err  error
	}
	for _, et := range []elementTest{
		{ldapconn.BerRawElement{Type: ldapconn.BerTypeNull, Data: []byte{}}, []byte{0x05, 0x00}, nil},
		{ldapconn.BerRawElement{Type: ldapconn.TypeUnbindRequestOp, Data: []byte{}}, []byte{0x42, 0x00}, nil},
		{ldapconn.BerRawElement{Type: ldapconn.BerTypeBoolean, Data: []byte{0x00}}, []byte{0x01, 0x01, 0x00}, nil},
		{ldapconn.BerRawElement{Type: ldapconn.BerTypeOctetString, Data: []byte("Hello!")}, []byte{0x04, 0x06, 0x48, 0x65, 0x6c, 0x6c, 0x6f, 0x21}, nil},
	} {
		elmt, err := ldapconn.BerReadElement(bytes.NewReader(et.repr))
		if elmt.Type != et.res.Type {
			t.Fatal("invalid type read")
		}
		if !bytes.Equal(elmt.Data, et.res.Data) {
			t.Fatal("invalid data read")
		}
		if err != et.err {
			t.Fatal("Expected error", et.err, ", got error", err)
		}
	}
}

func TestBerBoolean(t *testing.T) {
	if getBooleanSimple([]byte{0x00}, false) {
		t.Fatal("invalid boolean read")
	}
	if !getBooleanSimple([]byte{0xff}, true) {
		t.Fatal("invalid boolean read")
	}
}

func TestBerInteger(t *testing.T) {
	get := func(data []byte) int64 {
		res, err := ldapconn.BerGetInteger(data)
		if err != nil {
			t.Fatal("Error reading integer:", err.Error())
		}
		return res
	}
	if get([]byte{0x00}) != 0 {
		t.Fatal("invalid integer read")
	}
	if get([]byte{0x00, 0xc3, 0x50}) != 50000 {
		t.Fatal("invalid integer read")
	}
	if get([]byte{0xcf, 0xc7}) != -12345 {
		t.Fatal("invalid integer read")
	}
	_, err := ldapconn.BerGetInteger([]byte{0x12, 0x34, 0x56, 0x67, 0x89, 0xab, 0xcd, 0xef, 0x00})
	if !errors.Is(err, ldapconn.ErrIntegerTooLarge) {
		t.Fatal("Expected error", ldapconn.ErrIntegerTooLarge, ", got error", err)
	}
}

func TestBerOctetString(t *testing.T) {
	if ldapconn.BerGetOctetString([]byte{}) != "" {
		t.Fatal("invalid octet string read")
	}
	if ldapconn.BerGetOctetString([]byte("This is a test!")) != "This is a test!" {
		t.Fatal("invalid octet string read")
	}
}

func TestBerSequence(t *testing.T) {
	seq, err := ldapconn.BerGetSequence(
		[]byte{0x04, 0x06, 0x48, 0x65, 0x6c, 0x6c, 0x6f, 0x21, 0x01, 0x01, 0xff, 0x02, 0x01, 0x05})
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 3 {
		t.Fatal("wrong length of sequence", len(seq))
	}
	if seq[0].Type != ldapconn.BerTypeOctetString || ldapconn.BerGetOctetString(seq[0].Data) != "Hello!" {
		t.Fatal("wrong first item of sequence", seq[0])
	}
	if seq[1].Type != ldapconn.BerTypeBoolean || !getBooleanSimple(seq[1].Data, true) {
		t.Fatal("wrong second item of sequence", seq[1])
	}
	if seq[2].Type != ldapconn.BerTypeInteger || getIntegerSimple(seq[2].Data, 5) != 5 {
		t.Fatal("wrong third item of sequence", seq[2])
	}
}

func TestBerEncodeRoundTrip(t *testing.T) {
	enc := ldapconn.BerEncodeSequence(append(
		ldapconn.BerEncodeOctetString("Hello!"),
		append(ldapconn.BerEncodeBoolean(true), ldapconn.BerEncodeInteger(5)...)...,
	))
	elmt, err := ldapconn.BerReadElement(bytes.NewReader(enc))
	if err != nil {
		t.Fatal(err)
	}
	if elmt.Type != ldapconn.BerTypeSequence {
		t.Fatal("wrong element type")
	}
	seq, err := ldapconn.BerGetSequence(elmt.Data)
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 3 {
		t.Fatal("wrong sequence length")
	}
}

func TestBerEncodeLargeElement(t *testing.T) {
	// Exercises the long-form length branches in BerEncodeElement.
	for _, size := range []int{0x7f, 0x80, 0xffff + 1} {
		data := bytes.Repeat([]byte{0x41}, size)
		enc := ldapconn.BerEncodeOctetString(string(data))
		elmt, err := ldapconn.BerReadElement(bytes.NewReader(enc))
		if err != nil {
			t.Fatal(err)
		}
		if len(elmt.Data) != size {
			t.Fatal("wrong decoded size", len(elmt.Data), "want", size)
		}
	}
}
