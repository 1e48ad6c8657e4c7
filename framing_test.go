package ldapconn

import "testing"

// buildFramingFixture returns the raw bytes of two back-to-back
// LDAPMessage envelopes (an unbind request with message ID 1, and
// another with ID 2), for exercising byte-boundary-agnostic framing.
func buildFramingFixture() []byte {
	msg1 := &Message{MessageID: 1, ProtocolOp: BerRawElement{Type: TypeUnbindRequestOp, Data: nil}}
	msg2 := &Message{MessageID: 2, ProtocolOp: BerRawElement{Type: TypeUnbindRequestOp, Data: nil}}
	return append(msg1.EncodeWithHeader(), msg2.EncodeWithHeader()...)
}

func TestFrameReaderWholeBuffer(t *testing.T) {
	fr := &frameReader{}
	elmts, err := fr.Feed(buildFramingFixture())
	if err != nil {
		t.Fatal(err)
	}
	if len(elmts) != 2 {
		t.Fatal("expected 2 elements, got", len(elmts))
	}
	if fr.Pending() {
		t.Fatal("expected no pending bytes")
	}
}

func TestFrameReaderByteAtATime(t *testing.T) {
	fixture := buildFramingFixture()
	fr := &frameReader{}
	var got []BerRawElement
	for i := range fixture {
		elmts, err := fr.Feed(fixture[i : i+1])
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, elmts...)
	}
	if len(got) != 2 {
		t.Fatal("expected 2 elements, got", len(got))
	}
	if fr.Pending() {
		t.Fatal("expected no pending bytes after full fixture fed")
	}
}

func TestFrameReaderArbitrarySplit(t *testing.T) {
	fixture := buildFramingFixture()
	// Split at a point guaranteed to land inside the second message's body,
	// after its tag and length bytes.
	split := len(fixture) - 3
	fr := &frameReader{}
	first, err := fr.Feed(fixture[:split])
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatal("expected exactly the first message to frame out, got", len(first))
	}
	if !fr.Pending() {
		t.Fatal("expected partial second message buffered")
	}
	second, err := fr.Feed(fixture[split:])
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 {
		t.Fatal("expected the second message once the rest arrives, got", len(second))
	}
	if fr.Pending() {
		t.Fatal("expected no leftover bytes")
	}
}

func TestFrameReaderRejectsIndefiniteLength(t *testing.T) {
	fr := &frameReader{}
	_, err := fr.Feed([]byte{0x30, 0x80})
	if err == nil {
		t.Fatal("expected error for indefinite length form")
	}
}
