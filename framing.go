package ldapconn

// frameReader reassembles LDAPMessage PDUs out of an arbitrarily
// fragmented byte stream. Callers feed it bytes as they arrive from the
// socket via Feed; each call to Feed may yield zero or more complete raw
// elements. frameReader never blocks and never assumes a Feed call
// lines up with a PDU boundary: a single element can straddle any number
// of Feed calls, and a single Feed call can carry any number of
// elements.
type frameReader struct {
	buf []byte
}

// Feed appends data to the internal buffer and extracts every complete
// top-level BER element now available. A non-nil error is fatal: the
// byte stream is no longer framable and the connection must be torn
// down.
func (fr *frameReader) Feed(data []byte) ([]BerRawElement, error) {
	if len(data) > 0 {
		fr.buf = append(fr.buf, data...)
	}
	var elmts []BerRawElement
	for {
		elmt, consumed, ok, err := decodeTLV(fr.buf)
		if err != nil {
			return elmts, err
		}
		if !ok {
			break
		}
		elmts = append(elmts, elmt)
		fr.buf = fr.buf[consumed:]
	}
	return elmts, nil
}

// Pending reports whether a partial element is currently buffered.
func (fr *frameReader) Pending() bool {
	return len(fr.buf) > 0
}
