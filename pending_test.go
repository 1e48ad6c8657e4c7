package ldapconn

import "testing"

func TestSinglePendingDeliver(t *testing.T) {
	p := newSinglePending()
	op := BerRawElement{Type: TypeAddResponseOp, Data: []byte{0x01}}
	if terminal := p.deliver(op); !terminal {
		t.Fatal("expected single response to be terminal")
	}
	res := p.wait()
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Op.Type != TypeAddResponseOp {
		t.Fatal("wrong delivered op")
	}
}

func TestSinglePendingFail(t *testing.T) {
	p := newSinglePending()
	p.fail(ErrAbandoned)
	res := p.wait()
	if res.Err != ErrAbandoned {
		t.Fatal("expected ErrAbandoned, got", res.Err)
	}
}

func TestSearchPendingStreamsEntriesThenDone(t *testing.T) {
	p := newSearchPending()
	entry := &SearchResultEntry{ObjectName: "cn=alice,dc=example,dc=com"}
	if terminal := p.deliver(BerRawElement{Type: TypeSearchResultEntryOp, Data: entry.Encode()}); terminal {
		t.Fatal("entry delivery should not be terminal")
	}
	got := <-p.entries
	if got.ObjectName != entry.ObjectName {
		t.Fatal("wrong entry delivered", got)
	}

	done := Result{ResultCode: ResultSuccess}
	if terminal := p.deliver(BerRawElement{Type: TypeSearchResultDoneOp, Data: done.Encode()}); !terminal {
		t.Fatal("searchResultDone should be terminal")
	}
	res := <-p.done
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if _, ok := <-p.entries; ok {
		t.Fatal("entries channel should be closed")
	}
}

func TestSearchPendingMalformedEntryIsTerminal(t *testing.T) {
	p := newSearchPending()
	// Not a valid SearchResultEntry sequence.
	terminal := p.deliver(BerRawElement{Type: TypeSearchResultEntryOp, Data: []byte{0xff}})
	if !terminal {
		t.Fatal("malformed entry delivery must still be terminal so the router evicts it")
	}
	res := <-p.done
	if res.Err == nil {
		t.Fatal("expected a decode error on done channel")
	}
}

func TestSearchPendingUnexpectedTagIsTerminal(t *testing.T) {
	p := newSearchPending()
	terminal := p.deliver(BerRawElement{Type: TypeAddResponseOp})
	if !terminal {
		t.Fatal("unexpected protocol op must be terminal")
	}
	res := <-p.done
	if res.Err == nil {
		t.Fatal("expected an error for unexpected search response type")
	}
}
