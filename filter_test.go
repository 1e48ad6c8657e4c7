package ldapconn_test

import (
	"bytes"
	"testing"

	"github.com/ldapwire/ldapconn"
)

func TestParseSearchFilterPresence(t *testing.T) {
	raw := ldapconn.BerRawElement{Type: ldapconn.BerContextSpecificType(ldapconn.FilterTypePresent, false), Data: []byte("objectClass")}
	f, err := ldapconn.GetFilter(raw)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type != ldapconn.FilterTypePresent {
		t.Fatal("wrong filter type", f.Type)
	}
	if f.Data.(string) != "objectClass" {
		t.Fatal("wrong presence attribute", f.Data)
	}
}

func TestParseSearchFilterEmptyAndOr(t *testing.T) {
	// RFC 4526 absolute true/false filters: empty and/or sets. This
	// package does not model them as a distinct type; they decode as a
	// normal and/or filter with zero children.
	for _, raw := range []ldapconn.BerRawElement{
		{Type: ldapconn.BerContextSpecificType(ldapconn.FilterTypeAnd, true), Data: nil},
		{Type: ldapconn.BerContextSpecificType(ldapconn.FilterTypeOr, true), Data: nil},
	} {
		f, err := ldapconn.GetFilter(raw)
		if err != nil {
			t.Fatal(err)
		}
		children, _ := f.Data.([]ldapconn.Filter)
		if len(children) != 0 {
			t.Fatal("expected zero children", children)
		}
	}
}

func TestParseSearchFilterSubstrings(t *testing.T) {
	f := ldapconn.NewSubstringFilter("cn", "fo*ba*r")
	enc, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	elmt, err := ldapconn.BerReadElement(bytes.NewReader(enc))
	if err != nil {
		t.Fatal(err)
	}
	got, err := ldapconn.GetFilter(elmt)
	if err != nil {
		t.Fatal(err)
	}
	sf, ok := got.Data.(*ldapconn.SubstringFilter)
	if !ok {
		t.Fatal("expected *SubstringFilter")
	}
	if sf.Type != "cn" {
		t.Fatal("wrong attribute", sf.Type)
	}
	if sf.Initial != "fo" || sf.Final != "r" {
		t.Fatal("wrong initial/final", sf.Initial, sf.Final)
	}
	if len(sf.Any) != 1 || sf.Any[0] != "ba" {
		t.Fatal("wrong any segment", sf.Any)
	}
}

func TestFilterEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*ldapconn.Filter{
		ldapconn.NewEqualityFilter("cn", "alice"),
		ldapconn.NewGreaterOrEqualFilter("age", "21"),
		ldapconn.NewLessOrEqualFilter("age", "65"),
		ldapconn.NewApproxMatchFilter("sn", "smith"),
		ldapconn.NewPresenceFilter("mail"),
		ldapconn.NewAndFilter(*ldapconn.NewEqualityFilter("cn", "alice"), *ldapconn.NewPresenceFilter("mail")),
		ldapconn.NewOrFilter(*ldapconn.NewEqualityFilter("cn", "alice"), *ldapconn.NewEqualityFilter("cn", "bob")),
		ldapconn.NewNotFilter(*ldapconn.NewPresenceFilter("mail")),
	}
	for _, f := range cases {
		enc, err := f.Encode()
		if err != nil {
			t.Fatal(err)
		}
		elmt, err := ldapconn.BerReadElement(bytes.NewReader(enc))
		if err != nil {
			t.Fatal(err)
		}
		got, err := ldapconn.GetFilter(elmt)
		if err != nil {
			t.Fatal(err)
		}
		if got.Type != f.Type {
			t.Fatal("type mismatch", got.Type, f.Type)
		}
	}
}

func TestFilterEncodeRejectsEmptyAndOr(t *testing.T) {
	f := ldapconn.NewAndFilter()
	if _, err := f.Encode(); err == nil {
		t.Fatal("expected error for empty and filter")
	}
}

func TestEscapeAssertionValue(t *testing.T) {
	if got := ldapconn.EscapeAssertionValue("a*b(c)\\d\x00"); got != `a\2ab\28c\29\5cd\00` {
		t.Fatal("unexpected escaping", got)
	}
}
