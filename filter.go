package ldapconn

import (
	"bytes"
	"strings"
)

// Defined filter types
const (
	FilterTypeAnd             uint8 = 0
	FilterTypeOr              uint8 = 1
	FilterTypeNot             uint8 = 2
	FilterTypeEqual           uint8 = 3
	FilterTypeSubstrings      uint8 = 4
	FilterTypeGreaterOrEqual  uint8 = 5
	FilterTypeLessOrEqual     uint8 = 6
	FilterTypePresent         uint8 = 7
	FilterTypeApproxMatch     uint8 = 8
	FilterTypeExtensibleMatch uint8 = 9
)

//	Filter ::= CHOICE {
//		and             [0] SET SIZE (1..MAX) OF filter Filter,
//		or              [1] SET SIZE (1..MAX) OF filter Filter,
//		not             [2] Filter,
//		equalityMatch   [3] AttributeValueAssertion,
//		substrings      [4] SubstringFilter,
//		greaterOrEqual  [5] AttributeValueAssertion,
//		lessOrEqual     [6] AttributeValueAssertion,
//		present         [7] AttributeDescription,
//		approxMatch     [8] AttributeValueAssertion,
//		extensibleMatch [9] MatchingRuleAssertion,
//		...  }
type Filter struct {
	Type uint8
	Data any
}

// SubstringFilter ::= SEQUENCE {
// 		type           AttributeDescription,
// 		substrings     SEQUENCE SIZE (1..MAX) OF substring CHOICE {
// 		 	initial [0] AssertionValue,  -- can occur at most once
// 		 	any     [1] AssertionValue,
// 		 	final   [2] AssertionValue } -- can occur at most once
// 		}
type SubstringFilter struct {
	Type    string
	Initial string
	Any     []string
	Final   string
}

// MatchingRuleAssertion ::= SEQUENCE {
// 		matchingRule    [1] MatchingRuleId OPTIONAL,
// 		type            [2] AttributeDescription OPTIONAL,
// 		matchValue      [3] AssertionValue,
// 		dnAttributes    [4] BOOLEAN DEFAULT FALSE }
type MatchingRuleAssertion struct {
	MatchingRule string
	Type         string
	MatchValue   string
	DNAttributes bool
}

// Return a Filter from a raw BER element
func GetFilter(raw BerRawElement) (*Filter, error) {
	if raw.Type.Class() != BerClassContextSpecific {
		return nil, ErrWrongElementType.WithInfo("Filter type", raw.Type)
	}
	f := &Filter{
		Type: raw.Type.TagNumber(),
	}
	switch f.Type {
	case FilterTypeAnd, FilterTypeOr:
		var filters []Filter
		seq, err := BerGetSequence(raw.Data)
		if err != nil {
			return nil, err
		}
		for _, rf := range seq {
			filter, err := GetFilter(rf)
			if err != nil {
				return nil, err
			}
			filters = append(filters, *filter)
		}
		f.Data = filters
	case FilterTypeNot:
		elmt, err := BerReadElement(bytes.NewReader(raw.Data))
		if err != nil {
			return nil, err
		}
		filter, err := GetFilter(elmt)
		if err != nil {
			return nil, err
		}
		f.Data = filter
	case FilterTypeEqual, FilterTypeGreaterOrEqual, FilterTypeLessOrEqual, FilterTypeApproxMatch:
		ass, err := GetAttributeValueAssertion(raw.Data)
		if err != nil {
			return nil, err
		}
		f.Data = ass
	case FilterTypeSubstrings:
		seq, err := BerGetSequence(raw.Data)
		if err != nil {
			return nil, err
		}
		if len(seq) != 2 {
			return nil, ErrWrongSequenceLength.WithInfo("SubstringFilter sequence length", len(seq))
		}
		if seq[0].Type != BerTypeOctetString {
			return nil, ErrWrongElementType.WithInfo("SubstringFilter type type", seq[0].Type)
		}
		sf := &SubstringFilter{Type: BerGetOctetString(seq[0].Data)}
		if seq[1].Type != BerTypeSequence {
			return nil, ErrWrongElementType.WithInfo("SubstringFilter substrings type", seq[1].Type)
		}
		seq, err = BerGetSequence(seq[1].Data)
		if err != nil {
			return nil, err
		}
		for _, rs := range seq {
			if rs.Type.Class() != BerClassContextSpecific {
				return nil, ErrWrongElementType.WithInfo("SubstringFilter substring type", rs.Type)
			}
			switch rs.Type.TagNumber() {
			case 0:
				if sf.Initial != "" {
					return nil, ErrWrongElementType.WithInfo("Multiple initial substrings", string(rs.Data))
				}
				sf.Initial = BerGetOctetString(rs.Data)
			case 1:
				sf.Any = append(sf.Any, BerGetOctetString(rs.Data))
			case 2:
				if sf.Final != "" {
					return nil, ErrWrongElementType.WithInfo("Multiple final substrings", string(rs.Data))
				}
				sf.Final = BerGetOctetString(rs.Data)
			default:
				return nil, ErrWrongElementType.WithInfo("SubstringFilter substring type", rs.Type)
			}
		}
		f.Data = sf
	case FilterTypePresent:
		f.Data = BerGetOctetString(raw.Data)
	case FilterTypeExtensibleMatch:
		seq, err := BerGetSequence(raw.Data)
		if err != nil {
			return nil, err
		}
		m := MatchingRuleAssertion{}
		i := 0
		if len(seq) > i && seq[i].Type == BerContextSpecificType(1, false) {
			m.MatchingRule = BerGetOctetString(seq[i].Data)
			i++
		}
		if len(seq) > i && seq[i].Type == BerContextSpecificType(2, false) {
			m.Type = BerGetOctetString(seq[i].Data)
			i++
		}
		if len(seq) <= i || len(seq) > i+2 {
			return nil, ErrWrongSequenceLength.WithInfo("MatchingRuleAssertion sequence length", len(seq))
		}
		if seq[i].Type != BerContextSpecificType(3, false) {
			return nil, ErrWrongElementType.WithInfo("MatchingRuleAssertion matchValue type", seq[i].Type)
		}
		m.MatchValue = BerGetOctetString(seq[i].Data)
		i++
		if i < len(seq) {
			if seq[i].Type != BerContextSpecificType(4, false) {
				return nil, ErrWrongElementType.WithInfo("MatchingRuleAssertion dnAttributes type", seq[i].Type)
			}
			dna, err := BerGetBoolean(seq[i].Data)
			if err != nil {
				return nil, err
			}
			m.DNAttributes = dna
		}
		f.Data = &m
	default:
		f.Data = &raw
	}
	return f, nil
}

// EscapeAssertionValue escapes the bytes that must not appear literally in
// an encoded assertion value: NUL, '*', '(', ')' and '\', each replaced by
// '\' followed by two hex digits.
func EscapeAssertionValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case 0x00, '*', '(', ')', '\\':
			b.WriteByte('\\')
			const hex = "0123456789abcdef"
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// NewEqualityFilter returns an equalityMatch filter: attr = value.
func NewEqualityFilter(attr, value string) *Filter {
	return &Filter{Type: FilterTypeEqual, Data: &AttributeValueAssertion{Description: attr, Value: value}}
}

// NewGreaterOrEqualFilter returns a greaterOrEqual filter: attr >= value.
func NewGreaterOrEqualFilter(attr, value string) *Filter {
	return &Filter{Type: FilterTypeGreaterOrEqual, Data: &AttributeValueAssertion{Description: attr, Value: value}}
}

// NewLessOrEqualFilter returns a lessOrEqual filter: attr <= value.
func NewLessOrEqualFilter(attr, value string) *Filter {
	return &Filter{Type: FilterTypeLessOrEqual, Data: &AttributeValueAssertion{Description: attr, Value: value}}
}

// NewApproxMatchFilter returns an approxMatch filter: attr ~= value.
func NewApproxMatchFilter(attr, value string) *Filter {
	return &Filter{Type: FilterTypeApproxMatch, Data: &AttributeValueAssertion{Description: attr, Value: value}}
}

// NewPresenceFilter returns a presence filter: attr=*.
func NewPresenceFilter(attr string) *Filter {
	return &Filter{Type: FilterTypePresent, Data: attr}
}

// NewAndFilter returns an and filter over a non-empty list of children.
func NewAndFilter(children ...Filter) *Filter {
	return &Filter{Type: FilterTypeAnd, Data: children}
}

// NewOrFilter returns an or filter over a non-empty list of children.
func NewOrFilter(children ...Filter) *Filter {
	return &Filter{Type: FilterTypeOr, Data: children}
}

// NewNotFilter returns a not filter over exactly one child.
func NewNotFilter(child Filter) *Filter {
	return &Filter{Type: FilterTypeNot, Data: &child}
}

// NewSubstringFilter splits pattern on '*' into initial/any/final parts
// and returns a substrings filter for attr. A leading/trailing '*' omits
// the initial/final part respectively.
func NewSubstringFilter(attr, pattern string) *Filter {
	parts := strings.Split(pattern, "*")
	sf := &SubstringFilter{Type: attr}
	if len(parts) > 0 && parts[0] != "" {
		sf.Initial = parts[0]
	}
	if len(parts) > 1 {
		for _, p := range parts[1 : len(parts)-1] {
			if p != "" {
				sf.Any = append(sf.Any, p)
			}
		}
		if last := parts[len(parts)-1]; last != "" {
			sf.Final = last
		}
	}
	return &Filter{Type: FilterTypeSubstrings, Data: sf}
}

// Encode returns the BER encoding of the filter, with its own context-
// specific choice tag (suitable for use as a SearchRequest's filter
// element or as a child of and/or/not).
func (f *Filter) Encode() ([]byte, error) {
	switch f.Type {
	case FilterTypeAnd, FilterTypeOr:
		children, _ := f.Data.([]Filter)
		if len(children) == 0 {
			return nil, ErrProtocolViolation.WithInfo("reason", "and/or filter requires at least one child")
		}
		buf := bytes.NewBuffer(nil)
		for i := range children {
			enc, err := children[i].Encode()
			if err != nil {
				return nil, err
			}
			buf.Write(enc)
		}
		return BerEncodeElement(BerContextSpecificType(f.Type, true), buf.Bytes()), nil
	case FilterTypeNot:
		child, _ := f.Data.(*Filter)
		if child == nil {
			return nil, ErrProtocolViolation.WithInfo("reason", "not filter requires exactly one child")
		}
		enc, err := child.Encode()
		if err != nil {
			return nil, err
		}
		return BerEncodeElement(BerContextSpecificType(FilterTypeNot, true), enc), nil
	case FilterTypeEqual, FilterTypeGreaterOrEqual, FilterTypeLessOrEqual, FilterTypeApproxMatch:
		ava, _ := f.Data.(*AttributeValueAssertion)
		if ava == nil {
			return nil, ErrProtocolViolation.WithInfo("reason", "assertion filter requires an AttributeValueAssertion")
		}
		buf := bytes.NewBuffer(nil)
		buf.Write(BerEncodeOctetString(ava.Description))
		buf.Write(BerEncodeOctetString(EscapeAssertionValue(ava.Value)))
		return BerEncodeElement(BerContextSpecificType(f.Type, true), buf.Bytes()), nil
	case FilterTypePresent:
		attr, _ := f.Data.(string)
		return BerEncodeElement(BerContextSpecificType(FilterTypePresent, false), []byte(attr)), nil
	case FilterTypeSubstrings:
		sf, _ := f.Data.(*SubstringFilter)
		if sf == nil {
			return nil, ErrProtocolViolation.WithInfo("reason", "substrings filter requires a SubstringFilter")
		}
		subs := bytes.NewBuffer(nil)
		if sf.Initial != "" {
			subs.Write(BerEncodeElement(BerContextSpecificType(0, false), []byte(EscapeAssertionValue(sf.Initial))))
		}
		for _, any := range sf.Any {
			subs.Write(BerEncodeElement(BerContextSpecificType(1, false), []byte(EscapeAssertionValue(any))))
		}
		if sf.Final != "" {
			subs.Write(BerEncodeElement(BerContextSpecificType(2, false), []byte(EscapeAssertionValue(sf.Final))))
		}
		buf := bytes.NewBuffer(nil)
		buf.Write(BerEncodeOctetString(sf.Type))
		buf.Write(BerEncodeSequence(subs.Bytes()))
		return BerEncodeElement(BerContextSpecificType(FilterTypeSubstrings, true), buf.Bytes()), nil
	case FilterTypeExtensibleMatch:
		// Recognized on decode only; see DESIGN.md Open Question decisions.
		return nil, ErrProtocolViolation.WithInfo("reason", "extensibleMatch filter encoding is not implemented")
	default:
		return nil, ErrProtocolViolation.WithInfo("filter type", f.Type)
	}
}
