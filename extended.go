package ldapconn

import "bytes"

// ExtendedRequest ::= [APPLICATION 23] SEQUENCE {
// 		requestName 	[0] LDAPOID,
// 		requestValue    [1] OCTET STRING OPTIONAL }
type ExtendedRequest struct {
	Name  OID
	Value string
}

// ExtendedResponse ::= [APPLICATION 24] SEQUENCE {
// 		COMPONENTS OF LDAPResult,
// 		responseName     [10] LDAPOID OPTIONAL,
// 		responseValue    [11] OCTET STRING OPTIONAL }
type ExtendedResult struct {
	Result
	ResponseName  OID
	ResponseValue string
}

// NewExtendedRequest returns an ExtendedRequest for the named OID with an
// opaque request value.
func NewExtendedRequest(name OID, value string) *ExtendedRequest {
	return &ExtendedRequest{Name: name, Value: value}
}

// NewPasswordModifyRequest returns an extended request for the Password
// Modify operation (RFC 3062). userIdentity may be empty to request a
// self-service change; newPassword may be empty to request a
// server-generated password.
func NewPasswordModifyRequest(userIdentity, oldPassword, newPassword string) *ExtendedRequest {
	b := bytes.NewBuffer(nil)
	if userIdentity != "" {
		b.Write(BerEncodeElement(BerContextSpecificType(0, false), []byte(userIdentity)))
	}
	if oldPassword != "" {
		b.Write(BerEncodeElement(BerContextSpecificType(1, false), []byte(oldPassword)))
	}
	if newPassword != "" {
		b.Write(BerEncodeElement(BerContextSpecificType(2, false), []byte(newPassword)))
	}
	return &ExtendedRequest{Name: OIDPasswordModify, Value: string(BerEncodeSequence(b.Bytes()))}
}

// Encode returns the BER encoding of the request, including its
// application-tagged element header.
func (r *ExtendedRequest) Encode() []byte {
	b := bytes.NewBuffer(nil)
	b.Write(BerEncodeElement(BerContextSpecificType(0, false), []byte(r.Name)))
	if r.Value != "" {
		b.Write(BerEncodeElement(BerContextSpecificType(1, false), []byte(r.Value)))
	}
	return BerEncodeElement(TypeExtendedRequestOp, b.Bytes())
}

// GetExtendedResult parses an ExtendedResult from BER-encoded data.
func GetExtendedResult(data []byte) (*ExtendedResult, error) {
	seq, err := BerGetSequence(data)
	if err != nil {
		return nil, err
	}
	if len(seq) < 3 || len(seq) > 6 {
		return nil, ErrWrongSequenceLength.WithInfo("ExtendedResponse sequence length", len(seq))
	}
	resultPart := seq
	var name, value *BerRawElement
loop:
	for len(resultPart) > 0 {
		last := resultPart[len(resultPart)-1]
		switch last.Type {
		case BerContextSpecificType(11, false):
			value = &last
			resultPart = resultPart[:len(resultPart)-1]
		case BerContextSpecificType(10, false):
			name = &last
			resultPart = resultPart[:len(resultPart)-1]
		default:
			break loop
		}
	}
	wrapped := bytes.NewBuffer(nil)
	for _, e := range resultPart {
		wrapped.Write(BerEncodeElement(e.Type, e.Data))
	}
	res, err := GetResult(wrapped.Bytes())
	if err != nil {
		return nil, err
	}
	er := &ExtendedResult{Result: *res}
	if name != nil {
		er.ResponseName = OID(BerGetOctetString(name.Data))
	}
	if value != nil {
		er.ResponseValue = BerGetOctetString(value.Data)
	}
	return er, nil
}

// GetIntermediateResponse parses an IntermediateResponse from
// BER-encoded data.
func GetIntermediateResponse(data []byte) (*IntermediateResponse, error) {
	seq, err := BerGetSequence(data)
	if err != nil {
		return nil, err
	}
	if len(seq) > 2 {
		return nil, ErrWrongSequenceLength.WithInfo("IntermediateResponse sequence length", len(seq))
	}
	ir := &IntermediateResponse{}
	for _, e := range seq {
		switch {
		case e.Type == BerContextSpecificType(0, false):
			ir.Name = BerGetOctetString(e.Data)
		case e.Type == BerContextSpecificType(1, false):
			ir.Value = BerGetOctetString(e.Data)
		default:
			return nil, ErrWrongElementType.WithInfo("IntermediateResponse element type", e.Type)
		}
	}
	return ir, nil
}

// Return an ExtendedRequest from BER-encoded data
func GetExtendedRequest(data []byte) (*ExtendedRequest, error) {
	seq, err := BerGetSequence(data)
	if err != nil {
		return nil, err
	}
	if len(seq) != 1 && len(seq) != 2 {
		return nil, ErrWrongSequenceLength.WithInfo("LDAPExtendedRequest sequence length", len(seq))
	}
	if seq[0].Type.Class() != BerClassContextSpecific || seq[0].Type.TagNumber() != 0 {
		return nil, ErrWrongElementType.WithInfo("LDAPExtendedRequest name type", seq[0].Type)
	}
	oid := OID(BerGetOctetString(seq[0].Data))
	if err = oid.Validate(); err != nil {
		return nil, err
	}
	value := ""
	if len(seq) == 2 {
		if seq[1].Type.Class() != BerClassContextSpecific || seq[1].Type.TagNumber() != 1 {
			return nil, ErrWrongElementType.WithInfo("LDAPExtendedRequest value type", seq[1].Type)
		}
		value = BerGetOctetString(seq[1].Data)
	}
	req := &ExtendedRequest{
		Name:  oid,
		Value: value,
	}
	return req, nil
}

// Return the BER-encoded struct (without element header)
func (r *ExtendedResult) Encode() []byte {
	data := bytes.NewBuffer(r.Result.Encode())
	if r.ResponseName != "" {
		data.Write(BerEncodeElement(BerContextSpecificType(10, false), []byte(r.ResponseName)))
	}
	if r.ResponseValue != "" {
		data.Write(BerEncodeElement(BerContextSpecificType(11, false), []byte(r.ResponseValue)))
	}
	return data.Bytes()
}
