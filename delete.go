package ldapconn

// DelRequest ::= [APPLICATION 10] LDAPDN
type DeleteRequest struct {
	Entry string
}

// NewDeleteRequest returns a DeleteRequest for the entry DN.
func NewDeleteRequest(entry string) *DeleteRequest {
	return &DeleteRequest{Entry: entry}
}

// Encode returns the BER encoding of the request, including its
// application-tagged element header. Unlike the other request types,
// DelRequest is a bare LDAPDN, not a SEQUENCE.
func (r *DeleteRequest) Encode() []byte {
	return BerEncodeElement(TypeDeleteRequestOp, []byte(r.Entry))
}

// GetDeleteRequest returns a DeleteRequest from the BER-encoded data.
func GetDeleteRequest(data []byte) (*DeleteRequest, error) {
	return &DeleteRequest{Entry: BerGetOctetString(data)}, nil
}

// GetDeleteResponse parses a DelResponse (a bare LDAPResult) from
// BER-encoded data.
func GetDeleteResponse(data []byte) (*Result, error) {
	return GetResult(data)
}
