package ldapconn

// AbandonRequest ::= [APPLICATION 16] MessageID
//
// AbandonRequest carries no response; the server either abandons the
// named operation or silently ignores the request if it has already
// completed or the message ID is unrecognized.
type AbandonRequest struct {
	MessageID MessageID
}

// NewAbandonRequest returns an AbandonRequest naming the operation to
// abandon.
func NewAbandonRequest(id MessageID) *AbandonRequest {
	return &AbandonRequest{MessageID: id}
}

// Encode returns the BER encoding of the request, including its
// application-tagged element header. Unlike the other request types,
// AbandonRequest is a bare MessageID, not a SEQUENCE.
func (r *AbandonRequest) Encode() []byte {
	return BerEncodeElement(TypeAbandonRequestOp, BerEncodeIntegerRaw(int64(r.MessageID)))
}

// GetAbandonRequest returns an AbandonRequest from the BER-encoded data.
func GetAbandonRequest(data []byte) (*AbandonRequest, error) {
	id, err := BerGetInteger(data)
	if err != nil {
		return nil, err
	}
	if id < 0 || id > maxInt {
		return nil, ErrInvalidMessageID.WithInfo("AbandonRequest messageID", id)
	}
	return &AbandonRequest{MessageID: MessageID(id)}, nil
}
