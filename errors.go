package ldapconn

import "fmt"

// LDAPError is the error type returned by this package.
// Supports errors.Is() to test for specific errors while also displaying instance-specific error info.
type LDAPError struct {
	message  string
	infoKey  string
	infoData string
	result   *Result
}

func (e *LDAPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.result != nil:
		return fmt.Sprintf("%s: code=%d matchedDN=%q diagnostic=%q",
			e.message, e.result.ResultCode, e.result.MatchedDN, e.result.DiagnosticMessage)
	case e.infoKey != "":
		return e.message + ": " + e.infoKey + " = " + e.infoData
	default:
		return e.message
	}
}

// Returns true if both are LDAPError and have the same message
func (e *LDAPError) Is(other error) bool {
	le, ok := other.(*LDAPError)
	return ok && le.message == e.message
}

// Returns a new error object with the specified info
func (e *LDAPError) WithInfo(key string, value any) *LDAPError {
	sval := fmt.Sprintf("%v", value)
	return &LDAPError{message: e.message, infoKey: key, infoData: sval}
}

// WithResult returns a copy of e carrying the full LDAPResult the server
// returned, so callers can inspect matchedDN and diagnosticMessage.
func (e *LDAPError) WithResult(res *Result) *LDAPError {
	return &LDAPError{message: e.message, result: res}
}

// Result returns the LDAPResult attached via WithResult, or nil.
func (e *LDAPError) Result() *Result {
	if e == nil {
		return nil
	}
	return e.result
}

// Predefined errors for this library.
var (
	// Structural decode failures. Fatal to the connection: a malformed
	// PDU cannot be re-synchronized out of the byte stream.
	ErrMalformedBER = &LDAPError{message: "malformed BER encoding"}
	ErrMalformedPDU = &LDAPError{message: "malformed LDAP PDU"}

	// An inbound message ID had no matching pending operation.
	ErrUnsolicitedResponse = &LDAPError{message: "unsolicited LDAP response"}

	// Transport-level failure.
	ErrSocketError = &LDAPError{message: "socket error"}

	// Submission after the connection has begun or finished closing.
	ErrConnectionClosed = &LDAPError{message: "connection closed"}

	// Server returned a non-success result code for a single-response op.
	ErrOperationFailed = &LDAPError{message: "operation failed"}

	// A pending operation was abandoned by the caller.
	ErrAbandoned = &LDAPError{message: "operation abandoned"}

	// A protocol-level invariant was violated, e.g. a filter that breaks
	// its structure rules, or an unsupported filter variant, was asked to
	// encode. A second Bind submitted while one is pending does not get
	// this error; it waits for the first to finish.
	ErrProtocolViolation = &LDAPError{message: "protocol violation"}

	// A pending operation's deadline elapsed before a terminating
	// response arrived.
	ErrOperationTimeout = &LDAPError{message: "operation deadline exceeded"}

	ErrInvalidBoolean      = &LDAPError{message: "invalid boolean data"}
	ErrInvalidLDAPMessage  = &LDAPError{message: "invalid LDAP message"}
	ErrInvalidMessageID    = &LDAPError{message: "invalid message ID"}
	ErrInvalidOID          = &LDAPError{message: "invalid OID"}
	ErrIntegerTooLarge     = &LDAPError{message: "integer too large"}
	ErrWrongElementType    = &LDAPError{message: "wrong element type"}
	ErrWrongSequenceLength = &LDAPError{message: "wrong sequence length"}
)
