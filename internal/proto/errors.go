package proto

import "encoding/json"

// ErrorKind is the integer error code carried in ErrorOccurred frames.
type ErrorKind int

const (
	ErrKindMessageParsingError  ErrorKind = 1
	ErrKindTextMessageInvalid   ErrorKind = 2
	ErrKindInvalidMessageReadID ErrorKind = 3
	ErrKindInvalidUserPk        ErrorKind = 4
	ErrKindInvalidRandomID      ErrorKind = 5
	ErrKindFileMessageInvalid   ErrorKind = 6
	ErrKindFileDoesNotExist     ErrorKind = 7
	ErrKindInvalidDialogPk      ErrorKind = 8
)

// ErrorDescription pairs an error kind with a human-readable detail.
// It serializes as a two-element array: [kind, detail].
type ErrorDescription struct {
	Kind   ErrorKind
	Detail string
}

// Error implements the error interface so handlers can return it directly.
func (e *ErrorDescription) Error() string {
	return e.Detail
}

// MarshalJSON renders the description as the wire tuple [kind, detail].
func (e ErrorDescription) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{int(e.Kind), e.Detail})
}

// UnmarshalJSON parses the wire tuple back into the struct.
func (e *ErrorDescription) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	var kind int
	if err := json.Unmarshal(tuple[0], &kind); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &e.Detail); err != nil {
		return err
	}
	e.Kind = ErrorKind(kind)
	return nil
}

func protocolError(kind ErrorKind, detail string) *ErrorDescription {
	return &ErrorDescription{Kind: kind, Detail: detail}
}
