package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorOccurredWireFormat(t *testing.T) {
	// The error field is a two-element array, not an object.
	payload, err := EncodeEvent(NewErrorOccurred(ErrorDescription{
		Kind:   ErrKindTextMessageInvalid,
		Detail: "'text' should not be blank",
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"msg_type":7,"error":[2,"'text' should not be blank"]}`, string(payload))
}

func TestErrorDescriptionRoundTrip(t *testing.T) {
	var desc ErrorDescription
	require.NoError(t, json.Unmarshal([]byte(`[8,"Discussion group with pk 9 does not exist"]`), &desc))
	assert.Equal(t, ErrKindInvalidDialogPk, desc.Kind)
	assert.Equal(t, "Discussion group with pk 9 does not exist", desc.Detail)
}
