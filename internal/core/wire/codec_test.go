package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	frame := Frame{
		{Tag: uint64(TagDocumentReset), Payload: Empty{}},
		{Tag: uint64(TagMethodCreate), Payload: IntroMessage{ClientName: "noodle-client"}},
	}

	data, err := frame.Encode()
	require.NoError(t, err)

	elements, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	require.Equal(t, uint64(TagDocumentReset), elements[0].Tag)
	require.Equal(t, uint64(TagMethodCreate), elements[1].Tag)

	var intro IntroMessage
	require.NoError(t, elements[1].Unmarshal(&intro))
	require.Equal(t, "noodle-client", intro.ClientName)
}

func TestDecodeRejectsOddLengthArray(t *testing.T) {
	data, err := encMode.Marshal([]any{uint64(TagInitDone)})
	require.NoError(t, err)

	_, err = Decode(data)
	require.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDecodeRejectsNonArrayTop(t *testing.T) {
	data, err := encMode.Marshal(map[string]any{"not": "a frame"})
	require.NoError(t, err)

	_, err = Decode(data)
	require.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDeleteRefRoundTrips(t *testing.T) {
	frame := Frame{{Tag: uint64(TagBufferDelete), Payload: DeleteRef{}}}
	data, err := frame.Encode()
	require.NoError(t, err)

	elements, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, elements, 1)

	var ref DeleteRef
	require.NoError(t, elements[0].Unmarshal(&ref))
	require.True(t, ref.ID.IsNil())
}
