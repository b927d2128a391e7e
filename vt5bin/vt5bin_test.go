package vt5bin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvedd/voicetally-core/vterrors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte(`{"species":[]}`)
	container, err := Encode(KindAliasIndex, CodecJSON, true, 42, payload)
	require.NoError(t, err)

	hdr, decoded, err := Decode(container, KindAliasIndex)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
	assert.Equal(t, CompressionGzip, hdr.Compression)
	assert.Equal(t, uint32(42), hdr.RecordCount)
}

func TestEncodeDecodeUncompressed(t *testing.T) {
	payload := []byte(`{"species":[1,2,3]}`)
	container, err := Encode(KindAliasIndex, CodecJSON, false, 3, payload)
	require.NoError(t, err)

	hdr, decoded, err := Decode(container, KindAliasIndex)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
	assert.Equal(t, CompressionNone, hdr.Compression)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	container, err := Encode(KindAliasIndex, CodecJSON, false, 0, []byte("x"))
	require.NoError(t, err)
	container[0] = 'Q'

	_, _, err = Decode(container, KindAliasIndex)
	require.Error(t, err)
	assert.True(t, vterrors.Is(err, vterrors.KindDecodeFailed))
}

func TestDecodeRejectsDatasetKindMismatch(t *testing.T) {
	container, err := Encode(KindAliasIndex, CodecJSON, false, 0, []byte("x"))
	require.NoError(t, err)

	_, _, err = Decode(container, Kind(999))
	require.Error(t, err)
	assert.True(t, vterrors.Is(err, vterrors.KindDecodeFailed))
}

func TestDecodeDetectsSingleBitMutationInHeader(t *testing.T) {
	container, err := Encode(KindAliasIndex, CodecJSON, false, 7, []byte("payload"))
	require.NoError(t, err)

	mutated := append([]byte(nil), container...)
	mutated[20] ^= 0x01 // flip a bit inside the payload-length field

	_, _, err = Decode(mutated, KindAliasIndex)
	require.Error(t, err)
	assert.True(t, vterrors.Is(err, vterrors.KindDecodeFailed))
}

func TestDecodeRejectsTruncatedContainer(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3}, KindAliasIndex)
	require.Error(t, err)
	assert.True(t, vterrors.Is(err, vterrors.KindDecodeFailed))
}
