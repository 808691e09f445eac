package recoverymgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommitmentAcceptsHexWithOrWithoutPrefix(t *testing.T) {
	hexStr := "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"

	got, err := parseCommitment("0x" + hexStr)
	require.NoError(t, err)

	got2, err := parseCommitment(hexStr)
	require.NoError(t, err)

	assert.Equal(t, got, got2)
	assert.Equal(t, byte(0x01), got[0])
	assert.Equal(t, byte(0x20), got[31])
}

func TestParseCommitmentRejectsWrongLength(t *testing.T) {
	_, err := parseCommitment("0x0102")
	assert.Error(t, err)
}

func TestParseCommitmentRejectsNonHex(t *testing.T) {
	_, err := parseCommitment("0xzzzz")
	assert.Error(t, err)
}
