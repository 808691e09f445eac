package hd

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(
		"0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20",
		"0x0000000000000000000000000000000000000001",
		1,
	)
	require.NoError(t, err)
	return m
}

func TestDeriveIsPureFunctionOfSeedOpIndex(t *testing.T) {
	m1 := testManager(t)
	m2 := testManager(t)

	s1, err := m1.Derive(OpShield, 3)
	require.NoError(t, err)
	s2, err := m2.Derive(OpShield, 3)
	require.NoError(t, err)

	assert.Equal(t, s1, s2, "derive must be deterministic given the same seed/op/index")
}

func TestDeriveDiffersByIndex(t *testing.T) {
	m := testManager(t)
	s0, err := m.Derive(OpShield, 0)
	require.NoError(t, err)
	s1, err := m.Derive(OpShield, 1)
	require.NoError(t, err)
	assert.NotEqual(t, s0, s1)
}

func TestDeriveDiffersByOperation(t *testing.T) {
	m := testManager(t)
	sShield, err := m.Derive(OpShield, 0)
	require.NoError(t, err)
	sReceived, err := m.Derive(OpReceived, 0)
	require.NoError(t, err)
	assert.NotEqual(t, sShield, sReceived)
}

func TestDeriveRejectsUnknownOperation(t *testing.T) {
	m := testManager(t)
	_, err := m.Derive("bogus", 0)
	assert.Error(t, err)
}

func TestDeriveRejectsOutOfRangeIndex(t *testing.T) {
	m := testManager(t)
	_, err := m.Derive(OpShield, -1)
	assert.Error(t, err)

	_, err = m.Derive(OpShield, MaxIndex+1)
	assert.Error(t, err)

	_, err = m.Derive(OpShield, MaxIndex)
	assert.NoError(t, err)
}

func TestRecoverByPathMatchesDerive(t *testing.T) {
	m := testManager(t)
	direct, err := m.Derive(OpConsolidate, 42)
	require.NoError(t, err)

	viaPath, err := m.RecoverByPath("consolidate/42")
	require.NoError(t, err)

	assert.Equal(t, direct, viaPath)
}

func TestRecoverByPathRejectsMalformed(t *testing.T) {
	m := testManager(t)
	cases := []string{"", "shield", "shield/", "/1", "shield/-1", "shield/01", "nope/1"}
	for _, c := range cases {
		_, err := m.RecoverByPath(c)
		assert.Error(t, err, "expected error for path %q", c)
	}
}

func TestSequenceYieldsOrderedDerivations(t *testing.T) {
	m := testManager(t)
	var got []Derived
	for d := range m.Sequence(OpShield, 5) {
		got = append(got, d)
	}
	require.Len(t, got, 5)
	for i, d := range got {
		assert.Equal(t, i, d.Index)
		expected, err := m.Derive(OpShield, i)
		require.NoError(t, err)
		assert.Equal(t, expected, d.Secret)
	}
}

func TestSequenceStopsEarlyWhenYieldReturnsFalse(t *testing.T) {
	m := testManager(t)
	count := 0
	for range m.Sequence(OpShield, 100) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestNewRejectsBadInputs(t *testing.T) {
	_, err := New("not-hex", "0x0000000000000000000000000000000000000001", 1)
	assert.Error(t, err)

	_, err = New("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20", "short", 1)
	assert.Error(t, err)

	_, err = New("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20",
		"0x0000000000000000000000000000000000000001", 0)
	assert.Error(t, err)
}

func TestMasterSeedDiffersByChainID(t *testing.T) {
	wallet := common.HexToAddress("0x0000000000000000000000000000000000000001")
	m1, err := New("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20", wallet.Hex(), 1)
	require.NoError(t, err)
	m2, err := New("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20", wallet.Hex(), 2)
	require.NoError(t, err)

	s1, _ := m1.Derive(OpShield, 0)
	s2, _ := m2.Derive(OpShield, 0)
	assert.NotEqual(t, s1, s2)
}
