package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000", v.String())

	// scientific notation resolving to a whole number is accepted
	v, err = ParseAmount("1e7")
	require.NoError(t, err)
	assert.Equal(t, "10000000", v.String())

	_, err = ParseAmount("0.5")
	assert.Error(t, err)

	_, err = ParseAmount("-10")
	assert.Error(t, err)

	_, err = ParseAmount("gibberish")
	assert.Error(t, err)

	v, err = ParseAmount("0")
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("0x00000000000000000000000000000000000000a1")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xA1"), a)

	_, err = ParseAddress("0x1234")
	assert.Error(t, err)
	_, err = ParseAddress("")
	assert.Error(t, err)
}
