package main

import (
	"context"
	"testing"

	"mev_engine/internal/config"
	"mev_engine/internal/core"
	"mev_engine/internal/engine/processor"
	"mev_engine/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(values map[string]string) payloadFlags {
	get := func(k string) *string {
		v := values[k]
		return &v
	}
	return payloadFlags{
		u64:     get("u64"),
		u32:     get("u32"),
		u8:      get("u8"),
		pair:    get("pair"),
		boolean: get("bool"),
		raw:     get("data"),
	}
}

func TestPayloadFlags_Encode(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   []byte
	}{
		{"none", nil, nil},
		{"u64", map[string]string{"u64": "1000"}, processor.EncodeU64(1000)},
		{"u32", map[string]string{"u32": "5"}, processor.EncodeU32(5)},
		{"u8", map[string]string{"u8": "7"}, []byte{7}},
		{"pair", map[string]string{"pair": "3, 4"}, processor.EncodePair(3, 4)},
		{"bool", map[string]string{"bool": "true"}, []byte{1}},
		{"raw", map[string]string{"data": "0a0b"}, []byte{0x0a, 0x0b}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := payload(tt.values).encode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayloadFlags_Errors(t *testing.T) {
	for _, values := range []map[string]string{
		{"u64": "-1"},
		{"u32": "4294967296"},
		{"u8": "256"},
		{"pair": "1"},
		{"bool": "maybe"},
		{"data": "zz"},
	} {
		_, err := payload(values).encode()
		assert.Error(t, err, values)
	}

	_, err := payload(map[string]string{"u64": "1", "u8": "1"}).encode()
	assert.ErrorIs(t, err, errManyPayloads)
}

func TestParseKeys(t *testing.T) {
	a, b := core.Pubkey{0x01}, core.Pubkey{0x02}
	keys, err := parseKeys(a.String() + ", " + b.String())
	require.NoError(t, err)
	assert.Equal(t, []core.Pubkey{a, b}, keys)

	keys, err = parseKeys("  ")
	require.NoError(t, err)
	assert.Nil(t, keys)

	_, err = parseKeys(a.String() + ",nope")
	assert.ErrorContains(t, err, "accounts[1]")
}

func TestSlotCmd(t *testing.T) {
	owner := core.Pubkey{0xa1}
	out, err := slotCmd(context.Background(), nil, []string{"-owner", owner.String()})
	require.NoError(t, err)

	program, err := core.ParsePubkey(config.DefaultProgramID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"slot": state.SlotAddress(program, owner).String()}, out)

	_, err = slotCmd(context.Background(), nil, []string{"-owner", "xyz"})
	assert.Error(t, err)
}

func TestOpsCmd(t *testing.T) {
	out, err := opsCmd(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out, processor.OpRebalance)
}
