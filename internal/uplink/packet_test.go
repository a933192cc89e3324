package uplink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ValidPacket(t *testing.T) {
	data := []byte(`{"handshake":"482910","eda":1.2345,"isArtifact":false,"subject":"GUEST_USER","age":"29","sex":"MALE","node":"VAULT-HYD-SMS-ALPHA","ts":1700000000000}`)

	p, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "482910", p.Handshake)
	assert.Equal(t, 1.2345, p.EDA)
	assert.True(t, p.Matches("482910"))
	assert.False(t, p.Matches("000000"))
	assert.False(t, p.Ended())
}

func TestDecode_EndedPacket(t *testing.T) {
	p, err := Decode([]byte(`{"status":"ENDED","handshake":"482910","ts":1}`))
	require.NoError(t, err)
	assert.True(t, p.Ended())
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"null":           `null`,
		"garbage":        `{"eda":`,
		"no handshake":   `{"eda":1.0}`,
		"negative eda":   `{"handshake":"1","eda":-1}`,
		"unknown status": `{"handshake":"1","status":"PAUSED"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPacket))
		})
	}
}

func TestMatches_EmptyCodeNeverMatches(t *testing.T) {
	p := &Packet{}
	assert.False(t, p.Matches(""))
}

func TestNewEnded_Encode(t *testing.T) {
	data, err := NewEnded("123456", 42).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"handshake":"123456","eda":0,"status":"ENDED","ts":42}`, string(data))
}
