package stun

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	txID, err := NewTransactionID()
	require.NoError(t, err)

	m := Message{
		Type:          BindingRequest,
		TransactionID: txID,
		Attributes: []Attribute{
			{Type: AttrXORMappedAddress, Value: XORMappedAddress([4]byte{192, 168, 1, 5}, 54321)},
		},
	}
	raw := Encode(m)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, BindingRequest, decoded.Type)
	require.Equal(t, txID, decoded.TransactionID)
	require.Len(t, decoded.Attributes, 1)

	ip, port, err := DecodeXORMappedAddress(decoded.Attributes[0].Value)
	require.NoError(t, err)
	require.Equal(t, [4]byte{192, 168, 1, 5}, ip)
	require.Equal(t, uint16(54321), port)
}

func TestFingerprintRoundTrip(t *testing.T) {
	txID, err := NewTransactionID()
	require.NoError(t, err)
	m := Message{
		Type:          BindingRequest,
		TransactionID: txID,
		Attributes: []Attribute{
			{Type: AttrFingerprint},
		},
	}
	raw := Encode(m)
	require.True(t, VerifyFingerprint(raw))

	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-1] ^= 0xFF
	require.False(t, VerifyFingerprint(tampered))
}

func TestDecodeRejectsBadCookie(t *testing.T) {
	raw := make([]byte, headerSize)
	raw[4] = 0xFF
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestCandidatePriorityOrdering(t *testing.T) {
	host := Candidate{Type: CandidateHost, LocalPref: 65535, Component: 1}
	srflx := Candidate{Type: CandidateServerReflexive, LocalPref: 65535, Component: 1}
	prflx := Candidate{Type: CandidatePeerReflexive, LocalPref: 65535, Component: 1}
	relay := Candidate{Type: CandidateRelay, LocalPref: 65535, Component: 1}

	require.Greater(t, host.Priority(), srflx.Priority())
	require.Greater(t, srflx.Priority(), prflx.Priority())
	require.Greater(t, prflx.Priority(), relay.Priority())
}
