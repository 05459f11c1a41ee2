package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123"

func TestIssueVerify(t *testing.T) {
	v, err := NewVerifier(ModeHMAC, secret)
	require.NoError(t, err)
	tok, err := v.Issue("ops", RoleOperator, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, Principal{Subject: "ops", Role: RoleOperator}, p)
	require.True(t, p.Can(RoleViewer))
	require.True(t, p.Can(RoleOperator))

	viewer, err := v.Issue("dash", RoleViewer, time.Hour)
	require.NoError(t, err)
	p, err = v.Verify(viewer)
	require.NoError(t, err)
	require.False(t, p.Can(RoleOperator))
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewVerifier(ModeHMAC, secret)
	require.NoError(t, err)

	_, err = v.Verify("")
	require.ErrorIs(t, err, ErrNoToken)

	expired, err := v.Issue("ops", RoleOperator, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	require.Error(t, err)

	other, err := NewVerifier(ModeHMAC, "another-secret-of-length")
	require.NoError(t, err)
	forged, err := other.Issue("ops", RoleOperator, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(forged)
	require.Error(t, err)

	odd, err := v.Issue("ops", "root", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(odd)
	require.ErrorContains(t, err, "unknown role")
}

func TestModes(t *testing.T) {
	v, err := NewVerifier("", "")
	require.NoError(t, err)
	p, err := v.Verify("")
	require.NoError(t, err)
	require.True(t, p.Can(RoleOperator))
	_, err = v.Issue("x", RoleViewer, time.Hour)
	require.Error(t, err)

	_, err = NewVerifier(ModeHMAC, "short")
	require.Error(t, err)
	_, err = NewVerifier("jwks", secret)
	require.Error(t, err)
}
