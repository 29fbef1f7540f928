package agents

import (
	"context"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/require"
)

func TestCommandCredential(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("plain token", func(t *testing.T) {
		cred, err := NewCommandCredential("echo plain-token")
		require.NoError(t, err)
		cred.now = func() time.Time { return now }

		tok, err := cred.GetToken(context.Background(), policy.TokenRequestOptions{})
		require.NoError(t, err)
		require.Equal(t, "plain-token", tok.Token)
		require.Equal(t, now.Add(commandTokenLifetime), tok.ExpiresOn)
	})

	t.Run("az cli json", func(t *testing.T) {
		cred, err := NewCommandCredential(`echo '{"accessToken":"abc","expires_on":1700000000}'`)
		require.NoError(t, err)

		tok, err := cred.GetToken(context.Background(), policy.TokenRequestOptions{})
		require.NoError(t, err)
		require.Equal(t, "abc", tok.Token)
		require.Equal(t, int64(1700000000), tok.ExpiresOn.Unix())
	})

	t.Run("json without token", func(t *testing.T) {
		cred, err := NewCommandCredential(`echo '{"expires_on":1}'`)
		require.NoError(t, err)
		_, err = cred.GetToken(context.Background(), policy.TokenRequestOptions{})
		require.ErrorContains(t, err, "no accessToken")
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := NewCommandCredential("  ")
		require.Error(t, err)
	})

	t.Run("failing command", func(t *testing.T) {
		cred, err := NewCommandCredential("false")
		require.NoError(t, err)
		_, err = cred.GetToken(context.Background(), policy.TokenRequestOptions{})
		require.ErrorContains(t, err, "run token command")
	})
}

func TestNewCredential(t *testing.T) {
	cred, err := NewCredential(CredentialOptions{Kind: CredentialCommand, Command: "echo tok"})
	require.NoError(t, err)
	require.IsType(t, &CommandCredential{}, cred)

	cred, err = NewCredential(CredentialOptions{})
	require.NoError(t, err)
	require.NotNil(t, cred)

	_, err = NewCredential(CredentialOptions{Kind: "kerberos"})
	require.ErrorContains(t, err, "unknown credential kind")
}
