package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	scenehttp "github.com/aretw0/scenesync/pkg/adapters/http"
	"github.com/aretw0/scenesync/pkg/adapters/memory"
	"github.com/aretw0/scenesync/pkg/authority"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestAuthenticator_IssueVerify(t *testing.T) {
	a, err := scenehttp.NewAuthenticator(secret)
	require.NoError(t, err)

	token, err := a.Issue("editor", time.Hour)
	require.NoError(t, err)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "editor", claims.Subject)
	assert.Equal(t, scenehttp.TokenIssuer, claims.Issuer)
	require.NotNil(t, claims.ExpiresAt)
}

func TestAuthenticator_Rejects(t *testing.T) {
	a, err := scenehttp.NewAuthenticator(secret)
	require.NoError(t, err)
	other, err := scenehttp.NewAuthenticator([]byte("another-secret-of-32-bytes-long!"))
	require.NoError(t, err)

	foreign, err := other.Issue("editor", 0)
	require.NoError(t, err)
	expired, err := a.Issue("editor", -time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify(token)
			assert.ErrorIs(t, err, scenehttp.ErrUnauthorized)
		})
	}
}

func TestNewAuthenticator_ShortSecret(t *testing.T) {
	_, err := scenehttp.NewAuthenticator([]byte("short"))
	assert.Error(t, err)
}

func TestServer_RequiresToken(t *testing.T) {
	a, err := scenehttp.NewAuthenticator(secret)
	require.NoError(t, err)
	srv := httptest.NewServer(scenehttp.NewHandler(authority.New(memory.NewStore()), scenehttp.WithAuthenticator(a)))
	t.Cleanup(srv.Close)
	ctx := context.Background()

	anonymous := scenehttp.NewClient(srv.URL)
	_, err = anonymous.List(ctx)
	assert.ErrorIs(t, err, scenehttp.ErrUnauthorized)

	token, err := a.Issue("editor", time.Hour)
	require.NoError(t, err)
	client := scenehttp.NewClient(srv.URL, scenehttp.WithToken(token))
	require.NoError(t, client.Put(ctx, scene("doc")))
	ids, err := client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc"}, ids)

	// Health stays public.
	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// Query parameter fallback.
	res, err = http.Get(srv.URL + "/documents?access_token=" + token)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
