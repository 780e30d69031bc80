package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holachat/pkg/errors"
)

func TestParseSeed(t *testing.T) {
	input, err := ParseSeed("7:Alice:s3cr:et")
	require.NoError(t, err)
	assert.Equal(t, RegisterInput{ID: "7", Name: "Alice", Password: "s3cr:et"}, input)

	for _, bad := range []string{"", "7", "7:Alice", "7::pw", ":Alice:pw"} {
		_, err := ParseSeed(bad)
		assert.True(t, errors.Is(err, "BAD_REQUEST"), bad)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	session, err := b.auth.Login(ctx, "7", "pw7")
	require.NoError(t, err)
	assert.Equal(t, "7", string(session.ID))
	assert.Equal(t, "Alice", session.Name)
	assert.Equal(t, "member", session.Role)
	require.NotEmpty(t, session.Token)

	userID, err := b.auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "7", userID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	_, err := b.auth.Login(ctx, "7", "wrong")
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))

	_, err = b.auth.Login(ctx, "404", "pw")
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))

	_, err = b.auth.Authenticate(ctx, "garbage")
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))
}

func TestSeedSkipsExistingAccounts(t *testing.T) {
	b := newBackend(t)

	require.NoError(t, b.auth.Seed(context.Background(), []RegisterInput{{ID: "7", Name: "Other", Password: "x"}}))
	account, err := b.accounts.GetByID(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "Alice", account.Name)

	_, err = b.auth.Register(context.Background(), RegisterInput{ID: "8"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}
