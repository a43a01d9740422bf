package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civita/pkg/faults"
)

func TestMintAndParse(t *testing.T) {
	svc := NewService("test-key", "civita-test", time.Hour)
	sessionID := uuid.New()

	signed, err := svc.Mint(sessionID, "uid-1", "a@x.com")
	require.NoError(t, err)

	claims, err := svc.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, sessionID.String(), claims.SessionID)
	assert.Equal(t, "uid-1", claims.UID)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "civita-test", claims.Issuer)
}

func TestParseRejectsWrongKey(t *testing.T) {
	minter := NewService("key-one", "civita-test", time.Hour)
	parser := NewService("key-two", "civita-test", time.Hour)

	signed, err := minter.Mint(uuid.New(), "uid-1", "a@x.com")
	require.NoError(t, err)

	_, err = parser.Parse(signed)
	assert.True(t, faults.HasCode(err, faults.CodeRequiresReauth))
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	minter := NewService("test-key", "someone-else", time.Hour)
	parser := NewService("test-key", "civita-test", time.Hour)

	signed, err := minter.Mint(uuid.New(), "uid-1", "a@x.com")
	require.NoError(t, err)

	_, err = parser.Parse(signed)
	assert.True(t, faults.HasCode(err, faults.CodeRequiresReauth))
}

func TestParseRejectsExpired(t *testing.T) {
	svc := NewService("test-key", "civita-test", -time.Minute)

	signed, err := svc.Mint(uuid.New(), "uid-1", "a@x.com")
	require.NoError(t, err)

	_, err = svc.Parse(signed)
	assert.True(t, faults.HasCode(err, faults.CodeRequiresReauth))
}

func TestParseRejectsGarbage(t *testing.T) {
	svc := NewService("test-key", "civita-test", time.Hour)
	_, err := svc.Parse("not-a-token")
	assert.True(t, faults.HasCode(err, faults.CodeRequiresReauth))
}
