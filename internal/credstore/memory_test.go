package credstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civita/internal/token"
	"civita/pkg/faults"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(token.NewService("test-key", "civita-test", time.Hour))
}

func backendCode(t *testing.T, err error) string {
	t.Helper()
	var be *Error
	require.True(t, errors.As(err, &be))
	return be.Code
}

func TestSignUpAndSignIn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.SignUp(ctx, "A@X.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", created.Email, "addresses are normalized")
	assert.NotEmpty(t, created.Token)

	sess, err := store.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, sess.UID)
	assert.NotEqual(t, created.ID, sess.ID, "each sign-in issues a fresh session")
}

func TestSignUpRejections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SignUp(ctx, "not-an-email", "secret1")
	assert.Equal(t, faults.BackendInvalidEmail, backendCode(t, err))

	_, err = store.SignUp(ctx, "a@x.com", "short")
	assert.Equal(t, faults.BackendWeakPassword, backendCode(t, err))

	_, err = store.SignUp(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	_, err = store.SignUp(ctx, "a@x.com", "secret2")
	assert.Equal(t, faults.BackendEmailAlreadyInUse, backendCode(t, err))
}

func TestSignInRejections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SignIn(ctx, "missing@x.com", "secret1")
	assert.Equal(t, faults.BackendUserNotFound, backendCode(t, err))

	_, err = store.SignUp(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = store.SignIn(ctx, "a@x.com", "wrong")
	assert.Equal(t, faults.BackendWrongPassword, backendCode(t, err))

	store.Disable("a@x.com")
	_, err = store.SignIn(ctx, "a@x.com", "secret1")
	assert.Equal(t, faults.BackendUserDisabled, backendCode(t, err))
}

func TestSignInThrottleAfterRepeatedFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SignUp(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < failedSignInCap; i++ {
		_, err = store.SignIn(ctx, "a@x.com", "wrong")
		assert.Equal(t, faults.BackendWrongPassword, backendCode(t, err))
	}

	_, err = store.SignIn(ctx, "a@x.com", "secret1")
	assert.Equal(t, faults.BackendTooManyRequests, backendCode(t, err),
		"even the right password is throttled once the cap is hit")
}

func TestSignOutIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.SignUp(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, store.SignOut(ctx, sess.ID))
	_, found := store.FindSession(sess.ID)
	assert.False(t, found)

	require.NoError(t, store.SignOut(ctx, sess.ID))
}

func TestOnAuthStateChanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var events []*Session
	unsubscribe := store.OnAuthStateChanged(func(s *Session) {
		events = append(events, s)
	})

	sess, err := store.SignUp(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, store.SignOut(ctx, sess.ID))

	require.Len(t, events, 2)
	assert.Equal(t, sess.UID, events[0].UID)
	assert.Nil(t, events[1], "sign-out notifies with a nil session")

	unsubscribe()
	_, err = store.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, events, 2, "no notifications after unsubscribe")
}
