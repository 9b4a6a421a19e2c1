package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelbox/backoffice/pkg/authsdk"
)

func TestLockoutAndAdminUnlock(t *testing.T) {
	requireContainers(t)
	mail := setupMailpit(t)
	client := startService(t, mail, map[string]string{"AUTH_LOCKOUT_THRESHOLD": "3"})
	bootstrapAdmin(t, client)
	admin := signIn(t, client, mail, adminEmail, adminPassword, 1)

	const staffEmail = "staff@jewelbox.test"
	const staffPassword = "Counter-Top-42"
	staff, err := admin.CreateUser(t.Context(), authsdk.CreateUserRequest{
		Name:     "Shop Floor",
		Email:    staffEmail,
		Password: staffPassword,
		Role:     "staff",
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.Login(t.Context(), staffEmail, "not it")
		assertErrorCode(t, err, authsdk.ErrorCodeInvalidCredentials)
	}

	_, err = client.Login(t.Context(), staffEmail, staffPassword)
	assertErrorCode(t, err, authsdk.ErrorCodeAccountLocked, "the right password must not open a locked account")
	assert.Equal(t, 423, authsdk.StatusCode(err))

	unlocked, err := admin.UnlockUser(t.Context(), staff.ID)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, unlocked.ID)

	signIn(t, client, mail, staffEmail, staffPassword, 1)
}

func TestDeactivatedUserCannotSignIn(t *testing.T) {
	requireContainers(t)
	mail := setupMailpit(t)
	client := startService(t, mail, nil)
	bootstrapAdmin(t, client)
	admin := signIn(t, client, mail, adminEmail, adminPassword, 1)

	const email = "leaver@jewelbox.test"
	user, err := admin.CreateUser(t.Context(), authsdk.CreateUserRequest{
		Name:     "Leaver",
		Email:    email,
		Password: "Goodbye-And-Thanks",
		Role:     "staff",
	})
	require.NoError(t, err)
	session := signIn(t, client, mail, email, "Goodbye-And-Thanks", 1)

	updated, err := admin.SetUserActive(t.Context(), user.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = session.Me(t.Context())
	assertErrorCode(t, err, authsdk.ErrorCodeUnauthorized, "live sessions end with deactivation")

	_, err = client.Login(t.Context(), email, "Goodbye-And-Thanks")
	assertErrorCode(t, err, authsdk.ErrorCodeAccountDeactivated)
}
