/*
Package authsdk is a Go client for the back office authentication API.

# SDKClient vs Session

  - SDKClient: unauthenticated calls (login, code verification, bootstrap, health)
  - Session: calls made with a verified session token

Signing in is two calls. Login checks the password and emails a six-digit
code; VerifySecondFactor exchanges the code for a Session:

	client := authsdk.NewSDKClient("https://backoffice.example.com")

	pending, err := client.Login(ctx, "ada@example.com", password)
	if err != nil {
		return err
	}

	// The code arrives by email.
	session, err := client.VerifySecondFactor(ctx, pending.TempToken, code)
	if err != nil {
		return err
	}

	me, err := session.Me(ctx)

If the email went missing, ResendCode issues a new code against the same
temporary token. Only the most recent code is accepted.

# Errors

Every non-2xx response is returned as *Error carrying the HTTP status and a
stable error code:

	_, err := client.Login(ctx, email, password)
	if authsdk.IsCode(err, authsdk.ErrorCodeAccountLocked) {
		// wait, or ask an administrator to unlock the account
	}

Sessions do not refresh; once the session token expires or is logged out
every call fails with ErrorCodeUnauthorized and the caller signs in again.
*/
package authsdk
