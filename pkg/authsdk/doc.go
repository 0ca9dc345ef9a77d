/*
Package authsdk provides a client SDK for the Inkwell authentication service.

The package is organized around two main types:

  - Client: unauthenticated operations (registration, login, health checks)
  - Session: authenticated operations bound to a server-side session cookie

Create a Client to reach public endpoints and log in:

	client := authsdk.NewClient("https://auth.inkwell.example")

	session, challenge, err := client.Login(ctx, "reader@example.com", "hunter2!Aa", false)
	if err != nil {
		// handle invalid credentials, lockout, etc.
	}
	if challenge != "" {
		// account has two-factor auth enabled; finish with a code
		session, err = client.CompleteTwoFactor(ctx, challenge, "123456", false)
	}

Sessions carry the session cookie in an internal jar and transparently fetch
and attach the CSRF token on state-changing calls:

	info, err := session.Info(ctx)
	err = session.ChangePassword(ctx, oldPw, newPw)
	err = session.Logout(ctx)
*/
package authsdk
