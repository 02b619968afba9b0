// Package client signs requests to other services and verifies their signed
// responses.
//
// Each request gets a Date header, the caller's identity in X-Service and,
// unless the identity is exempt, an X-Signature over
// "{Date}\n{url}\n{body}". A 200 response must carry an X-Signature over
// "{identity}\n{Date}\n{url}\n{body}"; other statuses are returned without
// verification.
//
//	auth, err := client.NewAuthenticator(client.Config{
//	    Identity: "billing",
//	    Keys:     signing.KeyPair{Private: priv, Public: pub},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	api, err := client.NewClient(client.ClientConfig{
//	    Endpoint:      "https://accounts.internal/api",
//	    Authenticator: auth,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// POST https://accounts.internal/api/users/lookup/42 with body "name=alice"
//	resp, err := api.Endpoint("users", "lookup").Call(ctx, url.Values{"name": {"alice"}}, 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !resp.OK() {
//	    // no result
//	}
//
// The signing Transport can also be used on its own with any *http.Client.
package client
