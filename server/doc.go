// Package server authenticates inbound service requests and signs the
// responses to them.
//
// Every request must carry an X-Service header naming the calling service.
// The identity is resolved through a registry.Registry before anything else
// happens. Services that are not exempt must also send a Date header and an
// X-Signature over
//
//	"{Date}\n{url}\n{body}"
//
// made with their private key. Exempt services skip signatures entirely but
// can be pinned to a single source address.
//
// Responses with status 200 are signed over
//
//	"{identity}\n{Date}\n{url}\n{body}"
//
// so the caller can verify them with the same identity's key.
//
// # Middleware
//
//	auth, err := server.NewAuthenticator(server.Config{
//	    Registry: reg,
//	    Log:      logrus.WithField("component", "auth"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mw, err := server.Middleware(server.MiddlewareConfig{Authenticator: auth})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	api := router.PathPrefix("/api").Subrouter()
//	api.Use(mw)
//	api.Handle("/accounts/{id}", server.Handle(func(r *http.Request) (server.Result, error) {
//	    svc := server.ServiceFromContext(r.Context())
//	    return server.Result{"caller": svc.ID}, nil
//	})).Methods(http.MethodPost)
//
// Every authentication failure is answered with 400 Bad Request and one of
// four fixed messages; the details are logged only.
package server
