// Package muxhandlers provides the gorilla/mux middleware that surrounds
// signed endpoints: request IDs, panic recovery, access logging and reverse
// proxy header handling.
//
// ProxyHeadersMiddleware must run before the signing middleware when the
// service sits behind a proxy, since the signed URL is rebuilt from the
// scheme and host the caller used:
//
//	proxy, err := muxhandlers.ProxyHeadersMiddleware(muxhandlers.ProxyHeadersConfig{
//	    TrustedProxies: []string{"10.0.0.0/8"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := mux.NewRouter()
//	r.Use(
//	    muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{}),
//	    muxhandlers.RecoveryMiddleware(muxhandlers.RecoveryConfig{Log: logger}),
//	    muxhandlers.AccessLogMiddleware(muxhandlers.AccessLogConfig{Log: logger}),
//	    proxy,
//	)
package muxhandlers
