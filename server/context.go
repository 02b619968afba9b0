package server

import (
	"context"

	"github.com/vitalvas/svcauth/registry"
)

// serviceKey is the context key for the authenticated ServiceRecord.
type serviceKey struct{}

// ServiceFromContext returns the service record the request was authenticated
// as. Returns nil outside of Middleware.
func ServiceFromContext(ctx context.Context) *registry.ServiceRecord {
	if rec, ok := ctx.Value(serviceKey{}).(*registry.ServiceRecord); ok {
		return rec
	}

	return nil
}

// withService stores rec in ctx.
func withService(ctx context.Context, rec *registry.ServiceRecord) context.Context {
	return context.WithValue(ctx, serviceKey{}, rec)
}
