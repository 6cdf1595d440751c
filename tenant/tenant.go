// Package tenant carries the tenant a unit of work runs under.
package tenant

import "context"

// HeaderName is the request header the tenant id is read from.
const HeaderName = "X-Okapi-Tenant"

type ctxKey struct{}

// With returns a copy of ctx that executes under the given tenant.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the tenant stored in ctx, or an empty string.
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
