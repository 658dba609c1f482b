package api

import (
	"net/http"

	"procurement_system/internal/models/tenant"
)

const (
	HeaderTenantId = "X-Tenant-Id"
	HeaderActorId  = "X-Actor-Id"
)

// TenantContext pulls the calling tenant and actor from request headers. The
// second return is false when the tenant header is absent.
func TenantContext(r *http.Request) (tenant.Context, bool) {
	tc := tenant.Context{
		TenantId: r.Header.Get(HeaderTenantId),
		ActorId:  r.Header.Get(HeaderActorId),
	}
	if tc.TenantId == "" {
		return tenant.Context{}, false
	}
	return tc, true
}
