package gateway

import (
	"net/http"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/rs/zerolog"
)

// TenantStage resolves the tenant from the Host header and publishes it in the
// tenant header. Identity headers supplied by the client are dropped here, so only
// the gateway itself can set them.
type TenantStage struct {
	headers Headers
}

func NewTenantStage(headers Headers) *TenantStage {
	return &TenantStage{headers: headers}
}

func (s *TenantStage) Process(r *http.Request) Result {
	key, ok := tenants.ResolveKey(r.Host)
	if !ok {
		return Reject(apperrors.Wrap(apperrors.KindTenantUnresolved, apperrors.ErrTenantUnresolved, "Unable to resolve tenant"))
	}

	logger := zerolog.Ctx(r.Context()).With().Str("tenant", key).Logger()
	ctx := tenants.WithKey(logger.WithContext(r.Context()), key)

	out := r.Clone(ctx)
	out.Header.Set(s.headers.Tenant, key)
	out.Header.Del(s.headers.Identity)
	out.Header.Del(s.headers.SkipAuth)
	return Continue(out)
}
