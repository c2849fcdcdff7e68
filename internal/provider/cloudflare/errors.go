package cloudflare

import (
	"errors"

	"github.com/cloudflare/cloudflare-go"

	"github.com/Issei-177013/Cloudflare-Utils/internal/provider"
)

// classify maps cloudflare-go error types onto the engine's fault
// taxonomy. Anything unrecognized (network errors, 5xx, timeouts)
// falls through as transient so the engine retries next tick.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		authn      cloudflare.AuthenticationError
		authz      cloudflare.AuthorizationError
		notFound   cloudflare.NotFoundError
		badRequest cloudflare.RequestError
		rateLimit  cloudflare.RatelimitError
		service    cloudflare.ServiceError
	)
	switch {
	case errors.As(err, &authn), errors.As(err, &authz):
		return provider.NewFault(provider.FaultAuth, err)
	case errors.As(err, &notFound):
		return provider.NewFault(provider.FaultNotFound, err)
	case errors.As(err, &rateLimit):
		// Rate limits clear on their own; next-tick retry is enough.
		return provider.NewFault(provider.FaultTransient, err)
	case errors.As(err, &badRequest):
		return provider.NewFault(provider.FaultBadRequest, err)
	case errors.As(err, &service):
		return provider.NewFault(provider.FaultTransient, err)
	default:
		return provider.NewFault(provider.FaultTransient, err)
	}
}
