package payment

import (
	"context"
	"fmt"
)

// InitializeRequest is the input to a provider transaction initialization.
// AmountMinor is in the currency's minor unit (e.g. kobo); the conversion
// happens before the adapter so no fractional ambiguity crosses the wire.
type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	CallbackURL string
}

// Authorization is the provider's answer to a successful initialization.
type Authorization struct {
	AuthorizationURL  string
	AccessCode        string
	ProviderReference string
}

// VerifyResult is the provider's verdict on a payment reference.
type VerifyResult struct {
	// Success is true only when the provider positively confirms the charge.
	Success bool
	// ProviderStatus is the provider's own status string (success, failed,
	// abandoned, ...).
	ProviderStatus string
	// Raw is the provider's response body, stored for audit.
	Raw []byte
}

// Gateway encapsulates outbound calls to the external payment provider. The
// provider is treated as untrusted, possibly slow, and possibly duplicating;
// every call carries a bounded timeout.
type Gateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

// GatewayError wraps a failure to reach the provider or to parse its
// response. It is distinct from a provider-reported decline: a GatewayError
// means the outcome is unknown and the operation may be retried.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
