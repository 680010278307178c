package provisioner

import "errors"

// Error kinds. Every error returned by Provision wraps exactly one of these,
// so callers classify failures with errors.Is.
var (
	ErrInvalidRequest   = errors.New("invalid provision request")
	ErrAccountLookup    = errors.New("user store lookup failed")
	ErrAmbiguousAccount = errors.New("user store did not return exactly one user")
	ErrUnlinkedAccount  = errors.New("no account associated with user")
	ErrDelegation       = errors.New("credential delegation failed")
	ErrConfiguration    = errors.New("build configuration error")
	ErrResolution       = errors.New("machine image resolution failed")
	ErrProvisioning     = errors.New("instance provisioning failed")
	ErrPersistence      = errors.New("server registry write failed")
)

var kinds = []struct {
	err   error
	label string
}{
	{ErrInvalidRequest, "invalid_request"},
	{ErrAccountLookup, "account_lookup"},
	{ErrAmbiguousAccount, "ambiguous_account"},
	{ErrUnlinkedAccount, "unlinked_account"},
	{ErrDelegation, "delegation"},
	{ErrConfiguration, "configuration"},
	{ErrResolution, "resolution"},
	{ErrProvisioning, "provisioning"},
	{ErrPersistence, "persistence"},
}

// Kind returns a short label for err: "success" for nil, "unknown" when it
// wraps none of the kinds above.
func Kind(err error) string {
	if err == nil {
		return "success"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "unknown"
}
