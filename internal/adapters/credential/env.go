// Package credential implements a CredentialProvider over environment
// variables, ported from original_source's get_api_key
// (`{PROVIDER}_API_KEY`). Production deployments behind the desktop
// shell supply their own vault-backed CredentialProvider; this is the
// CLI-friendly default.
package credential

import (
	"context"
	"fmt"
	"os"
	"strings"

	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
)

// EnvProvider implements ports.CredentialProvider by reading
// <PROVIDER>_API_KEY from the process environment.
type EnvProvider struct{}

// New creates an EnvProvider.
func New() *EnvProvider { return &EnvProvider{} }

// Lookup returns the API key for provider, or ErrMissingAPIKey.
func (e *EnvProvider) Lookup(ctx context.Context, provider string) (string, error) {
	envVar := fmt.Sprintf("%s_API_KEY", strings.ToUpper(provider))
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: set %s", domerrors.ErrMissingAPIKey, envVar)
}
