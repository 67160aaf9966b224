package credential

import (
	"context"
	"os"
	"testing"

	domerrors "github.com/baiyu-ai/ragspace/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_FoundInEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	p := New()
	key, err := p.Lookup(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)
}

func TestLookup_MissingReturnsSentinel(t *testing.T) {
	os.Unsetenv("DOES_NOT_EXIST_API_KEY")
	p := New()
	_, err := p.Lookup(context.Background(), "does_not_exist")
	assert.ErrorIs(t, err, domerrors.ErrMissingAPIKey)
}
