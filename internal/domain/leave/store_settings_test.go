package leave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elms/internal/domain/settings"
	"elms/internal/platform/querier"
)

type recordingProvider struct {
	current settings.Settings
	seen    querier.Querier
}

func (p *recordingProvider) Current(ctx context.Context) (settings.Settings, error) {
	return p.current, nil
}

func (p *recordingProvider) Within(ctx context.Context, q querier.Querier) (settings.Settings, error) {
	p.seen = q
	return p.current, nil
}

type stubQuerier struct {
	querier.Querier
}

func TestStoreReadsSettingsThroughProvider(t *testing.T) {
	provider := &recordingProvider{current: settings.Defaults()}
	provider.current.ApprovalLevels = 3
	q := &stubQuerier{}
	store := &Store{DB: q, settings: provider}

	got, err := store.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.ApprovalLevels)
	assert.Same(t, q, provider.seen, "settings are read on the store's querier")
}
