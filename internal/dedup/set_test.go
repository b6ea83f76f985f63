package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/rpattn/streamgate/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubKeyRepo struct {
	stored   []string
	addCalls [][]string
	addErr   error
	addErrs  []error
	listErr  error
	cleared  bool
}

func (r *stubKeyRepo) List(context.Context) ([]string, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]string(nil), r.stored...), nil
}

func (r *stubKeyRepo) Add(_ context.Context, keys []string) error {
	r.addCalls = append(r.addCalls, append([]string(nil), keys...))
	if len(r.addErrs) > 0 {
		err := r.addErrs[0]
		r.addErrs = r.addErrs[1:]
		if err != nil {
			return err
		}
	} else if r.addErr != nil {
		return r.addErr
	}
	r.stored = append(r.stored, keys...)
	return nil
}

func (r *stubKeyRepo) Clear(context.Context) error {
	r.cleared = true
	r.stored = nil
	return nil
}

var _ repository.ProcessedKeyRepository = (*stubKeyRepo)(nil)

func TestLoadSeedsFromRepository(t *testing.T) {
	set, err := Load(context.Background(), &stubKeyRepo{stored: []string{"events:1"}})
	require.NoError(t, err)
	assert.True(t, set.Seen("events:1"))
	assert.False(t, set.Seen("events:2"))
	assert.Equal(t, 1, set.Len())
}

func TestLoadPropagatesError(t *testing.T) {
	_, err := Load(context.Background(), &stubKeyRepo{listErr: errors.New("disk gone")})
	assert.Error(t, err)
}

func TestMarkPersistsOnlyNewKeys(t *testing.T) {
	repo := &stubKeyRepo{stored: []string{"events:1"}}
	set, err := Load(context.Background(), repo)
	require.NoError(t, err)

	fresh, err := set.Mark(context.Background(), "events:1", "events:2", "events:2", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"events:2"}, fresh)
	require.Len(t, repo.addCalls, 1)
	assert.Equal(t, []string{"events:2"}, repo.addCalls[0])

	fresh, err = set.Mark(context.Background(), "events:2")
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.Len(t, repo.addCalls, 1, "no write when nothing is new")
}

func TestMarkKeepsKeysOnPersistFailure(t *testing.T) {
	repo := &stubKeyRepo{addErr: errors.New("read-only")}
	set, err := Load(context.Background(), repo)
	require.NoError(t, err)

	_, err = set.Mark(context.Background(), "events:9")
	assert.Error(t, err)
	assert.True(t, set.Seen("events:9"))
}

func TestMarkRetriesKeysFromFailedWrite(t *testing.T) {
	ctx := context.Background()
	repo := &stubKeyRepo{addErrs: []error{errors.New("disk full"), nil}}
	set, err := Load(ctx, repo)
	require.NoError(t, err)

	_, err = set.Mark(ctx, "events:1")
	require.Error(t, err)
	assert.Equal(t, 1, set.Unpersisted())

	fresh, err := set.Mark(ctx, "events:2")
	require.NoError(t, err)
	assert.Equal(t, []string{"events:2"}, fresh)
	assert.Equal(t, 0, set.Unpersisted())
	assert.Equal(t, []string{"events:1", "events:2"}, repo.addCalls[1])

	reloaded, err := Load(ctx, repo)
	require.NoError(t, err)
	assert.True(t, reloaded.Seen("events:1"))
	assert.True(t, reloaded.Seen("events:2"))
}

func TestMarkRetriesEvenWithoutNewKeys(t *testing.T) {
	ctx := context.Background()
	repo := &stubKeyRepo{addErrs: []error{errors.New("disk full"), nil}}
	set, err := Load(ctx, repo)
	require.NoError(t, err)

	_, err = set.Mark(ctx, "events:1")
	require.Error(t, err)

	fresh, err := set.Mark(ctx, "events:1")
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.Equal(t, []string{"events:1"}, repo.stored)
}

func TestClearDropsUnpersistedKeys(t *testing.T) {
	ctx := context.Background()
	repo := &stubKeyRepo{addErrs: []error{errors.New("disk full")}}
	set, err := Load(ctx, repo)
	require.NoError(t, err)

	_, err = set.Mark(ctx, "events:1")
	require.Error(t, err)
	require.NoError(t, set.Clear(ctx))
	assert.Equal(t, 0, set.Unpersisted())

	_, err = set.Mark(ctx, "events:2")
	require.NoError(t, err)
	assert.Equal(t, []string{"events:2"}, repo.stored)
}

func TestClear(t *testing.T) {
	repo := &stubKeyRepo{stored: []string{"events:1", "events:2"}}
	set, err := Load(context.Background(), repo)
	require.NoError(t, err)

	require.NoError(t, set.Clear(context.Background()))
	assert.True(t, repo.cleared)
	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Seen("events:1"))
}
