package patcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/domain"
)

type fakeStore struct {
	existing map[string]bool
	released map[string]*domain.Concept
}

func (f *fakeStore) ExistingAtOrAfter(dbc dbctx.Context, ids []string, effectiveTime int, strictlyAfter bool) (map[string]bool, error) {
	return f.existing, nil
}

func (f *fakeStore) LastReleased(dbc dbctx.Context, ids []string) (map[string]*domain.Concept, error) {
	return f.released, nil
}

func et(v int) *int { return &v }

func newDBC() dbctx.Context { return dbctx.New(context.Background(), nil) }

func TestPatch_ClearEffectiveTimes(t *testing.T) {
	incoming := []*domain.Concept{
		{Component: domain.Component{ID: "1", EffectiveTime: et(20240101), Released: true, ReleaseHash: "h"}},
	}
	store := &fakeStore{}
	counters := &Counters{}

	out, err := Patch[*domain.Concept](newDBC(), store, Config{ClearEffectiveTimes: true, PatchReleaseVersion: PatchReleaseVersionDisabled}, incoming, counters)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].EffectiveTime)
	assert.False(t, out[0].Released)
	assert.Empty(t, out[0].ReleaseHash)
}

func TestPatch_PatchReleaseVersionSkipsExisting(t *testing.T) {
	incoming := []*domain.Concept{
		{Component: domain.Component{ID: "1", EffectiveTime: et(20240101)}},
		{Component: domain.Component{ID: "2", EffectiveTime: et(20240101)}},
	}
	store := &fakeStore{existing: map[string]bool{"1": true}}
	counters := &Counters{}

	out, err := Patch[*domain.Concept](newDBC(), store, Config{PatchReleaseVersion: 20240101}, incoming, counters)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ID)
	assert.Equal(t, 1, counters.Skipped)
}

func TestPatch_Disabled_KeepsEverything(t *testing.T) {
	incoming := []*domain.Concept{
		{Component: domain.Component{ID: "1", EffectiveTime: et(20240101)}},
	}
	store := &fakeStore{existing: map[string]bool{"1": true}}
	counters := &Counters{}

	out, err := Patch[*domain.Concept](newDBC(), store, Config{PatchReleaseVersion: PatchReleaseVersionDisabled}, incoming, counters)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 0, counters.Skipped)
}

func TestPatch_CopyReleaseFields_SameEnvelopeRestoresEffectiveTime(t *testing.T) {
	incoming := []*domain.Concept{
		{Component: domain.Component{ID: "1", EffectiveTime: nil}},
	}
	store := &fakeStore{
		released: map[string]*domain.Concept{
			"1": {Component: domain.Component{ID: "1", ReleaseHash: "h", ReleasedEffectiveTime: et(20230101)}},
		},
	}
	counters := &Counters{}

	out, err := Patch[*domain.Concept](newDBC(), store, Config{CopyReleaseFields: true, PatchReleaseVersion: PatchReleaseVersionDisabled}, incoming, counters)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].EffectiveTime)
	assert.Equal(t, 20230101, *out[0].EffectiveTime)
	assert.Equal(t, "h", out[0].ReleaseHash)
}

func TestPatch_CopyReleaseFields_SkipsAlreadyReleasedRows(t *testing.T) {
	incoming := []*domain.Concept{
		{Component: domain.Component{ID: "1", EffectiveTime: et(20240101)}},
	}
	store := &fakeStore{
		released: map[string]*domain.Concept{
			"1": {Component: domain.Component{ID: "1", ReleaseHash: "h", ReleasedEffectiveTime: et(20230101)}},
		},
	}
	counters := &Counters{}

	out, err := Patch[*domain.Concept](newDBC(), store, Config{CopyReleaseFields: true, PatchReleaseVersion: PatchReleaseVersionDisabled}, incoming, counters)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].EffectiveTime)
	assert.Equal(t, 20240101, *out[0].EffectiveTime)
}
