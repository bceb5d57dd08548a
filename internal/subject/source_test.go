package subject

import (
	"context"
	"errors"
	"testing"

	"github.com/lepinkainen/everybook/internal/contentfilter"
	"github.com/lepinkainen/everybook/internal/memory"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	batches [][]string
	errs    []error
	calls   int
	states  []State
	source  *Source
}

func (f *fakeProvider) FetchWords(context.Context) ([]string, error) {
	i := f.calls
	f.calls++
	if f.source != nil {
		f.states = append(f.states, f.source.State())
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return nil, nil
}

func TestNextUsesCacheBeforeFetching(t *testing.T) {
	p := &fakeProvider{batches: [][]string{{"garden", " ships ", "cats"}}}
	s := NewSource(p, contentfilter.New([]string{"zzz"}), memory.NewWindow(10))
	p.source = s
	require.Equal(t, StateEmpty, s.State())

	for _, want := range []string{"garden", "ships", "cats"} {
		got, err := s.Next(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, 1, p.calls)
	require.Equal(t, []State{StateFetching}, p.states)
	require.Equal(t, StateEmpty, s.State())
}

func TestNextStateReadyWhileCacheHasWords(t *testing.T) {
	p := &fakeProvider{batches: [][]string{{"garden", "ships"}}}
	s := NewSource(p, nil, nil)

	_, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateReady, s.State())
	require.Equal(t, []string{"ships"}, s.Cached())
}

func TestNextSkipsRejectedWordsWithoutFetching(t *testing.T) {
	recent := memory.NewWindow(10)
	recent.Push("garden")

	p := &fakeProvider{batches: [][]string{{"gardening", "badword", "Война", "ships"}}}
	s := NewSource(p, contentfilter.New([]string{"badword"}), recent,
		WithScriptCheck(contentfilter.IsNonLatinScript))

	got, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ships", got)
	require.Equal(t, 1, p.calls)
}

func TestNextFetchFailureLeavesSourceEmpty(t *testing.T) {
	p := &fakeProvider{errs: []error{errors.New("timeout")}}
	s := NewSource(p, nil, nil)

	_, err := s.Next(context.Background())
	require.ErrorContains(t, err, "timeout")
	require.Equal(t, StateEmpty, s.State())
	require.Equal(t, 1, p.calls, "no internal retry")
}

func TestNextEmptyBatch(t *testing.T) {
	p := &fakeProvider{batches: [][]string{{}, {"  "}}}
	s := NewSource(p, nil, nil)

	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, ErrNoWords)
	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrNoWords)
	require.Equal(t, 2, p.calls)
}

func TestNextFetchesAtMostOneBatchPerCall(t *testing.T) {
	p := &fakeProvider{batches: [][]string{{"badword", "badwords"}, {"ships"}}}
	s := NewSource(p, contentfilter.New([]string{"badword"}), nil)

	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, ErrBatchRejected)
	require.Equal(t, 1, p.calls)

	got, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ships", got)
	require.Equal(t, 2, p.calls)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "empty", StateEmpty.String())
	require.Equal(t, "fetching", StateFetching.String())
	require.Equal(t, "ready", StateReady.String())
	require.Equal(t, "State(9)", State(9).String())
}
