package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowContainsIsSubstringBothWays(t *testing.T) {
	w := NewWindow(10)
	w.Push("isbn:9781234567897")
	w.Push("garden")

	require.True(t, w.Contains("9781234567897"), "value inside an entry")
	require.True(t, w.Contains("gardening"), "entry inside the value")
	require.True(t, w.Contains("garden"))
	require.False(t, w.Contains("9780000000000"))
	require.False(t, w.Contains(""))
}

func TestWindowPushDoesNotTrim(t *testing.T) {
	w := NewWindow(3)
	for i := range 5 {
		w.Push(fmt.Sprintf("v%d", i))
	}
	require.Equal(t, 5, w.Len())

	evicted := w.Trim()
	require.Equal(t, 2, evicted)
	require.Equal(t, 3, w.Len())
	require.Equal(t, []string{"v2", "v3", "v4"}, w.Values())
}

func TestWindowTrimIsFIFO(t *testing.T) {
	w := NewWindow(2)
	w.Push("first")
	w.Push("second")
	require.Equal(t, 0, w.Trim())

	w.Push("third")
	w.Trim()
	require.False(t, w.Contains("first"))
	require.Equal(t, []string{"second", "third"}, w.Values())
}

func TestWindowNeverExceedsMaxAfterTrim(t *testing.T) {
	w := NewWindow(7)
	for round := range 20 {
		for i := range round {
			w.Push(fmt.Sprintf("r%d-%d", round, i))
		}
		w.Trim()
		require.LessOrEqual(t, w.Len(), w.Max())
	}
}

func TestNewWindowDefaultSize(t *testing.T) {
	require.Equal(t, DefaultSize, NewWindow(0).Max())
	w := NewWindow(5)
	w.Push("")
	require.Equal(t, 0, w.Len())
}
