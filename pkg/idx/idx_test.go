package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewProducesValidSortableIDs(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()

	require.False(t, a.IsZero())
	require.False(t, b.IsZero())

	// Monotonic entropy guarantees strict ordering within one process.
	require.Equal(t, -1, func() int {
		if a.String() < b.String() {
			return -1
		}
		return 1
	}())
}

func TestParse(t *testing.T) {
	t.Parallel()

	id := New()
	parsed, err := Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Parse("not-a-ulid")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	id := NewAt(at)
	require.WithinDuration(t, at, id.Time(), time.Millisecond)
}
