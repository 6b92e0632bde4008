package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLayer_SetGet(t *testing.T) {
	ctx := context.Background()
	layer := NewMemoryLayer(2, time.Hour)
	key := Key{Year: "2023", Semester: "I", RegNo: "22104134010"}

	_, err := layer.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrCacheMiss))

	res := &result.StudentResult{RegistrationNo: "22104134010"}
	require.NoError(t, layer.Set(ctx, key, NewEntry(res, time.Hour)))

	got, err := layer.Get(ctx, key)
	require.NoError(t, err)
	assert.Same(t, res, got.Result)

	require.NoError(t, layer.Delete(ctx, key))
	assert.Equal(t, 0, layer.Len())
}

func TestMemoryLayer_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	layer := NewMemoryLayer(2, time.Hour)

	for _, regNo := range []string{"22104134010", "22104134011", "22104134012"} {
		key := Key{Year: "2023", Semester: "I", RegNo: regNo}
		require.NoError(t, layer.Set(ctx, key, NewEntry(&result.StudentResult{RegistrationNo: regNo}, time.Hour)))
	}

	assert.Equal(t, 2, layer.Len())
	_, err := layer.Get(ctx, Key{Year: "2023", Semester: "I", RegNo: "22104134010"})
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryLayer_RejectsEmptyEntries(t *testing.T) {
	layer := NewMemoryLayer(0, time.Hour)
	err := layer.Set(context.Background(), Key{}, &Entry{})
	assert.True(t, errors.Is(err, ErrInvalidEntry))
}
