package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCSRTable(t *testing.T) {
	// Row slicing
	{
		T, err := NewCSRTable(Index{0, 2, 2, 5}, Index{10, 11, 20, 21, 22})
		assert.NoError(t, err)
		assert.Equal(t, 3, T.NumRows())
		assert.Equal(t, Index{10, 11}, T.Row(0))
		assert.Len(t, T.Row(1), 0)
		assert.Equal(t, Index{20, 21, 22}, T.Row(2))
	}
	// Validation failures
	{
		_, err := NewCSRTable(Index{1, 2}, Index{0, 0})
		assert.Error(t, err)
		_, err = NewCSRTable(Index{0, 3, 2}, Index{0, 0})
		assert.Error(t, err)
		_, err = NewCSRTable(Index{0, 1}, Index{7, 8})
		assert.Error(t, err)
		_, err = NewCSRTable(Index{}, Index{})
		assert.Error(t, err)
	}
	// Empty table with zero rows is legal
	{
		T, err := NewCSRTable(Index{0}, nil)
		assert.NoError(t, err)
		assert.Equal(t, 0, T.NumRows())
	}
}

func TestIndex(t *testing.T) {
	{
		I := NewRange(2, 5)
		assert.Equal(t, Index{2, 3, 4, 5}, I)
		assert.Equal(t, Index{12, 13, 14, 15}, I.Add(10))
		assert.True(t, I.Contains(4))
		assert.False(t, I.Contains(6))
	}
	{
		I := Index{10, 20, 30}
		assert.Equal(t, Index{30, 10}, I.Subset(Index{2, 0}))
	}
}
