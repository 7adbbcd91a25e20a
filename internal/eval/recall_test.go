package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecallAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{
			name:      "partial overlap",
			relevant:  []string{"a", "b", "c"},
			retrieved: []string{"b", "x", "a"},
			k:         3,
			want:      2.0 / 3.0,
		},
		{
			name:      "perfect",
			relevant:  []string{"a", "b"},
			retrieved: []string{"b", "a"},
			k:         2,
			want:      1.0,
		},
		{
			name:      "zero",
			relevant:  []string{"a"},
			retrieved: []string{"x", "y"},
			k:         2,
			want:      0.0,
		},
		{
			name:      "empty relevant",
			relevant:  nil,
			retrieved: []string{"a"},
			k:         1,
			want:      0.0,
		},
		{
			name:      "empty retrieved",
			relevant:  []string{"a"},
			retrieved: nil,
			k:         3,
			want:      0.0,
		},
		{
			name:      "k limits the window",
			relevant:  []string{"c"},
			retrieved: []string{"a", "b", "c"},
			k:         2,
			want:      0.0,
		},
		{
			name:      "k beyond retrieved is clamped",
			relevant:  []string{"a"},
			retrieved: []string{"a"},
			k:         10,
			want:      1.0,
		},
		{
			name:      "duplicates are set semantics",
			relevant:  []string{"a", "a", "b"},
			retrieved: []string{"a", "a"},
			k:         2,
			want:      0.5,
		},
		{
			name:      "zero k",
			relevant:  []string{"a"},
			retrieved: []string{"a"},
			k:         0,
			want:      0.0,
		},
		{
			name:      "negative k",
			relevant:  []string{"a"},
			retrieved: []string{"a"},
			k:         -3,
			want:      0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecallAtK(tt.relevant, tt.retrieved, tt.k)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRecallAtKBounds(t *testing.T) {
	relevant := []string{"a", "b", "c", "d"}
	retrieved := []string{"c", "x", "a", "y"}
	for k := 1; k <= 6; k++ {
		got := RecallAtK(relevant, retrieved, k)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}
