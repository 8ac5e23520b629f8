package record

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vidgrab/vidgrab/internal/util"
)

func TestVideoZeroTimestampSubstituted(t *testing.T) {
	var r reconciler

	before := util.NowMicros()
	got := r.Video(0)
	assert.Greater(t, got, int64(0))
	assert.GreaterOrEqual(t, got, before)
}

func TestVideoNonZeroTimestampPassesThrough(t *testing.T) {
	var r reconciler
	assert.Equal(t, int64(123456), r.Video(123456))
}

func TestAudioReconciliation(t *testing.T) {
	cases := []struct {
		name string
		in   []int64
		want []int64
	}{
		{
			name: "decreasing sequence stepped forward",
			in:   []int64{100, 90, 50},
			want: []int64{100, 100 + 23219, 100 + 23219 + 23219},
		},
		{
			name: "negative clamped to zero",
			in:   []int64{-500},
			want: []int64{0},
		},
		{
			name: "monotonic input unchanged",
			in:   []int64{0, 1000, 2000},
			want: []int64{0, 1000, 2000},
		},
		{
			name: "equal timestamps allowed",
			in:   []int64{1000, 1000, 999},
			want: []int64{1000, 1000, 1000 + 23219},
		},
		{
			name: "negative after progress stepped forward",
			in:   []int64{50000, -1},
			want: []int64{50000, 50000 + 23219},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r reconciler
			got := make([]int64, 0, len(tc.in))
			for _, pts := range tc.in {
				got = append(got, r.Audio(pts))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAudioAlwaysNonDecreasing(t *testing.T) {
	var r reconciler

	in := []int64{7, -3, 7, 100000, 5, 5, -1}
	last := int64(-1)
	for _, pts := range in {
		got := r.Audio(pts)
		assert.GreaterOrEqual(t, got, last)
		last = got
	}
}
