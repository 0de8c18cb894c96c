package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShare(t *testing.T) {
	tests := []struct {
		name  string
		count int64
		total int64
		want  string
	}{
		{name: "two thirds rounds to one place", count: 10, total: 15, want: "66.7"},
		{name: "one third rounds to one place", count: 5, total: 15, want: "33.3"},
		{name: "whole share", count: 4, total: 4, want: "100"},
		{name: "half share", count: 1, total: 2, want: "50"},
		{name: "zero total is zero not an error", count: 3, total: 0, want: "0"},
		{name: "zero count", count: 0, total: 9, want: "0"},
		{name: "negative total is zero", count: 3, total: -1, want: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Share(tc.count, tc.total).String())
		})
	}
}

func TestShare_SumsCloseToHundred(t *testing.T) {
	// 10 vs 5 selections: 66.7 + 33.3 = 100 exactly after rounding.
	a := Share(10, 15)
	b := Share(5, 15)
	require.Equal(t, "100", a.Add(b).String())
}
