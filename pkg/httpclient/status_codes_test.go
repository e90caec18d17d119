package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusCodes(t *testing.T) {
	tests := []struct {
		input    string
		contains []int
		excludes []int
		wantErr  bool
	}{
		{input: "200", contains: []int{200}, excludes: []int{201}},
		{input: "200-299,404", contains: []int{200, 250, 299, 404}, excludes: []int{300, 403}},
		{input: " 401 , 500-503 ", contains: []int{401, 502}, excludes: []int{504}},
		{input: "abc", wantErr: true},
		{input: "299-200", wantErr: true},
		{input: "700", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			set, err := ParseStatusCodes(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, c := range tt.contains {
				assert.True(t, set.Contains(c), "expected %d", c)
			}
			for _, c := range tt.excludes {
				assert.False(t, set.Contains(c), "unexpected %d", c)
			}
		})
	}
}

func TestStatusCodeSet_EmptyAndString(t *testing.T) {
	set, err := ParseStatusCodes("  ")
	require.NoError(t, err)
	assert.Nil(t, set)
	assert.True(t, set.IsEmpty())
	assert.False(t, set.Contains(200))

	assert.Equal(t, "200-299,404", MustParseStatusCodes("200-299, 404").String())
	assert.Panics(t, func() { MustParseStatusCodes("x") })
}
