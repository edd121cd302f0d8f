package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Jane Doe", CleanString("  Jane Doe \n"))
	assert.Equal(t, "jane@test.com", CleanString(" Jane@Test.com ", true))
	assert.Equal(t, "", CleanString("   "))
}

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "+15555550100", want: "+15555550100"},
		{in: " +1 (555) 555-0100 ", want: "+15555550100"},
		{in: "+44.20.7946.0958", want: "+442079460958"},
		{in: "lol", want: "lol"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPhone(tt.in), tt.in)
	}
}

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "short", Ellipsize("short", 10))
	assert.Equal(t, "exact", Ellipsize("exact", 5))
	assert.Equal(t, "trun...", Ellipsize("truncated", 4))
	assert.Equal(t, "héé...", Ellipsize("hééllo", 3))
	assert.Equal(t, "", Ellipsize("", 3))
}
