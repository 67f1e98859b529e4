package gist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		expected string
	}{
		{"empty", nil, ""},
		{"single file", map[string]string{"playground.rs": "fn main(){}"}, "fn main(){}"},
		{
			"multiple files sorted by name",
			map[string]string{"b.rs": "fn b(){}", "a.rs": "fn a(){}"},
			"// a.rs\nfn a(){}\n\n// b.rs\nfn b(){}\n\n",
		},
		{
			"byte order",
			map[string]string{"main.rs": "m", "Cargo.toml": "c", "lib.rs": "l"},
			"// Cargo.toml\nc\n\n// lib.rs\nl\n\n// main.rs\nm\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Merge(tt.files))
		})
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	files := map[string]string{"z.rs": "z", "y.rs": "y", "x.rs": "x", "w.rs": "w"}
	first := Merge(files)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Merge(files))
	}
}
