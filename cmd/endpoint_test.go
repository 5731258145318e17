package cmd

import (
	"errors"
	"runtime"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     int
		wantErr  bool
	}{
		{"local", 1, false},
		{"local[4]", 4, false},
		{"local[*]", runtime.GOMAXPROCS(0), false},
		{"local[0]", 0, true},
		{"local[]", 0, true},
		{"local[-2]", 0, true},
		{"yarn", 0, true},
		{"spark://host:7077", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := ParseEndpoint(tt.endpoint)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEndpoint) {
					t.Errorf("ParseEndpoint(%q) error = %v, want ErrInvalidEndpoint", tt.endpoint, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint(%q) unexpected error: %v", tt.endpoint, err)
			}
			if got != tt.want {
				t.Errorf("ParseEndpoint(%q) = %d, want %d", tt.endpoint, got, tt.want)
			}
		})
	}
}
