package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		text   string
		accept bool
		ok     bool
	}{
		{"YES", true, true},
		{"  yes ", true, true},
		{"y", true, true},
		{"Sí", true, true},
		{"ok", true, true},
		{"1", true, true},
		{"NO", false, true},
		{"n", false, true},
		{"decline", false, true},
		{"2", false, true},
		{"maybe", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			accept, ok := parseReply(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.accept, accept)
			}
		})
	}
}
