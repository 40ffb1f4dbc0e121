package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractValue(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "value with unit", reply: "power = 12.3 mW", want: "12.3"},
		{name: "negative value", reply: "temp = -4.5", want: "-4.5"},
		{name: "explicit positive sign", reply: "current = +0.123 A", want: "+0.123"},
		{name: "integer value", reply: "channel = 2", want: "2"},
		{name: "word value", reply: "serial = ABC123", want: "ABC123"},
		{name: "no spaces around equals", reply: "gain=7", want: "7"},
		{name: "first assignment wins", reply: "a = 1 b = 2", want: "1"},
		{name: "no assignment passes through", reply: "system ready", want: "system ready"},
		{name: "empty reply", reply: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractValue(tt.reply))
		})
	}
}

func TestExtractValue_FractionalNotTruncated(t *testing.T) {
	// The capture group must span the full dotted number, not stop at the
	// first word boundary.
	assert.Equal(t, "12.345", ExtractValue("wavelength = 12.345 nm"))
}

func TestExtractValue_Idempotent(t *testing.T) {
	once := ExtractValue("power = 12.3 mW")
	assert.Equal(t, once, ExtractValue(once))
}
