package geography

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDMSToDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"six digit", "324528", 32.75777778},
		{"six digit negative", "-324528", -32.75777778},
		{"seven digit degrees", "1005305", 100.88472222},
		{"stringified float", "324528.0", 32.75777778},
		{"short value right-padded", "3245", 32.75},
		{"short negative", "-32455", -32.76388889},
		{"zero", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DMSToDecimal(tt.input), 1e-8)
		})
	}
}

func TestDMSToDecimal_MissingInput(t *testing.T) {
	for _, input := range []string{"", "   ", "-", "abc", "12a3", "12.3.4", "32°45'28\""} {
		assert.True(t, math.IsNaN(DMSToDecimal(input)), "input %q", input)
	}
}

func TestDMSToDecimal_SignFlipsExactly(t *testing.T) {
	pos := DMSToDecimal("324528")
	neg := DMSToDecimal("-324528")
	assert.Equal(t, pos, -neg)
}

func TestDMSFloatToDecimal(t *testing.T) {
	assert.InDelta(t, 32.75777778, DMSFloatToDecimal(324528.0), 1e-8)
	assert.InDelta(t, -32.75777778, DMSFloatToDecimal(-324528.0), 1e-8)
	assert.InDelta(t, 100.88472222, DMSFloatToDecimal(1005305.0), 1e-8)
	assert.True(t, math.IsNaN(DMSFloatToDecimal(math.NaN())))
}

func TestDMSToDecimal_RoundTripWithinTolerance(t *testing.T) {
	// 32°45'28" encodes to 324528; decoding must land on
	// deg + min/60 + sec/3600 within rounding tolerance.
	got := DMSToDecimal("324528")
	want := 32.0 + 45.0/60 + 28.0/3600
	assert.InDelta(t, want, got, 1e-8)
}
