package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTripType(t *testing.T) {
	tests := []struct {
		input string
		want  TripType
		ok    bool
	}{
		{"ذهاب", TripOutbound, true},
		{" عودة ", TripReturn, true},
		{"ذهاب وعودة", TripRoundTrip, true},
		{"Round_Trip", TripRoundTrip, true},
		{"one_way", TripOutbound, true},
		{"return", TripReturn, true},
		{"", "", false},
		{"weekly", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTripType(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTripType_Requirements(t *testing.T) {
	assert.True(t, TripOutbound.NeedsStartPoint())
	assert.False(t, TripOutbound.NeedsReturnTime())

	assert.False(t, TripReturn.NeedsStartPoint())
	assert.True(t, TripReturn.NeedsReturnTime())

	assert.True(t, TripRoundTrip.NeedsStartPoint())
	assert.True(t, TripRoundTrip.NeedsReturnTime())

	assert.False(t, TripType("").Valid())
	assert.False(t, TripType("").NeedsStartPoint())
}

func TestParsePaymentType(t *testing.T) {
	p, ok := ParsePaymentType("")
	assert.True(t, ok)
	assert.Equal(t, PaymentCash, p)

	p, ok = ParsePaymentType("Wallet")
	assert.True(t, ok)
	assert.Equal(t, PaymentWallet, p)
	assert.Equal(t, "محفظة إلكترونية", p.Label())

	_, ok = ParsePaymentType("bitcoin")
	assert.False(t, ok)
}
