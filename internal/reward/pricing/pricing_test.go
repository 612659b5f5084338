package pricing

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"engage-rewards-service/internal/model"
)

func testConverter(t *testing.T) *Converter {
	t.Helper()
	c, err := NewConverter("USD", map[string]float64{
		"NGN": 1500,
		"KES": 130,
		"EUR": 0.9,
	})
	require.NoError(t, err)
	return c
}

func TestNewConverter_Validation(t *testing.T) {
	_, err := NewConverter("USD", map[string]float64{"NGN": 0})
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = NewConverter("USD", map[string]float64{"NGN": -10})
	assert.ErrorIs(t, err, ErrInvalidRate)

	c, err := NewConverter("usd", nil)
	require.NoError(t, err)
	assert.Equal(t, "USD", c.Base())
	assert.True(t, c.Supports("USD"))
}

func TestConvert(t *testing.T) {
	c := testConverter(t)

	tests := []struct {
		name     string
		amount   float64
		from     string
		to       string
		expected float64
	}{
		{"same currency identity", 100, "USD", "USD", 100},
		{"base to override", 10, "USD", "NGN", 15000},
		{"override to base", 3000, "NGN", "USD", 2},
		{"cross rate", 1500, "NGN", "KES", 130},
		{"rounds to cents", 1, "USD", "EUR", 0.9},
		{"case insensitive codes", 10, "usd", "ngn", 15000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Convert(tt.amount, tt.from, tt.to)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 0.001)
		})
	}
}

func TestConvert_UnknownCurrency(t *testing.T) {
	c := testConverter(t)

	_, err := c.Convert(100, "GBP", "USD")
	assert.ErrorIs(t, err, ErrUnknownCurrency)

	_, err = c.Convert(100, "USD", "GBP")
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestDisplayCost(t *testing.T) {
	c := testConverter(t)

	item := model.RedeemableItem{
		ID:         uuid.New(),
		Name:       "Gift Card",
		PointsCost: 5000,
		Currency:   "NGN",
	}

	got, err := c.DisplayCost(item, "USD")
	require.NoError(t, err)
	assert.InDelta(t, 3.33, got, 0.001)

	// Same currency passes the stored figure through.
	got, err = c.DisplayCost(item, "NGN")
	require.NoError(t, err)
	assert.InDelta(t, 5000, got, 0.001)
}

// TestConvertRoundTripProperty verifies converting there and back
// loses at most rounding error.
func TestConvertRoundTripProperty(t *testing.T) {
	codes := []string{"USD", "NGN", "KES", "EUR"}
	c, err := NewConverter("USD", map[string]float64{
		"NGN": 1500,
		"KES": 130,
		"EUR": 0.9,
	})
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		amount := float64(rapid.IntRange(1, 1000000).Draw(t, "amountCents")) / 100
		from := codes[rapid.IntRange(0, len(codes)-1).Draw(t, "from")]
		to := codes[rapid.IntRange(0, len(codes)-1).Draw(t, "to")]

		there, err := c.Convert(amount, from, to)
		if err != nil {
			t.Fatalf("Convert(%f, %s, %s) failed: %v", amount, from, to, err)
		}
		back, err := c.Convert(there, to, from)
		if err != nil {
			t.Fatalf("Convert back failed: %v", err)
		}

		// Two roundings at the largest configured rate bound the loss.
		tolerance := 0.01 * 1500 * 2
		if math.Abs(back-amount) > tolerance {
			t.Fatalf("round trip %s->%s->%s drifted: %f -> %f", from, to, from, amount, back)
		}
	})
}

// TestConvertPositiveProperty verifies positive amounts stay positive
// or round to zero, never negative.
func TestConvertPositiveProperty(t *testing.T) {
	c, err := NewConverter("USD", map[string]float64{"NGN": 1500, "EUR": 0.9})
	require.NoError(t, err)
	codes := []string{"USD", "NGN", "EUR"}

	rapid.Check(t, func(t *rapid.T) {
		amount := float64(rapid.IntRange(0, 10000000).Draw(t, "amountCents")) / 100
		from := codes[rapid.IntRange(0, len(codes)-1).Draw(t, "from")]
		to := codes[rapid.IntRange(0, len(codes)-1).Draw(t, "to")]

		got, err := c.Convert(amount, from, to)
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		if got < 0 {
			t.Fatalf("Convert(%f, %s, %s) = %f, negative", amount, from, to, got)
		}
	})
}
