package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney(" 49.90 ")
	require.NoError(t, err)
	assert.True(t, m.Equal(MustMoney("49.9")))

	m, err = ParseMoney("")
	require.NoError(t, err)
	assert.True(t, m.IsZero())

	_, err = ParseMoney("forty")
	assert.Error(t, err)

	p, err := ParseMoneyPtr(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPercentAndRound(t *testing.T) {
	assert.Equal(t, "12.35", Percent(MustMoney("49.40"), MustMoney("25")).StringFixed(2))
	assert.Equal(t, "0.01", Round(MustMoney("0.005")).StringFixed(2))
	assert.Equal(t, "10.00", MinMoney(MustMoney("10"), MustMoney("12")).StringFixed(2))
	assert.Equal(t, "49.90 USD", FormatMoney(MustMoney("49.9"), "USD"))
	assert.Equal(t, "3.00", *MoneyString(func() *Money { m := MustMoney("3"); return &m }()))
}
