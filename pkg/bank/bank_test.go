package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	banks := Defaults()
	assert.Len(t, banks, 6)

	for _, b := range banks {
		assert.Zero(t, b.ID, "ids are assigned at registration")
		assert.NotEmpty(t, b.Name)
		assert.NotEmpty(t, b.Ticker)
		assert.NotEmpty(t, b.CIK)
		assert.Len(t, b.CIK, 10)
	}
}

func TestCFPBNames(t *testing.T) {
	b := Bank{Name: "Truist Financial"}
	assert.Contains(t, b.CFPBNames(), "TRUIST BANK")
	assert.Contains(t, b.CFPBNames(), "SUNTRUST")

	unregistered := Bank{Name: "First National"}
	assert.Equal(t, []string{"First National"}, unregistered.CFPBNames())
}

func TestAliases(t *testing.T) {
	b := Bank{Name: "JPMorgan Chase"}
	assert.Contains(t, b.Aliases(), "Chase Bank")

	unregistered := Bank{Name: "First National"}
	assert.Equal(t, []string{"First National"}, unregistered.Aliases())
}
