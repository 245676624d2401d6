package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "groceries", SanitizeText("<b>groceries</b>"))
	assert.Equal(t, "", SanitizeText("<script>alert(1)</script>"))
	assert.Equal(t, "50", SanitizeText("50"))
}

func TestStripUnprintable(t *testing.T) {
	assert.Equal(t, "ab\tc\n", StripUnprintable("a\x00b\tc\x07\n"))
	assert.Equal(t, "café", StripUnprintable("café"))
}

func TestValidateValues(t *testing.T) {
	assert.NoError(t, ValidateValues(map[string]string{"desc": "ok", "amount": "-12"}, 5))

	err := ValidateValues(map[string]string{"desc": strings.Repeat("é", 6), "zz": strings.Repeat("x", 9)}, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Contains(t, err.Error(), "desc")
}

func TestValidateValues_ZeroMeansUnlimited(t *testing.T) {
	long := map[string]string{"desc": strings.Repeat("x", 100000)}
	assert.NoError(t, ValidateValues(long, 0))
	assert.NoError(t, ValidateValues(long, -1))
}
