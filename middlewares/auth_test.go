package middlewares

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseApiKeyTokenUnderscoreSchema(t *testing.T) {
	schema, prefix, secret, ok := parseApiKeyToken("bk_acme_corp_ab12cd34_00112233445566778899aabbccddeeff")
	require.True(t, ok)
	assert.Equal(t, "acme_corp", schema)
	assert.Equal(t, "ab12cd34", prefix)
	assert.Equal(t, "00112233445566778899aabbccddeeff", secret)
}

func TestParseApiKeyTokenSimpleSchema(t *testing.T) {
	schema, prefix, secret, ok := parseApiKeyToken("bk_acme_ab12cd34_secret")
	require.True(t, ok)
	assert.Equal(t, "acme", schema)
	assert.Equal(t, "ab12cd34", prefix)
	assert.Equal(t, "secret", secret)
}

func TestParseApiKeyTokenRejectsMalformed(t *testing.T) {
	cases := []string{
		"bk_",
		"bk_acme",
		"bk_acme_prefix",       // missing secret
		"bk__prefix_secret",    // empty schema
		"bk_acme__secret",      // empty prefix
		"bk_acme_prefix_",      // empty secret
		"bk_Acme_prefix_sec",   // uppercase schema
		"bk_1acme_prefix_sec",  // schema starts with a digit
		"bk_ac me_prefix_sec",  // whitespace in schema
		`bk_a";--_prefix_sec`,  // sql metacharacters never reach search_path
	}
	for _, raw := range cases {
		_, _, _, ok := parseApiKeyToken(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}
