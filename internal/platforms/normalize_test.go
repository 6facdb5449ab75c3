package platforms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeForcesFailureWithoutPostID(t *testing.T) {
	res := Normalize(Result{Success: true})
	assert.False(t, res.Success)
	assert.Equal(t, ErrorKindUnknown, res.Kind)
	assert.Equal(t, "platform reported success without a post id", res.Error)
}

func TestNormalizeKeepsSuccessWithPostID(t *testing.T) {
	res := Normalize(Result{Success: true, PostID: "42"})
	assert.True(t, res.Success)
	assert.Equal(t, "42", res.PostID)
}

func TestNormalizeFillsEmptyFailureFields(t *testing.T) {
	res := Normalize(Result{Success: false})
	assert.False(t, res.Success)
	assert.Equal(t, ErrorKindUnknown, res.Kind)
	assert.Equal(t, "unknown error", res.Error)
}

func TestNormalizePreservesFailureDetail(t *testing.T) {
	res := Normalize(Result{Success: false, Kind: ErrorKindAuth, Error: "token expired"})
	assert.Equal(t, ErrorKindAuth, res.Kind)
	assert.Equal(t, "token expired", res.Error)
}

func TestParseGraphError(t *testing.T) {
	hints := map[int]string{190: "Generate new token."}

	msg, kind := parseGraphError([]byte(`{"error":{"message":"bad token","code":190}}`), hints)
	assert.Equal(t, ErrorKindAuth, kind)
	assert.Equal(t, "(#190) bad token | Generate new token.", msg)

	msg, kind = parseGraphError([]byte(`{"error":{"message":"slow down","code":4}}`), hints)
	assert.Equal(t, ErrorKindRateLimit, kind)
	assert.Equal(t, "(#4) slow down", msg)

	msg, kind = parseGraphError([]byte(`<html>gateway error</html>`), hints)
	assert.Equal(t, ErrorKindUnknown, kind)
	assert.Contains(t, msg, "gateway error")
}

func TestGraphErrorKind(t *testing.T) {
	cases := map[int]ErrorKind{
		190: ErrorKindAuth,
		102: ErrorKindAuth,
		3:   ErrorKindPermission,
		10:  ErrorKindPermission,
		200: ErrorKindPermission,
		4:   ErrorKindRateLimit,
		352: ErrorKindRateLimit,
		100: ErrorKindPayload,
		999: ErrorKindUnknown,
	}
	for code, want := range cases {
		assert.Equal(t, want, graphErrorKind(code), "code %d", code)
	}
}

func TestHTTPStatusKind(t *testing.T) {
	cases := map[int]ErrorKind{
		401: ErrorKindAuth,
		403: ErrorKindPermission,
		429: ErrorKindRateLimit,
		400: ErrorKindPayload,
		404: ErrorKindPayload,
		410: ErrorKindPayload,
		500: ErrorKindUnknown,
	}
	for code, want := range cases {
		assert.Equal(t, want, httpStatusKind(code), "code %d", code)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "ようこ", truncateRunes("ようこそ", 3))
}
