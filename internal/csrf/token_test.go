package csrf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate(""), ErrTokenMissing)
	assert.ErrorIs(t, Validate("   "), ErrTokenMissing)
	assert.ErrorIs(t, Validate("short"), ErrTokenInvalid)
	assert.NoError(t, Validate("abcdefghij"))
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, UserMessage(ErrTokenMissing), "Security token missing")
	assert.Contains(t, UserMessage(Validate("x")), "Invalid security token")
	assert.Empty(t, UserMessage(assert.AnError))
}

func TestExtractMeta(t *testing.T) {
	page := `<html><head>
<meta charset="utf-8">
<meta name="csrf-token" content="tok-1234567890">
</head><body></body></html>`
	tok, err := ExtractMeta(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "tok-1234567890", tok)

	_, err = ExtractMeta(strings.NewReader(`<html><head><meta name="viewport"></head></html>`))
	assert.ErrorIs(t, err, ErrTokenMissing)

	_, err = ExtractMeta(strings.NewReader(`<meta name="csrf-token">`))
	assert.ErrorIs(t, err, ErrTokenMissing)
}

func metaPage(content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><meta name="csrf-token" content="` + content + `"/></head></html>`))
	}))
}

func TestMetaSource(t *testing.T) {
	srv := metaPage("tok-1234567890")
	defer srv.Close()

	tok, err := NewMetaSource(srv.Client(), srv.URL).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1234567890", tok)

	short := metaPage("bad")
	defer short.Close()

	_, err = NewMetaSource(short.Client(), short.URL).Token(context.Background())
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestStaticSource(t *testing.T) {
	_, err := StaticSource("").Token(context.Background())
	assert.ErrorIs(t, err, ErrTokenMissing)

	tok, err := StaticSource(" static-token-value ").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static-token-value", tok)
}
