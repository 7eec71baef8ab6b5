package csrf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const (
	HeaderName = "X-CSRFToken"
	MetaName   = "csrf-token"

	minTokenLength = 10
)

var (
	ErrTokenMissing = errors.New("csrf token missing")
	ErrTokenInvalid = errors.New("csrf token invalid")
)

// TokenSource yields the token to attach to a mutating request. It is
// consulted before every request so a rotated token is picked up.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

func Validate(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenMissing
	}
	if len(token) < minTokenLength {
		return fmt.Errorf("%w: shorter than %d characters", ErrTokenInvalid, minTokenLength)
	}
	return nil
}

// UserMessage is the notice shown when a request was held back because of
// the token. It returns "" for unrelated errors.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "Security token missing. Please refresh the page and try again."
	case errors.Is(err, ErrTokenInvalid):
		return "Invalid security token. Please refresh the page and try again."
	}
	return ""
}

type StaticSource string

func (s StaticSource) Token(context.Context) (string, error) {
	tok := strings.TrimSpace(string(s))
	if err := Validate(tok); err != nil {
		return "", err
	}
	return tok, nil
}

// MetaSource reads the token from the <meta name="csrf-token"> tag of a
// server-rendered page.
type MetaSource struct {
	client  *http.Client
	pageURL string
}

func NewMetaSource(client *http.Client, pageURL string) *MetaSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &MetaSource{client: client, pageURL: pageURL}
}

func (m *MetaSource) Token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page for csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page for csrf token returned %d", resp.StatusCode)
	}

	tok, err := ExtractMeta(resp.Body)
	if err != nil {
		return "", err
	}
	if err := Validate(tok); err != nil {
		return "", err
	}
	return strings.TrimSpace(tok), nil
}

// ExtractMeta returns the content of the first csrf-token meta tag, or
// ErrTokenMissing when the document has none.
func ExtractMeta(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", ErrTokenMissing
			}
			return "", fmt.Errorf("failed to parse page: %w", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "meta" {
				continue
			}
			var name, content string
			var hasContent bool
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					name = a.Val
				case "content":
					content, hasContent = a.Val, true
				}
			}
			if name == MetaName {
				if !hasContent {
					return "", ErrTokenMissing
				}
				return content, nil
			}
		}
	}
}
