package upstream

import (
	"context"
	"net/url"

	"github.com/greenhouse-labs/catalog-bff/internal/httpclient"
)

// TokenSource supplies a valid upstream token
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// authenticatedClient attaches the session token to every call before
// delegating to the wrapped client
type authenticatedClient struct {
	next   httpclient.Client
	tokens TokenSource
	header string
}

// NewAuthenticatedClient wraps next so every request carries a valid token in header
func NewAuthenticatedClient(next httpclient.Client, tokens TokenSource, header string) httpclient.Client {
	return &authenticatedClient{next: next, tokens: tokens, header: header}
}

func (c *authenticatedClient) Get(ctx context.Context, rawURL string, opts ...httpclient.RequestOption) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.next.Get(ctx, rawURL, c.withToken(token, opts)...)
}

func (c *authenticatedClient) PostForm(
	ctx context.Context, rawURL string, form url.Values, opts ...httpclient.RequestOption,
) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.next.PostForm(ctx, rawURL, form, c.withToken(token, opts)...)
}

func (c *authenticatedClient) withToken(token string, opts []httpclient.RequestOption) []httpclient.RequestOption {
	return append([]httpclient.RequestOption{httpclient.WithHeader(c.header, token)}, opts...)
}
