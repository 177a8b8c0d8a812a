package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	fastshot "github.com/opus-domini/fast-shot"

	"github.com/opus-domini/activityboard/internal/catalog"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "activityboard"
)

type Options struct {
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the activities server.
type Client struct {
	http fastshot.ClientHttpMethods
}

func New(baseURL string, opts Options) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}

	builder := fastshot.NewClient(baseURL).
		Config().SetTimeout(opts.Timeout).
		Header().Add("User-Agent", opts.UserAgent).
		Header().Add("Accept", "application/json")
	if token := strings.TrimSpace(opts.Token); token != "" {
		builder = builder.Auth().BearerToken(token)
	}
	return &Client{http: builder.Build()}
}

// Activities fetches the full catalog.
func (c *Client) Activities(ctx context.Context) (catalog.Catalog, error) {
	body, err := c.send(c.http.GET("/activities").Context().Set(ctx))
	if err != nil {
		return catalog.Catalog{}, err
	}
	cat, err := catalog.Decode(body)
	if err != nil {
		return catalog.Catalog{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return cat, nil
}

// SignUp registers email for the named activity.
func (c *Client) SignUp(ctx context.Context, activity, email string) error {
	_, err := c.send(c.http.POST(ActivityPath(activity, "signup")).
		Context().Set(ctx).
		Query().AddParam("email", email))
	return err
}

// Unregister removes email from the named activity.
func (c *Client) Unregister(ctx context.Context, activity, email string) error {
	_, err := c.send(c.http.DELETE(ActivityPath(activity, "unregister")).
		Context().Set(ctx).
		Query().AddParam("email", email))
	return err
}

// ActivityPath builds /activities/{name}/{action} with name percent-encoded
// as a single path segment.
func ActivityPath(activity, action string) string {
	return "/activities/" + url.PathEscape(activity) + "/" + action
}

func (c *Client) send(req *fastshot.RequestBuilder) ([]byte, error) {
	resp, err := req.Send()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body().Close()

	body, readErr := resp.Body().AsBytes()
	code := resp.Status().Code()
	if code < 200 || code > 299 {
		detail := ""
		if readErr == nil {
			detail = parseDetail(body)
		}
		return nil, &StatusError{Code: code, Detail: detail}
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, readErr)
	}
	return body, nil
}
