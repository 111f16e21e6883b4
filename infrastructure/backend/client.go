package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	domainChannel "github.com/omnidesk/channeledge/domains/channel"
	pkgError "github.com/omnidesk/channeledge/pkg/error"
)

// TokenFunc supplies the bearer token injected on every backend call.
type TokenFunc func(ctx context.Context) (string, error)

// Client talks to the messaging backend's REST API on behalf of the edge.
type Client struct {
	baseURL string
	token   TokenFunc
	http    *fasthttp.Client
}

func NewClient(baseURL string, token TokenFunc) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second},
	}
}

// ListChannels fetches the channel list with the given filters.
func (c *Client) ListChannels(ctx context.Context, filter domainChannel.ListFilter) (*domainChannel.ListResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, pkgError.ValidationError(err.Error())
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/channels")
	args := req.URI().QueryArgs()
	if filter.Name != "" {
		args.Set("name", filter.Name)
	}
	if filter.Type != "" {
		args.Set("type", filter.Type)
	}
	if filter.Provider != "" {
		args.Set("provider", filter.Provider)
	}
	if filter.IsActive != nil {
		args.Set("is_active", strconv.FormatBool(*filter.IsActive))
	}
	if filter.Limit > 0 {
		args.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		args.Set("offset", strconv.Itoa(filter.Offset))
	}
	if filter.SortBy != "" {
		args.Set("sortBy", filter.SortBy)
	}
	if filter.SortDir != "" {
		args.Set("sortDir", filter.SortDir)
	}

	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}

	var result domainChannel.ListResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode channel list: %w", err)
	}
	return &result, nil
}

// ChannelQR fetches the provider-specific pairing payload used to
// (re)authenticate a channel out-of-band.
func (c *Client) ChannelQR(ctx context.Context, id string) ([]byte, string, error) {
	if id == "" {
		return nil, "", pkgError.ValidationError("channel id is required")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/channels/" + id + "/qr")

	if err := c.do(ctx, req, resp); err != nil {
		return nil, "", err
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, string(resp.Header.ContentType()), nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("backend call: %w", err)
	}

	switch {
	case resp.StatusCode() == fasthttp.StatusNotFound:
		return pkgError.NotFoundError("backend resource not found")
	case resp.StatusCode() == fasthttp.StatusUnauthorized:
		return pkgError.UnauthorizedError("backend rejected credentials")
	case resp.StatusCode() >= 400:
		return fmt.Errorf("backend returned %d", resp.StatusCode())
	}
	return nil
}
