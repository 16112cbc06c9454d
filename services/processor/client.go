// Package processor is the client for the external processing service, the
// black box that does all actual video decode/transform/encode/merge work.
// The service speaks multipart form uploads and a small JSON envelope.
package processor

import (
	"net/http"
	"strings"
	"time"

	"github.com/ansel1/merry/v2"
	"github.com/go-resty/resty/v2"
)

var (
	// ErrService marks calls the service completed but answered with a
	// failure payload. The payload's message, when present, is attached as
	// the user message.
	ErrService = merry.Sentinel("processing service reported a failure")
	// ErrUnreachable marks calls that never completed.
	ErrUnreachable = merry.Sentinel("processing service unreachable")
)

type Client struct {
	baseURL     string
	restyClient *resty.Client
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Accept", "application/json")
	client.SetDisableWarn(true)

	return &Client{
		baseURL:     baseURL,
		restyClient: client,
	}
}

// WithTimeout bounds every exchange with the service. Zero means no limit.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.restyClient.SetTimeout(d)
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func mapProcessResponse(resp *resty.Response, err error) (*ProcessResult, error) {
	if err != nil {
		return nil, merry.Wrap(ErrUnreachable, merry.WithCause(err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, serviceError(resp)
	}
	result, ok := resp.Result().(*ProcessResult)
	if !ok || result == nil || !result.Success || result.FileID == "" {
		return nil, merry.Wrap(ErrService, merry.WithMessage("invalid response from processing service: missing file id"))
	}
	return result, nil
}

func serviceError(resp *resty.Response) error {
	wrappers := []merry.Wrapper{merry.WithHTTPCode(resp.StatusCode())}
	if payload, ok := resp.Error().(*errorResponse); ok && payload != nil && payload.Error != "" {
		wrappers = append(wrappers,
			merry.WithUserMessage(payload.Error),
			merry.AppendMessagef(": %s", payload.Error))
	}
	return merry.Wrap(ErrService, wrappers...)
}
