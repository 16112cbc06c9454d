package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ansel1/merry/v2"
)

// Retrieve streams a finished rendition by the file id a process call
// returned. The response body is handed over unread.
func (c *Client) Retrieve(ctx context.Context, fileID string) (*Retrieval, error) {
	resp, err := c.restyClient.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/download/" + url.PathEscape(fileID))
	if err != nil {
		return nil, merry.Wrap(ErrUnreachable, merry.WithCause(err))
	}

	if resp.StatusCode() != http.StatusOK {
		defer resp.RawBody().Close()
		wrappers := []merry.Wrapper{merry.WithHTTPCode(resp.StatusCode())}
		var payload errorResponse
		if jerr := json.NewDecoder(resp.RawBody()).Decode(&payload); jerr == nil && payload.Error != "" {
			wrappers = append(wrappers,
				merry.WithUserMessage(payload.Error),
				merry.AppendMessagef(": %s", payload.Error))
		}
		return nil, merry.Wrap(ErrService, wrappers...)
	}

	raw := resp.RawResponse
	return &Retrieval{
		Body:          resp.RawBody(),
		ContentType:   raw.Header.Get("Content-Type"),
		ContentLength: raw.ContentLength,
		Disposition:   raw.Header.Get("Content-Disposition"),
	}, nil
}
