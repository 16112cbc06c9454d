package processor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
)

const (
	fieldVideo      = "video"
	fieldVideoCount = "videoCount"
	fieldStartTime  = "startTime"
	fieldEndTime    = "endTime"
)

// Convert uploads a clip for grayscale conversion. A nil bounds converts the
// whole clip, otherwise the service trims to the window first.
func (c *Client) Convert(ctx context.Context, clip File, bounds *Bounds) (*ProcessResult, error) {
	req := c.processRequest(ctx).
		SetFileReader(fieldVideo, clip.Name, clip.Reader)
	if bounds != nil {
		req.SetMultipartFormData(boundsForm(*bounds))
	}

	resp, err := req.Post("/upload")
	return mapProcessResponse(resp, err)
}

// Trim uploads a clip and cuts it down to the window. Unlike Convert the
// window is mandatory here.
func (c *Client) Trim(ctx context.Context, clip File, bounds Bounds) (*ProcessResult, error) {
	resp, err := c.processRequest(ctx).
		SetFileReader(fieldVideo, clip.Name, clip.Reader).
		SetMultipartFormData(boundsForm(bounds)).
		Post("/trim")
	return mapProcessResponse(resp, err)
}

// Merge uploads the clips in order and concatenates them into one rendition.
// The service wants at least two.
func (c *Client) Merge(ctx context.Context, clips []File) (*ProcessResult, error) {
	req := c.processRequest(ctx).
		SetMultipartFormData(map[string]string{
			fieldVideoCount: strconv.Itoa(len(clips)),
		})
	for i, clip := range clips {
		req.SetMultipartField(fmt.Sprintf("%s%d", fieldVideo, i), clip.Name, "", clip.Reader)
	}

	resp, err := req.Post("/merge")
	return mapProcessResponse(resp, err)
}

func (c *Client) processRequest(ctx context.Context) *resty.Request {
	return c.restyClient.R().
		SetContext(ctx).
		SetResult(&ProcessResult{}).
		SetError(&errorResponse{})
}

func boundsForm(b Bounds) map[string]string {
	return map[string]string{
		fieldStartTime: strconv.FormatFloat(b.Start, 'f', -1, 64),
		fieldEndTime:   strconv.FormatFloat(b.End, 'f', -1, 64),
	}
}
