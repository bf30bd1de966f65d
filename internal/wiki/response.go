package wiki

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is the normalized result of one lookup.
type Record struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Response is the decoded MediaWiki query answer.
type Response struct {
	BatchComplete bool
	Query         Query
}

// Query holds the page ids in request order and the pages keyed by id.
type Query struct {
	PageIDs []string
	Pages   map[string]Page
}

// Page is a single page of the query answer. Missing pages carry no extract or thumbnail.
type Page struct {
	PageID       int64
	Title        string
	Extract      string
	ThumbnailURL string
	Missing      bool
}

type wireResponse struct {
	BatchComplete json.RawMessage `json:"batchcomplete"`
	Query         *wireQuery      `json:"query"`
}

type wireQuery struct {
	PageIDs []string            `json:"pageids"`
	Pages   map[string]wirePage `json:"pages"`
}

type wirePage struct {
	PageID    int64           `json:"pageid"`
	Title     *string         `json:"title"`
	Extract   *string         `json:"extract"`
	Thumbnail *wireThumbnail  `json:"thumbnail"`
	Missing   json.RawMessage `json:"missing"`
	Invalid   json.RawMessage `json:"invalid"`
}

type wireThumbnail struct {
	Source *string `json:"source"`
}

// Decode parses body into a Response. Malformed JSON and absent required fields
// are reported as ErrDecoding.
func Decode(body []byte) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	if wire.Query == nil {
		return nil, fmt.Errorf("%w: missing query", ErrDecoding)
	}
	if wire.Query.PageIDs == nil {
		return nil, fmt.Errorf("%w: missing query.pageids", ErrDecoding)
	}
	if wire.Query.Pages == nil {
		return nil, fmt.Errorf("%w: missing query.pages", ErrDecoding)
	}

	resp := &Response{
		BatchComplete: batchComplete(wire.BatchComplete),
		Query: Query{
			PageIDs: wire.Query.PageIDs,
			Pages:   make(map[string]Page, len(wire.Query.Pages)),
		},
	}
	for id, wp := range wire.Query.Pages {
		page, err := wp.page(id)
		if err != nil {
			return nil, err
		}
		resp.Query.Pages[id] = page
	}
	return resp, nil
}

func (wp wirePage) page(id string) (Page, error) {
	page := Page{PageID: wp.PageID, Missing: len(wp.Missing) > 0 || len(wp.Invalid) > 0}
	if wp.Title != nil {
		page.Title = *wp.Title
	}
	if page.Missing {
		return page, nil
	}

	switch {
	case wp.Title == nil:
		return Page{}, fmt.Errorf("%w: page %s has no title", ErrDecoding, id)
	case wp.Extract == nil:
		return Page{}, fmt.Errorf("%w: page %s has no extract", ErrDecoding, id)
	case wp.Thumbnail == nil || wp.Thumbnail.Source == nil:
		return Page{}, fmt.Errorf("%w: page %s has no thumbnail", ErrDecoding, id)
	}
	page.Extract = *wp.Extract
	page.ThumbnailURL = *wp.Thumbnail.Source
	return page, nil
}

// batchcomplete is "" in formatversion=1 and true in formatversion=2; absent means
// the answer continues in another batch.
func batchComplete(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("false")) && !bytes.Equal(raw, []byte("null"))
}

// Record selects the page named by the first page id and projects it.
func (r *Response) Record() (Record, error) {
	if len(r.Query.PageIDs) == 0 {
		return Record{}, fmt.Errorf("%w: no page ids", ErrMalformedResponse)
	}
	id := r.Query.PageIDs[0]
	page, ok := r.Query.Pages[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: page id %s not in pages", ErrMalformedResponse, id)
	}
	if page.Missing {
		return Record{}, fmt.Errorf("%w: %q", ErrPageNotFound, page.Title)
	}
	return Record{
		Title:       page.Title,
		Description: page.Extract,
		ImageURL:    page.ThumbnailURL,
	}, nil
}
