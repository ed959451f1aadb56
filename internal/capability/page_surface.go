// File: internal/capability/page_surface.go
package capability

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/resolve"
)

// pageSurface adapts the page surface's wire contract to the resolver's
// Surface interface.
type pageSurface struct {
	client *SurfaceClient
}

var _ resolve.Surface = (*pageSurface)(nil)

type elementsResponse struct {
	Candidates []schemas.Candidate `json:"candidates"`
}

type pageReadResponse struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Heading string `json:"heading"`
	Text    string `json:"text"`
}

func (s *pageSurface) Elements(ctx context.Context) ([]schemas.Candidate, error) {
	raw, err := s.client.Get(ctx, "elements")
	if err != nil {
		return nil, err
	}
	var resp elementsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding elements: %v", ErrSurface, err)
	}
	return resp.Candidates, nil
}

func (s *pageSurface) Scroll(ctx context.Context, dy int) error {
	_, err := s.client.Post(ctx, "scroll", map[string]int{"dy": dy})
	return err
}

// readPage fetches the page snapshot used for planning and extraction.
func (s *pageSurface) readPage(ctx context.Context) (pageReadResponse, error) {
	raw, err := s.client.Get(ctx, "read")
	if err != nil {
		return pageReadResponse{}, err
	}
	var resp pageReadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return pageReadResponse{}, fmt.Errorf("%w: decoding page read: %v", ErrSurface, err)
	}
	return resp, nil
}
