package client

import (
	"context"
	"fmt"
	"net/url"
)

// PartModel is display metadata for a part model, owned by the catalog
// service. The ledger never depends on it for correctness.
type PartModel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// CatalogClient resolves part-model ids against the parts catalog service.
type CatalogClient struct {
	client *httpClient
}

// NewCatalogClient creates a new catalog service client.
func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{client: newHTTPClient(baseURL)}
}

// GetPartModel returns name and category for a part model id.
func (c *CatalogClient) GetPartModel(ctx context.Context, partModelID string) (*PartModel, error) {
	path := fmt.Sprintf("/api/v1/part-models/get?id=%s", url.QueryEscape(partModelID))

	var model PartModel
	if err := c.client.Get(ctx, path, &model); err != nil {
		return nil, fmt.Errorf("failed to resolve part model: %w", err)
	}
	return &model, nil
}
