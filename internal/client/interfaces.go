package client

import "context"

// CatalogClientInterface defines the interface for the parts catalog client.
type CatalogClientInterface interface {
	GetPartModel(ctx context.Context, partModelID string) (*PartModel, error)
}

// ServiceRecordClientInterface defines the interface for the service records
// client.
type ServiceRecordClientInterface interface {
	CreateSelfServiceRecord(ctx context.Context, req *SelfServiceRecordRequest) error
}
