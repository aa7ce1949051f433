package client

import (
	"context"
	"fmt"
	"time"
)

// ServiceRecordClient hands self-service claims off to the service records
// system, which owns the actual repair record. The engine treats a
// self-service claim as terminal once the handoff request is accepted.
type ServiceRecordClient struct {
	client *httpClient
}

// NewServiceRecordClient creates a new service records client.
func NewServiceRecordClient(baseURL string) *ServiceRecordClient {
	return &ServiceRecordClient{client: newHTTPClient(baseURL)}
}

// SelfServiceRecordRequest is the handoff payload for a self-service claim.
type SelfServiceRecordRequest struct {
	ClaimID    string    `json:"claim_id"`
	CustomerID string    `json:"customer_id"`
	VehicleVIN string    `json:"vehicle_vin"`
	Reason     string    `json:"reason"`
	MarkedBy   string    `json:"marked_by"`
	MarkedAt   time.Time `json:"marked_at"`
}

// CreateSelfServiceRecord registers the self-service repair with the external
// system.
func (c *ServiceRecordClient) CreateSelfServiceRecord(ctx context.Context, req *SelfServiceRecordRequest) error {
	if err := c.client.Post(ctx, "/api/v1/service-records", req, nil); err != nil {
		return fmt.Errorf("failed to create self-service record: %w", err)
	}
	return nil
}
