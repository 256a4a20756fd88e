package api

import "context"

// Health queries the backend liveness endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var h HealthStatus
	if err := c.Request(ctx, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
