package gateway

import (
	"context"
	"fmt"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
)

// StorageResolver resolves credentials from the gateway_connections table.
type StorageResolver struct {
	connections storage.ConnectionRepo
}

// NewStorageResolver builds a resolver backed by the connection repository.
func NewStorageResolver(connections storage.ConnectionRepo) *StorageResolver {
	return &StorageResolver{connections: connections}
}

// Resolve returns the active connection's phone number id and access token.
// A connection without a token is as unusable as no connection at all, but
// the two cases carry distinct messages for the audit trail.
func (r *StorageResolver) Resolve(ctx context.Context, workspaceID string) (string, string, error) {
	conn, err := r.connections.FindActiveByWorkspace(ctx, workspaceID)
	if err != nil {
		return "", "", err
	}
	if conn.Status != model.ConnectionStatusActive {
		return "", "", fmt.Errorf("%w: connection for workspace %s is %s", apperrors.ErrNotFound, workspaceID, conn.Status)
	}
	if conn.AccessToken == "" {
		return "", "", fmt.Errorf("%w: connection for workspace %s has no access token", apperrors.ErrUnauthorized, workspaceID)
	}
	return conn.PhoneNumberID, conn.AccessToken, nil
}
