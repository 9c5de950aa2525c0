package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/gateway"
)

// ClientMock mocks the gateway.Client interface
type ClientMock struct {
	mock.Mock
}

// SendMessage mocks the SendMessage method
func (m *ClientMock) SendMessage(ctx context.Context, req gateway.SendRequest) (gateway.SendResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.SendResult), args.Error(1)
}

// FetchMediaURL mocks the FetchMediaURL method
func (m *ClientMock) FetchMediaURL(ctx context.Context, accessToken, mediaID string) (string, error) {
	args := m.Called(ctx, accessToken, mediaID)
	return args.String(0), args.Error(1)
}

// ResolverMock mocks the gateway.ConnectionResolver interface
type ResolverMock struct {
	mock.Mock
}

// Resolve mocks the Resolve method
func (m *ResolverMock) Resolve(ctx context.Context, workspaceID string) (string, string, error) {
	args := m.Called(ctx, workspaceID)
	return args.String(0), args.String(1), args.Error(2)
}
