package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zap.NewNop()
}

// AuditSinkMock mocks the AuditSink interface
type AuditSinkMock struct {
	mock.Mock
}

func (m *AuditSinkMock) SubmitEvent(event model.AuditEvent) {
	m.Called(event)
}

func (m *AuditSinkMock) SubmitHeartbeat(workerName string, counts map[string]int) {
	m.Called(workerName, counts)
}

func (m *AuditSinkMock) Stop() {
	m.Called()
}

// PublisherMock mocks the events.Publisher interface
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, workspaceID, kind string, payload interface{}) {
	m.Called(ctx, workspaceID, kind, payload)
}

func (m *PublisherMock) Close() {
	m.Called()
}

// SlaRecomputerMock mocks the SlaRecomputer interface
type SlaRecomputerMock struct {
	mock.Mock
}

func (m *SlaRecomputerMock) RecomputeSla(ctx context.Context, workspaceID, conversationID string, overrides SlaOverrides) error {
	args := m.Called(ctx, workspaceID, conversationID, overrides)
	return args.Error(0)
}
