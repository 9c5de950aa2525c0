package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	storagemock "gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage/mock"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
)

func TestConfigSlaRecomputer_NewCustomerMessageRestartsClocks(t *testing.T) {
	conversations := new(storagemock.ConversationRepoMock)
	recomputer := NewConfigSlaRecomputer(conversations, 15, 240)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	anchor := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	wantFirstResponse := anchor.Add(15 * time.Minute)
	wantResolution := anchor.Add(4 * time.Hour)

	conversations.On("UpdateSla", mock.Anything, "conv-1", model.TicketStatusOpen,
		mock.MatchedBy(func(ts *time.Time) bool { return ts != nil && ts.Equal(wantFirstResponse) }),
		mock.MatchedBy(func(ts *time.Time) bool { return ts != nil && ts.Equal(wantResolution) }),
	).Return(nil)

	err := recomputer.RecomputeSla(ctx, "ws-1", "conv-1", SlaOverrides{
		TicketStatus:          model.TicketStatusOpen,
		LastCustomerMessageAt: &anchor,
	})

	require.NoError(t, err)
	conversations.AssertExpectations(t)
	// no read needed when the anchor is given
	conversations.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestConfigSlaRecomputer_ResolvedWithoutActivityClearsClocks(t *testing.T) {
	conversations := new(storagemock.ConversationRepoMock)
	recomputer := NewConfigSlaRecomputer(conversations, 15, 240)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	conversations.On("UpdateSla", mock.Anything, "conv-1", model.TicketStatusResolved,
		(*time.Time)(nil), (*time.Time)(nil)).Return(nil)

	err := recomputer.RecomputeSla(ctx, "ws-1", "conv-1", SlaOverrides{
		TicketStatus: model.TicketStatusResolved,
	})

	require.NoError(t, err)
	conversations.AssertExpectations(t)
}

func TestConfigSlaRecomputer_NoActivityPreservesExistingDueTimes(t *testing.T) {
	conversations := new(storagemock.ConversationRepoMock)
	recomputer := NewConfigSlaRecomputer(conversations, 15, 240)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	existingFirst := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	existingResolution := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)
	conversations.On("FindByID", mock.Anything, "conv-1").Return(&model.Conversation{
		ID:                 "conv-1",
		TicketStatus:       model.TicketStatusOpen,
		FirstResponseDueAt: &existingFirst,
		ResolutionDueAt:    &existingResolution,
	}, nil)
	conversations.On("UpdateSla", mock.Anything, "conv-1", model.TicketStatusPending,
		&existingFirst, &existingResolution).Return(nil)

	err := recomputer.RecomputeSla(ctx, "ws-1", "conv-1", SlaOverrides{
		TicketStatus: model.TicketStatusPending,
	})

	require.NoError(t, err)
	conversations.AssertExpectations(t)
}

func TestConfigSlaRecomputer_LookupFailurePropagates(t *testing.T) {
	conversations := new(storagemock.ConversationRepoMock)
	recomputer := NewConfigSlaRecomputer(conversations, 15, 240)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	conversations.On("FindByID", mock.Anything, "conv-1").Return(nil, apperrors.ErrNotFound)

	err := recomputer.RecomputeSla(ctx, "ws-1", "conv-1", SlaOverrides{})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	conversations.AssertNotCalled(t, "UpdateSla", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
