package model

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewOutboxMessage creates an OutboxMessage with fake data, queued and due now.
func NewOutboxMessage(override ...func(*OutboxMessage)) *OutboxMessage {
	payload := OutboxPayload{
		Kind:      OutboxKindText,
		MessageID: uuid.NewString(),
		Text:      gofakeit.Sentence(4),
	}
	m := &OutboxMessage{
		ID:             uuid.NewString(),
		WorkspaceID:    "ws_" + gofakeit.LetterN(8),
		ThreadID:       uuid.NewString(),
		ToPhone:        "+62" + gofakeit.DigitN(10),
		MessageType:    OutboxKindText,
		Payload:        datatypes.JSON(utils.MustMarshalJSON(payload)),
		Status:         OutboxStatusQueued,
		IdempotencyKey: uuid.NewString(),
		NextAttemptAt:  utils.Now().Add(-time.Minute),
		CreatedAt:      utils.Now().Add(-time.Hour),
		UpdatedAt:      utils.Now(),
	}
	for _, fn := range override {
		fn(m)
	}
	return m
}

// NewSendJob creates a SendJob with fake data in pending status.
func NewSendJob(override ...func(*SendJob)) *SendJob {
	j := &SendJob{
		ID:                 uuid.NewString(),
		WorkspaceID:        "ws_" + gofakeit.LetterN(8),
		ConnectionID:       uuid.NewString(),
		TemplateID:         uuid.NewString(),
		Name:               gofakeit.ProductName(),
		Status:             SendJobStatusPending,
		TotalCount:         0,
		RateLimitPerMinute: 60,
		CreatedBy:          gofakeit.Username(),
		CreatedAt:          utils.Now().Add(-time.Hour),
		UpdatedAt:          utils.Now(),
	}
	for _, fn := range override {
		fn(j)
	}
	return j
}

// NewSendJobItem creates a queued SendJobItem for the given job.
func NewSendJobItem(job *SendJob, override ...func(*SendJobItem)) *SendJobItem {
	it := &SendJobItem{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		WorkspaceID: job.WorkspaceID,
		ContactID:   uuid.NewString(),
		ToPhone:     "+62" + gofakeit.DigitN(10),
		Params:      datatypes.JSON(utils.MustMarshalJSON([]string{gofakeit.FirstName()})),
		Status:      SendJobItemStatusQueued,
		CreatedAt:   utils.Now(),
		UpdatedAt:   utils.Now(),
	}
	for _, fn := range override {
		fn(it)
	}
	return it
}

// NewContact creates a Contact with fake data.
func NewContact(override ...func(*Contact)) *Contact {
	c := &Contact{
		ID:          uuid.NewString(),
		WorkspaceID: "ws_" + gofakeit.LetterN(8),
		Phone:       "+62" + gofakeit.DigitN(10),
		Name:        gofakeit.Name(),
		Email:       gofakeit.Email(),
		CreatedAt:   utils.Now(),
		UpdatedAt:   utils.Now(),
	}
	c.WaID = c.Phone[1:]
	for _, fn := range override {
		fn(c)
	}
	return c
}

// NewConversation creates an open Conversation for the given contact.
func NewConversation(contact *Contact, override ...func(*Conversation)) *Conversation {
	v := &Conversation{
		ID:           uuid.NewString(),
		WorkspaceID:  contact.WorkspaceID,
		ContactID:    contact.ID,
		TicketStatus: TicketStatusOpen,
		Priority:     PriorityLow,
		CreatedAt:    utils.Now(),
		UpdatedAt:    utils.Now(),
	}
	for _, fn := range override {
		fn(v)
	}
	return v
}

// NewTemplate creates an approved Template with the given placeholder count.
func NewTemplate(paramCount int, override ...func(*Template)) *Template {
	t := &Template{
		ID:          uuid.NewString(),
		WorkspaceID: "ws_" + gofakeit.LetterN(8),
		Name:        gofakeit.Word() + "_update",
		Language:    "en",
		ParamCount:  paramCount,
		Status:      TemplateStatusApproved,
		CreatedAt:   utils.Now(),
		UpdatedAt:   utils.Now(),
	}
	for _, fn := range override {
		fn(t)
	}
	return t
}
