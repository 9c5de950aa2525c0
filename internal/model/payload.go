package model

// --- Webhook delivery payload --- //
// Shapes follow the gateway's cloud-API webhook format. All fields are
// optional by construction; absent fields degrade to safe defaults.

// WebhookPayload is the top-level POST body.
type WebhookPayload struct {
	Object string         `json:"object,omitempty"`
	Entry  []WebhookEntry `json:"entry,omitempty"`
}

// WebhookEntry groups changes for one subscribed object.
type WebhookEntry struct {
	ID      string          `json:"id,omitempty"`
	Changes []WebhookChange `json:"changes,omitempty"`
}

// WebhookChange carries one value set.
type WebhookChange struct {
	Field string       `json:"field,omitempty"`
	Value WebhookValue `json:"value,omitempty"`
}

// WebhookValue holds zero or more delivery statuses and inbound messages plus
// contact profile hints.
type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product,omitempty"`
	Metadata         *WebhookMetadata `json:"metadata,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
}

// WebhookMetadata identifies the receiving phone number.
type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number,omitempty"`
	PhoneNumberID      string `json:"phone_number_id,omitempty"`
}

// WebhookStatus is one delivery receipt.
type WebhookStatus struct {
	ID          string         `json:"id,omitempty"` // wa message id
	Status      string         `json:"status,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	RecipientID string         `json:"recipient_id,omitempty"`
	Errors      []WebhookError `json:"errors,omitempty"`
}

// WebhookError is a gateway-reported delivery error.
type WebhookError struct {
	Code    int    `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// WebhookContact is a sender profile hint delivered alongside messages.
type WebhookContact struct {
	WaID    string `json:"wa_id,omitempty"`
	Profile struct {
		Name string `json:"name,omitempty"`
	} `json:"profile,omitempty"`
}

// WebhookMessage is one inbound customer message.
type WebhookMessage struct {
	ID        string        `json:"id,omitempty"` // wa message id
	From      string        `json:"from,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"` // epoch seconds as string
	Type      string        `json:"type,omitempty"`
	Text      *WebhookText  `json:"text,omitempty"`
	Image     *WebhookMedia `json:"image,omitempty"`
	Document  *WebhookMedia `json:"document,omitempty"`
	Video     *WebhookMedia `json:"video,omitempty"`
	Audio     *WebhookMedia `json:"audio,omitempty"`
}

// WebhookText is the body of a text message.
type WebhookText struct {
	Body string `json:"body,omitempty"`
}

// WebhookMedia is a media reference within an inbound message.
type WebhookMedia struct {
	ID       string `json:"id,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Sha256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// --- Request payloads --- //

// EnqueueReplyPayload requests a single outbound send through the outbox.
type EnqueueReplyPayload struct {
	WorkspaceID      string   `json:"workspace_id" validate:"required"`
	ThreadID         string   `json:"thread_id" validate:"required"`
	ToPhone          string   `json:"to_phone" validate:"required"`
	MessageType      string   `json:"message_type" validate:"required,oneof=text template"`
	Text             string   `json:"text,omitempty"`
	TemplateName     string   `json:"template_name,omitempty"`
	TemplateLanguage string   `json:"template_language,omitempty"`
	TemplateParams   []string `json:"template_params,omitempty"`
}

// CreateSendJobPayload requests a new bulk campaign.
type CreateSendJobPayload struct {
	WorkspaceID        string            `json:"workspace_id" validate:"required"`
	TemplateID         string            `json:"template_id" validate:"required"`
	Name               string            `json:"name" validate:"required"`
	ContactIDs         []string          `json:"contact_ids" validate:"required,min=1"`
	Mappings           []ParamMapping    `json:"mappings,omitempty" validate:"omitempty,dive"`
	GlobalValues       map[string]string `json:"global_values,omitempty"`
	RateLimitPerMinute int               `json:"rate_limit_per_minute" validate:"omitempty,gte=1"`
	CreatedBy          string            `json:"created_by,omitempty"`
}

// --- Worker batch summaries --- //

// OutboxBatchSummary is the outbox worker trigger response body.
type OutboxBatchSummary struct {
	OK        bool `json:"ok"`
	Processed int  `json:"processed"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Requeued  int  `json:"requeued"`
}

// BulkSendBatchSummary is the bulk send worker trigger response body.
type BulkSendBatchSummary struct {
	OK        bool `json:"ok"`
	Processed int  `json:"processed"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
}
