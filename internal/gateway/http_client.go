package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
)

const maxResponseBytes = 1 << 20

// HTTPClient sends messages through the WhatsApp Cloud API over HTTPS.
type HTTPClient struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewHTTPClient builds a Cloud API client. baseURL is normally
// https://graph.facebook.com and apiVersion something like v19.0.
func NewHTTPClient(baseURL, apiVersion string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type cloudAPIMessage struct {
	MessagingProduct string            `json:"messaging_product"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Text             *cloudAPIText     `json:"text,omitempty"`
	Template         *cloudAPITemplate `json:"template,omitempty"`
}

type cloudAPIText struct {
	Body string `json:"body"`
}

type cloudAPITemplate struct {
	Name       string              `json:"name"`
	Language   cloudAPILanguage    `json:"language"`
	Components []cloudAPIComponent `json:"components,omitempty"`
}

type cloudAPILanguage struct {
	Code string `json:"code"`
}

type cloudAPIComponent struct {
	Type       string              `json:"type"`
	Parameters []cloudAPIParameter `json:"parameters"`
}

type cloudAPIParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cloudAPIResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendMessage posts one message to /<version>/<phone_number_id>/messages.
// Transport failures and 5xx/429 responses come back as retryable errors;
// other rejections are reported in the result so the caller can fail the
// message terminally with the platform's reason.
func (c *HTTPClient) SendMessage(ctx context.Context, req SendRequest) (SendResult, error) {
	body := cloudAPIMessage{
		MessagingProduct: "whatsapp",
		To:               req.To,
	}
	switch req.Kind {
	case "template":
		body.Type = "template"
		tpl := &cloudAPITemplate{
			Name:     req.TemplateName,
			Language: cloudAPILanguage{Code: req.TemplateLanguage},
		}
		if len(req.TemplateParams) > 0 {
			params := make([]cloudAPIParameter, 0, len(req.TemplateParams))
			for _, p := range req.TemplateParams {
				params = append(params, cloudAPIParameter{Type: "text", Text: p})
			}
			tpl.Components = []cloudAPIComponent{{Type: "body", Parameters: params}}
		}
		body.Template = tpl
	default:
		body.Type = "text"
		body.Text = &cloudAPIText{Body: req.Text}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return SendResult{}, fmt.Errorf("%w: marshal send payload: %w", apperrors.ErrBadRequest, err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, req.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("build send request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	observer.ObserveGatewayCallDuration("send_message", time.Since(startTime), err)
	if err != nil {
		return SendResult{}, apperrors.NewRetryable(fmt.Errorf("%w: %w", apperrors.ErrGateway, err), "gateway send transport failure")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return SendResult{}, apperrors.NewRetryable(fmt.Errorf("%w: read response: %w", apperrors.ErrGateway, err), "gateway send read failure")
	}

	result := SendResult{HTTPStatus: resp.StatusCode, RawResponse: raw}

	var decoded cloudAPIResponse
	if err := json.Unmarshal(raw, &decoded); err != nil && resp.StatusCode < 300 {
		return result, apperrors.NewRetryable(fmt.Errorf("%w: decode response: %w", apperrors.ErrGateway, err), "gateway send decode failure")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300 && len(decoded.Messages) > 0:
		result.OK = true
		result.MessageID = decoded.Messages[0].ID
		return result, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		msg := gatewayErrorMessage(decoded, resp.StatusCode)
		result.ErrorMessage = msg
		return result, apperrors.NewRetryable(fmt.Errorf("%w: %s", apperrors.ErrGateway, msg), "gateway rejected send transiently")
	default:
		result.ErrorMessage = gatewayErrorMessage(decoded, resp.StatusCode)
		logger.FromContext(ctx).Warn("Gateway rejected outbound message",
			zap.Int("status", resp.StatusCode),
			zap.String("error", result.ErrorMessage))
		return result, nil
	}
}

// FetchMediaURL resolves a media id to its temporary download URL via
// GET /<version>/<media_id>.
func (c *HTTPClient) FetchMediaURL(ctx context.Context, accessToken, mediaID string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, mediaID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	observer.ObserveGatewayCallDuration("fetch_media_url", time.Since(startTime), err)
	if err != nil {
		return "", apperrors.NewRetryable(fmt.Errorf("%w: %w", apperrors.ErrGateway, err), "gateway media transport failure")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", apperrors.NewRetryable(fmt.Errorf("%w: read media response: %w", apperrors.ErrGateway, err), "gateway media read failure")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: media lookup status %d", apperrors.ErrGateway, resp.StatusCode)
	}

	var decoded struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode media response: %w", apperrors.ErrGateway, err)
	}
	if decoded.URL == "" {
		return "", fmt.Errorf("%w: media %s has no url", apperrors.ErrNotFound, mediaID)
	}
	return decoded.URL, nil
}

func gatewayErrorMessage(decoded cloudAPIResponse, status int) string {
	if decoded.Error != nil && decoded.Error.Message != "" {
		return fmt.Sprintf("%s (code %d)", decoded.Error.Message, decoded.Error.Code)
	}
	return fmt.Sprintf("gateway returned status %d", status)
}
