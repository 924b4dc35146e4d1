// Package messaging sends reminder messages through the WhatsApp Cloud API.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/dvloznov/finance-reminders/internal/config"
	"github.com/dvloznov/finance-reminders/internal/identity"
)

// DefaultFirstName fills the template greeting when the user's name is unknown.
const DefaultFirstName = "cliente"

// Config configures a Client.
type Config struct {
	BaseURL          string
	APIVersion       string
	PhoneNumberID    string
	AccessToken      string
	TemplateName     string
	TemplateLanguage string
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
}

// ConfigFrom maps the service configuration to a client Config.
func ConfigFrom(c config.WhatsAppConfig) Config {
	return Config{
		BaseURL:          c.BaseURL,
		APIVersion:       c.APIVersion,
		PhoneNumberID:    c.PhoneNumberID,
		AccessToken:      c.AccessToken,
		TemplateName:     c.TemplateName,
		TemplateLanguage: c.TemplateLanguage,
		Timeout:          c.Timeout,
		RatePerSecond:    c.RatePerSecond,
		Burst:            c.Burst,
	}
}

// Client is a WhatsApp Cloud API client guarded by a rate limiter and a
// circuit breaker.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[*messagesResponse]
	log        zerolog.Logger
}

// New creates a Client.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.PhoneNumberID = strings.TrimSpace(cfg.PhoneNumberID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if cfg.PhoneNumberID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("New: %w: phone number ID and access token are required", ErrNotConfigured)
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v21.0"
	}
	if cfg.TemplateLanguage == "" {
		cfg.TemplateLanguage = "pt_BR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	log = log.With().Str("client", "whatsapp").Logger()

	cb := gobreaker.NewCircuitBreaker[*messagesResponse](gobreaker.Settings{
		Name:        "whatsapp-cloud-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cb:         cb,
		log:        log,
	}, nil
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateBody struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type interactiveBody struct {
	Type string `json:"type"`
	Body struct {
		Text string `json:"text"`
	} `json:"body"`
	Action struct {
		Buttons []replyButton `json:"buttons"`
	} `json:"action"`
}

type messageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textBody        `json:"text,omitempty"`
	Template         *templateBody    `json:"template,omitempty"`
	Interactive      *interactiveBody `json:"interactive,omitempty"`
}

type messagesResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (r *messagesResponse) delivered() bool {
	return r != nil && len(r.Messages) > 0 && r.Messages[0].ID != ""
}

func newRequest(to, kind string) messageRequest {
	return messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               destination(to),
		Type:             kind,
	}
}

// SendText sends a free-form text message.
func (c *Client) SendText(ctx context.Context, to, body string) (bool, error) {
	req := newRequest(to, "text")
	req.Text = &textBody{Body: body}

	resp, err := c.send(ctx, req)
	if err != nil {
		return false, fmt.Errorf("SendText: %w", err)
	}
	return resp.delivered(), nil
}

// SendTemplate sends the configured reminder template greeting the user by
// first name.
func (c *Client) SendTemplate(ctx context.Context, to, userID, firstName string) (bool, error) {
	if strings.TrimSpace(firstName) == "" {
		firstName = DefaultFirstName
	}

	req := newRequest(to, "template")
	req.Template = &templateBody{
		Name:     c.cfg.TemplateName,
		Language: templateLanguage{Code: c.cfg.TemplateLanguage},
		Components: []templateComponent{{
			Type:       "body",
			Parameters: []templateParameter{{Type: "text", Text: firstName}},
		}},
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return false, fmt.Errorf("SendTemplate: %w", err)
	}
	c.log.Debug().Str("recipient", userID).Str("template", c.cfg.TemplateName).Msg("Template accepted")
	return resp.delivered(), nil
}

// SendCopyPrompt sends an interactive message whose body carries a payment
// code for the user to copy, with a single reply button.
func (c *Client) SendCopyPrompt(ctx context.Context, to, label, code, buttonText string) error {
	interactive := &interactiveBody{Type: "button"}
	interactive.Body.Text = fmt.Sprintf("*%s*\n%s", label, code)

	btn := replyButton{Type: "reply"}
	btn.Reply.ID = "copy_code"
	btn.Reply.Title = buttonText
	interactive.Action.Buttons = []replyButton{btn}

	req := newRequest(to, "interactive")
	req.Interactive = interactive

	if _, err := c.send(ctx, req); err != nil {
		return fmt.Errorf("SendCopyPrompt: %w", err)
	}
	return nil
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/%s/%s/messages", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.PhoneNumberID)
}

func (c *Client) send(ctx context.Context, req messageRequest) (*messagesResponse, error) {
	if req.To == "" {
		return nil, fmt.Errorf("send: recipient has no digits")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("send: waiting for rate limiter: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("send: encoding request: %w", err)
	}

	return c.cb.Execute(func() (*messagesResponse, error) {
		return c.post(ctx, payload)
	})
}

func (c *Client) post(ctx context.Context, payload []byte) (*messagesResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &SendError{StatusCode: resp.StatusCode, Body: string(raw)}
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil {
			se.Message = ae.Error.Message
			se.Code = ae.Error.Code
		}
		return nil, se
	}

	var out messagesResponse
	if len(raw) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

// destination returns the E.164 digits WhatsApp expects. National numbers
// get the default country code; values identity cannot parse fall back to
// their raw digits.
func destination(to string) string {
	if id := identity.Normalize(to); id != "" {
		return id
	}
	return recipientDigits(to)
}

// recipientDigits reduces a phone number or WhatsApp JID to its digits.
func recipientDigits(to string) string {
	if at := strings.IndexByte(to, '@'); at >= 0 {
		to = to[:at]
	}
	var b strings.Builder
	for _, r := range to {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// State returns the circuit breaker state, e.g. "closed" or "open".
func (c *Client) State() string {
	return c.cb.State().String()
}
