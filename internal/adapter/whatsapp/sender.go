// Package whatsapp delivers outbound messages through a Cloud-API
// compatible WhatsApp endpoint.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/uptalk/switchboard/internal/adapter/otel"
	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain/conversation"
)

type textPayload struct {
	Body string `json:"body"`
}

type messagePayload struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

// Sender implements the outbound transport port against the WhatsApp
// Business Cloud API. The recipient is the client's phone number in
// international format, which is also the client id on this channel.
type Sender struct {
	apiURL  string
	phoneID string
	token   string
	client  *http.Client
}

func NewSender(cfg config.WhatsApp) *Sender {
	return &Sender{
		apiURL:  cfg.APIURL,
		phoneID: cfg.PhoneID,
		token:   cfg.AccessToken,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *Sender) Channel() conversation.Channel { return conversation.ChannelWhatsApp }

func (s *Sender) Send(ctx context.Context, to, body string) error {
	ctx, span := otel.StartDeliverySpan(ctx, string(conversation.ChannelWhatsApp), to)
	defer span.End()

	payload, err := json.Marshal(messagePayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textPayload{Body: body},
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.apiURL, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp send: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
