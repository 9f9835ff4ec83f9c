package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-account-api/internal/config"
)

// TemplateService sends codes through a hosted template mail API
// (EmailJS REST shape). The template receives verificationCode and to.
type TemplateService struct {
	name     string
	endpoint string
	creds    config.TemplateMailService
	client   *http.Client
}

func NewTemplateService(name, endpoint string, creds config.TemplateMailService, client *http.Client) *TemplateService {
	if client == nil {
		client = http.DefaultClient
	}
	return &TemplateService{name: name, endpoint: endpoint, creds: creds, client: client}
}

func (s *TemplateService) Name() string { return s.name }

type templateRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken"`
	TemplateParams map[string]string `json:"template_params"`
}

func (s *TemplateService) SendCode(ctx context.Context, to, code string) error {
	payload, err := json.Marshal(templateRequest{
		ServiceID:   s.creds.ServiceID,
		TemplateID:  s.creds.TemplateID,
		UserID:      s.creds.PublicKey,
		AccessToken: s.creds.PrivateKey,
		TemplateParams: map[string]string{
			"verificationCode": code,
			"to":               to,
		},
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error carries only method and endpoint.
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
