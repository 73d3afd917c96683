package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"wapair/internal/constants"
)

// EvolutionClient talks to an Evolution-style WhatsApp provider API. One
// provider "instance" backs one pairing session.
type EvolutionClient struct {
	baseURL string
	apiKey  string
	prefix  string
	http    *http.Client
}

func NewEvolutionClient(baseURL, apiKey, prefix string) *EvolutionClient {
	return &EvolutionClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		prefix:  prefix,
		http:    &http.Client{Timeout: constants.ProviderTimeout},
	}
}

type createInstanceRequest struct {
	InstanceName string `json:"instanceName"`
	QRCode       bool   `json:"qrcode"`
}

type qrCodeResponse struct {
	Base64 string `json:"base64"`
	Code   string `json:"code"`
}

type connectionStateResponse struct {
	Instance struct {
		InstanceName string `json:"instanceName"`
		State        string `json:"state"`
	} `json:"instance"`
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

func (c *EvolutionClient) CreateInstance(ctx context.Context, sessionID string) (string, error) {
	name := c.newInstanceName()

	err := c.do(ctx, http.MethodPost, "/instance/create", createInstanceRequest{
		InstanceName: name,
		QRCode:       true,
	}, nil)
	if err != nil {
		return "", err
	}

	log.Printf("✨ Provider instance created: %s (session %s)", name, sessionID)
	return name, nil
}

// GetQRCode returns "" with no error while the provider has not produced a
// code yet. When the provider hands back a raw pairing code instead of an
// image, it is rendered to a base64 PNG here.
func (c *EvolutionClient) GetQRCode(ctx context.Context, instanceName string) (string, error) {
	var resp qrCodeResponse
	err := c.do(ctx, http.MethodGet, "/instance/connect/"+instanceName, nil, &resp)

	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound {
		// instance still warming up on the provider side
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if resp.Base64 != "" {
		return strings.TrimPrefix(resp.Base64, "data:image/png;base64,"), nil
	}
	if resp.Code != "" {
		png, err := qrcode.Encode(resp.Code, qrcode.Medium, 256)
		if err != nil {
			return "", &ProviderError{Op: "getQRCode", Err: err}
		}
		return base64.StdEncoding.EncodeToString(png), nil
	}
	return "", nil
}

// CheckStatus never returns an error: any failure degrades to an error state
// so a poll tick cannot crash on a transient provider fault.
func (c *EvolutionClient) CheckStatus(ctx context.Context, instanceName string) (ConnectionState, error) {
	var resp connectionStateResponse
	if err := c.do(ctx, http.MethodGet, "/instance/connectionState/"+instanceName, nil, &resp); err != nil {
		log.Printf("⚠️ Status check failed for %s: %v", instanceName, err)
		return ConnectionState{Connected: false, Status: constants.StatusError}, nil
	}

	state := resp.Instance.State
	if state == "" {
		state = constants.StatusError
	}
	return ConnectionState{Connected: state == constants.StatusOpen, Status: state}, nil
}

func (c *EvolutionClient) DeleteInstance(ctx context.Context, instanceName string) {
	if err := c.do(ctx, http.MethodDelete, "/instance/delete/"+instanceName, nil, nil); err != nil {
		log.Printf("⚠️ Instance delete failed (ignored): %s: %v", instanceName, err)
		return
	}
	log.Printf("🗑 Provider instance deleted: %s", instanceName)
}

func (c *EvolutionClient) SendMessage(ctx context.Context, instanceName, phone, text string) error {
	err := c.do(ctx, http.MethodPost, "/message/sendText/"+instanceName, sendTextRequest{
		Number: phone,
		Text:   text,
	}, nil)
	if err != nil {
		return err
	}
	log.Printf("📤 Message sent via %s", instanceName)
	return nil
}

// newInstanceName is prefix_timestamp_randomSuffix; the suffix keeps names
// unique when two sessions connect within the same millisecond.
func (c *EvolutionClient) newInstanceName() string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s_%d_%s", c.prefix, time.Now().UnixMilli(), suffix)
}

func (c *EvolutionClient) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &ProviderError{Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(data))),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ProviderError{Op: op, Err: err}
		}
	}
	return nil
}
