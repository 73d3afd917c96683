package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapair/internal/constants"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func TestCreateInstance(t *testing.T) {
	var gotAPIKey, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/instance/create", r.URL.Path)
		gotAPIKey = r.Header.Get("apikey")

		var req createInstanceRequest
		require.NoError(t, jsonDecode(r, &req))
		gotName = req.InstanceName
		assert.True(t, req.QRCode)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "secret", "wa")
	name, err := c.CreateInstance(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, gotName, name)
	assert.Equal(t, "secret", gotAPIKey)
	assert.Regexp(t, regexp.MustCompile(`^wa_\d+_[0-9a-f]{8}$`), name)
}

func TestCreateInstanceUniqueNames(t *testing.T) {
	c := NewEvolutionClient("http://unused", "", "wa")
	assert.NotEqual(t, c.newInstanceName(), c.newInstanceName())
}

func TestCreateInstanceProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	_, err := c.CreateInstance(context.Background(), "s1")

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
}

func TestGetQRCodeFromBase64Image(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/instance/connect/wa_1", r.URL.Path)
		w.Write([]byte(`{"base64":"data:image/png;base64,QVami"}`))
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	qr, err := c.GetQRCode(context.Background(), "wa_1")
	require.NoError(t, err)
	assert.Equal(t, "QVami", qr)
}

func TestGetQRCodeRendersPairingCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"2@abcdef"}`))
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	qr, err := c.GetQRCode(context.Background(), "wa_1")
	require.NoError(t, err)
	require.NotEmpty(t, qr)

	png, err := base64.StdEncoding.DecodeString(qr)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestGetQRCodeNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	qr, err := c.GetQRCode(context.Background(), "wa_1")
	require.NoError(t, err)
	assert.Empty(t, qr)
}

func TestGetQRCodeInstanceWarmingUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	qr, err := c.GetQRCode(context.Background(), "wa_1")
	require.NoError(t, err)
	assert.Empty(t, qr)
}

func TestGetQRCodeHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	_, err := c.GetQRCode(context.Background(), "wa_1")
	assert.Error(t, err)
}

func TestCheckStatusOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/instance/connectionState/wa_1", r.URL.Path)
		w.Write([]byte(`{"instance":{"instanceName":"wa_1","state":"open"}}`))
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	state, err := c.CheckStatus(context.Background(), "wa_1")
	require.NoError(t, err)
	assert.True(t, state.Connected)
	assert.Equal(t, constants.StatusOpen, state.Status)
}

func TestCheckStatusConnecting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"instance":{"state":"connecting"}}`))
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	state, err := c.CheckStatus(context.Background(), "wa_1")
	require.NoError(t, err)
	assert.False(t, state.Connected)
	assert.Equal(t, "connecting", state.Status)
}

func TestCheckStatusDegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	srv.Close() // connection refused

	c := NewEvolutionClient(srv.URL, "", "wa")
	state, err := c.CheckStatus(context.Background(), "wa_1")
	require.NoError(t, err)
	assert.False(t, state.Connected)
	assert.Equal(t, constants.StatusError, state.Status)
}

func TestDeleteInstanceBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "already gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	c.DeleteInstance(context.Background(), "wa_1") // must not panic
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/message/sendText/wa_1", r.URL.Path)
		var req sendTextRequest
		require.NoError(t, jsonDecode(r, &req))
		assert.Equal(t, "5511999999999", req.Number)
		assert.Equal(t, "hello", req.Text)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	err := c.SendMessage(context.Background(), "wa_1", "5511999999999", "hello")
	assert.NoError(t, err)
}

func TestSendMessageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad number", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewEvolutionClient(srv.URL, "", "wa")
	err := c.SendMessage(context.Background(), "wa_1", "invalid", "hello")

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
}
