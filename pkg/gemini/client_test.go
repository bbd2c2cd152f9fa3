package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/resilience"
)

func TestGenerateContent(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
		wantText      string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"candidates": [{"content": {"role": "model", "parts": [{"text": "Acme Corp "}, {"text": "leads the market."}]}, "finishReason": "STOP"}],
				"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 7}
			}`,
			wantText: "Acme Corp leads the market.",
		},
		{
			name:          "overloaded",
			status:        http.StatusServiceUnavailable,
			body:          `{"error": {"message": "model overloaded"}}`,
			wantErr:       "unexpected status 503",
			wantTransient: true,
		},
		{
			name:    "invalid_key",
			status:  http.StatusForbidden,
			body:    `{"error": {"message": "API key invalid"}}`,
			wantErr: "unexpected status 403",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))

			resp, err := client.GenerateContent(context.Background(), GenerateContentRequest{
				Contents: []Content{{Role: "user", Parts: []Part{{Text: "Which tool leads?"}}}},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text())
			assert.Equal(t, 12, resp.UsageMetadata.PromptTokenCount)
			assert.Equal(t, 7, resp.UsageMetadata.CandidatesTokenCount)
		})
	}
}

func TestResponseTextEmpty(t *testing.T) {
	var r GenerateContentResponse
	assert.Empty(t, r.Text())
}
