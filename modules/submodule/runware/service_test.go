package runware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quel-style-server/modules/inference"
)

func TestGenerateImageDownloadsURL(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nimage")

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/v1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var tasks []RunwareRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tasks))
		require.Len(t, tasks, 1)
		assert.Equal(t, "imageInference", tasks[0].TaskType)
		assert.Equal(t, FluxDevModelID, tasks[0].Model)
		assert.Equal(t, 30, tasks[0].Steps)
		assert.Equal(t, 768, tasks[0].Width)
		assert.Equal(t, "a castle", tasks[0].PositivePrompt)
		assert.NotEmpty(t, tasks[0].TaskUUID)

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"taskType": "imageInference", "imageURL": srv.URL + "/img.png"}},
		})
	})
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	svc, err := NewService(srv.URL+"/v1", "secret", "")
	require.NoError(t, err)

	out, err := svc.GenerateImage(context.Background(), "a castle", inference.SynthesisOptions{Steps: 30, Width: 768, Height: 768})
	require.NoError(t, err)
	assert.Equal(t, png, out)
}

func TestGenerateImageBase64Data(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"imageBase64Data": base64.StdEncoding.EncodeToString([]byte("png"))}},
		})
	}))
	defer srv.Close()

	svc, err := NewService(srv.URL, "secret", "runware:100@1")
	require.NoError(t, err)

	out, err := svc.GenerateImage(context.Background(), "x", inference.SynthesisOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), out)
}

func TestGenerateImageErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error list", http.StatusBadRequest, `{"errors":[{"code":"invalidApiKey","message":"Invalid API key"}]}`, "Invalid API key"},
		{"plain error body", http.StatusBadGateway, `upstream unavailable`, "status=502"},
		{"error field", http.StatusOK, `{"error":"quota exceeded"}`, "quota exceeded"},
		{"no data", http.StatusOK, `{"data":[]}`, "no image generated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc, err := NewService(srv.URL, "secret", "")
			require.NoError(t, err)

			_, err = svc.GenerateImage(context.Background(), "x", inference.SynthesisOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewServiceRequiresKey(t *testing.T) {
	_, err := NewService("https://api.runware.ai/v1", "", "")
	assert.EqualError(t, err, "RUNWARE_API_KEY not configured")
}
