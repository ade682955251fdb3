package ollama

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/stretchr/testify/require"
)

func TestRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		bts, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(bts, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"{\"quote\":\"q\"}"},"done":true,"prompt_eval_count":7,"eval_count":3}`)
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	resp, err := client.Request(t.Context(), proto.Request{
		Model:        "llama3",
		Messages:     []proto.Message{{Role: proto.RoleUser, Content: "quote"}},
		OutputSchema: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)
	require.Equal(t, `{"quote":"q"}`, resp.Content)
	require.Equal(t, proto.Usage{InputTokens: 7, OutputTokens: 3, TotalTokens: 10, Requests: 1}, resp.Usage)
	require.Equal(t, false, body["stream"])
	require.Equal(t, map[string]any{"type": "object"}, body["format"])
}

func TestFromProtoMessagesRejectsDocuments(t *testing.T) {
	_, err := fromProtoMessages([]proto.Message{{
		Role:       proto.RoleUser,
		Attachment: &proto.Attachment{MIMEType: "application/pdf"},
	}})
	require.ErrorIs(t, err, llm.ErrAttachmentNotSupported)

	msgs, err := fromProtoMessages([]proto.Message{{
		Role:       proto.RoleUser,
		Attachment: &proto.Attachment{MIMEType: "image/png", Data: []byte("png")},
	}})
	require.NoError(t, err)
	require.Len(t, msgs[0].Images, 1)
}
