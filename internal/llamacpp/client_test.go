package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeServer(t *testing.T, completion map[string]any) (*httptest.Server, *map[string]any) {
	t.Helper()
	var lastCompletion map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&in)
		}
		switch r.URL.Path {
		case "/props":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model_path": "/models/llama-2-7b.Q8_0.gguf",
				"default_generation_settings": map[string]any{
					"n_ctx": 4,
				},
			})
		case "/tokenize":
			content, _ := in["content"].(string)
			tokens := []int{1}
			for range strings.Fields(content) {
				tokens = append(tokens, 100+len(tokens))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"tokens": tokens})
		case "/completion":
			lastCompletion = in
			_ = json.NewEncoder(w).Encode(completion)
		case "/detokenize":
			_ = json.NewEncoder(w).Encode(map[string]any{"content": "<s> Robert Boulter is</s>"})
		case "/v1/models":
			w.Write([]byte(`{"object":"list","data":[{"id":"llama-2-7b.Q8_0.gguf","meta":{"n_params":6738415616,"size":7161089536,"n_ctx_train":4096}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lastCompletion
}

func TestEncode(t *testing.T) {
	srv, _ := fakeServer(t, nil)
	c := New(srv.URL+"/", 0, nil)
	got, err := c.Encode(context.Background(), "a b c d e")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(got) != 6 || got[0] != 1 {
		t.Errorf("Encode = %v, want BOS plus 5 tokens", got)
	}
}

func TestEncode_TruncatesToContext(t *testing.T) {
	srv, _ := fakeServer(t, nil)
	c := New(srv.URL, 0, nil)
	p, err := c.Props(context.Background())
	if err != nil {
		t.Fatalf("Props: %v", err)
	}
	if p.ContextSize != 4 || p.ModelPath != "/models/llama-2-7b.Q8_0.gguf" {
		t.Errorf("Props = %+v", p)
	}
	got, err := c.Encode(context.Background(), "a b c d e")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("len(Encode) = %d, want 4 (context size)", len(got))
	}
}

func TestGenerate_ReturnsFullSequence(t *testing.T) {
	srv, last := fakeServer(t, map[string]any{"content": " is an", "tokens": []int{338, 385}})
	c := New(srv.URL, 0, nil)
	got, err := c.Generate(context.Background(), []int{1, 4121, 3630}, 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []int{1, 4121, 3630, 338, 385}
	if len(got) != len(want) {
		t.Fatalf("Generate = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Generate[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if n := (*last)["n_predict"]; n != float64(7) {
		t.Errorf("n_predict = %v, want 7", n)
	}
	if rt := (*last)["return_tokens"]; rt != true {
		t.Errorf("return_tokens = %v, want true", rt)
	}
}

func TestGenerate_InputAtMaxLength(t *testing.T) {
	srv, last := fakeServer(t, map[string]any{"tokens": []int{13}})
	c := New(srv.URL, 0, nil)
	if _, err := c.Generate(context.Background(), []int{1, 2, 3, 4}, 4); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n := (*last)["n_predict"]; n != float64(1) {
		t.Errorf("n_predict = %v, want 1", n)
	}
}

func TestGenerate_TextWithoutTokens(t *testing.T) {
	srv, _ := fakeServer(t, map[string]any{"content": "hello"})
	c := New(srv.URL, 0, nil)
	if _, err := c.Generate(context.Background(), []int{1}, 8); err == nil {
		t.Error("expected error when the server omits token ids")
	}
}

func TestDecode_SkipSpecial(t *testing.T) {
	srv, _ := fakeServer(t, nil)
	c := New(srv.URL, 0, []string{"<s>", "</s>"})
	got, err := c.Decode(context.Background(), []int{1, 2}, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != " Robert Boulter is" {
		t.Errorf("Decode = %q", got)
	}
	raw, err := c.Decode(context.Background(), []int{1, 2}, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !strings.HasPrefix(raw, "<s>") {
		t.Errorf("Decode(skipSpecial=false) = %q, want markers kept", raw)
	}
}

func TestServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 500, "message": "failed to allocate KV cache", "type": "server_error"},
		})
	}))
	defer srv.Close()
	c := New(srv.URL, 0, nil)
	_, err := c.Generate(context.Background(), []int{1}, 8)
	if err == nil || !strings.Contains(err.Error(), "failed to allocate KV cache") {
		t.Errorf("err = %v, want server message", err)
	}
}

func TestModelMeta(t *testing.T) {
	srv, _ := fakeServer(t, nil)
	meta, err := New(srv.URL, 0, nil).ModelMeta(context.Background())
	if err != nil {
		t.Fatalf("ModelMeta: %v", err)
	}
	if meta.NParams != 6738415616 || meta.SizeBytes != 7161089536 || meta.NCtxTrain != 4096 {
		t.Errorf("ModelMeta = %+v", meta)
	}
}

func TestModelMeta_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"m"}]}`))
	}))
	defer srv.Close()
	if _, err := New(srv.URL, 0, nil).ModelMeta(context.Background()); err == nil {
		t.Error("expected error when meta is absent")
	}
}
