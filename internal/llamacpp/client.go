// Package llamacpp talks to a llama.cpp server hosting a quantized GGUF checkpoint.
// Client implements the harness Tokenizer and Model over the server's REST API.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "quanteval/0.1.0"

// Client is a llama.cpp server client.
type Client struct {
	baseURL       string
	http          *http.Client
	specialTokens []string
	contextSize   int
}

// Props is the subset of GET /props used for the report header and truncation.
type Props struct {
	ModelPath   string
	ContextSize int
}

type propsResponse struct {
	ModelPath string `json:"model_path"`
	NCtx      int    `json:"n_ctx"`
	Default   struct {
		NCtx int `json:"n_ctx"`
	} `json:"default_generation_settings"`
}

type serverError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// New returns a client for the server at baseURL. A zero timeout means no
// client-side timeout; generation runs until the server answers.
func New(baseURL string, timeout time.Duration, specialTokens []string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: timeout},
		specialTokens: specialTokens,
	}
}

// Props fetches server properties and remembers the context size for Encode.
func (c *Client) Props(ctx context.Context) (Props, error) {
	var pr propsResponse
	if err := c.do(ctx, http.MethodGet, "/props", nil, &pr); err != nil {
		return Props{}, err
	}
	p := Props{ModelPath: pr.ModelPath, ContextSize: pr.Default.NCtx}
	if p.ContextSize == 0 {
		p.ContextSize = pr.NCtx
	}
	c.contextSize = p.ContextSize
	return p, nil
}

// Meta is the model metadata reported by GET /v1/models.
type Meta struct {
	NParams   uint64 `json:"n_params"`
	SizeBytes uint64 `json:"size"`
	NCtxTrain int    `json:"n_ctx_train"`
}

// ModelMeta returns the metadata of the first served model. Older servers
// without the endpoint return an error.
func (c *Client) ModelMeta(ctx context.Context) (Meta, error) {
	var out struct {
		Data []struct {
			ID   string `json:"id"`
			Meta *Meta  `json:"meta"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/models", nil, &out); err != nil {
		return Meta{}, err
	}
	if len(out.Data) == 0 || out.Data[0].Meta == nil {
		return Meta{}, fmt.Errorf("/v1/models: no model metadata")
	}
	return *out.Data[0].Meta, nil
}

// Encode tokenizes prompt with the model's special prefix tokens, truncating
// to the context size when it is known.
func (c *Client) Encode(ctx context.Context, prompt string) ([]int, error) {
	var out struct {
		Tokens []int `json:"tokens"`
	}
	in := map[string]any{"content": prompt, "add_special": true}
	if err := c.do(ctx, http.MethodPost, "/tokenize", in, &out); err != nil {
		return nil, err
	}
	if c.contextSize > 0 && len(out.Tokens) > c.contextSize {
		out.Tokens = out.Tokens[:c.contextSize]
	}
	return out.Tokens, nil
}

// Generate decodes greedily until the sequence reaches maxLength tokens
// (input included) or the model stops. At least one token is requested even
// when the input already fills maxLength. The result is input followed by the
// generated tokens.
func (c *Client) Generate(ctx context.Context, input []int, maxLength int) ([]int, error) {
	nPredict := max(maxLength-len(input), 1)
	in := map[string]any{
		"prompt":        input,
		"n_predict":     nPredict,
		"temperature":   0,
		"top_k":         1,
		"cache_prompt":  false,
		"return_tokens": true,
		"stream":        false,
	}
	var out struct {
		Content string `json:"content"`
		Tokens  []int  `json:"tokens"`
	}
	if err := c.do(ctx, http.MethodPost, "/completion", in, &out); err != nil {
		return nil, err
	}
	if len(out.Tokens) == 0 && out.Content != "" {
		return nil, fmt.Errorf("completion: server returned text without token ids (return_tokens unsupported?)")
	}
	seq := make([]int, 0, len(input)+len(out.Tokens))
	seq = append(seq, input...)
	return append(seq, out.Tokens...), nil
}

// Decode detokenizes tokens. With skipSpecial, the configured special token
// markers are removed from the text.
func (c *Client) Decode(ctx context.Context, tokens []int, skipSpecial bool) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodPost, "/detokenize", map[string]any{"tokens": tokens}, &out); err != nil {
		return "", err
	}
	if !skipSpecial {
		return out.Content, nil
	}
	text := out.Content
	for _, s := range c.specialTokens {
		if s != "" {
			text = strings.ReplaceAll(text, s, "")
		}
	}
	return text, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var se serverError
		if json.Unmarshal(raw, &se) == nil && se.Error != nil {
			return fmt.Errorf("%s: HTTP %s: %s", path, resp.Status, se.Error.Message)
		}
		return fmt.Errorf("%s: HTTP %s", path, resp.Status)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: invalid JSON: %w", path, err)
	}
	return nil
}
