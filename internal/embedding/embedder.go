// Package embedding provides a batched, cache-backed client for an
// OpenAI-compatible /embeddings endpoint.
package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"docintel/internal/cache"
	"docintel/internal/config"
	"docintel/internal/logging"
)

// Embedder turns text into vectors for the configured model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Client calls a configured OpenAI-compatible embedding endpoint, batching
// requests at cfg.BatchSize and caching results in c for cacheTTL seconds.
type Client struct {
	cfg        config.EmbeddingConfig
	httpClient *http.Client
	c          cache.Cache
	cacheTTL   int
}

// New builds a Client. c may be nil to disable caching.
func New(cfg config.EmbeddingConfig, c cache.Cache, cacheTTLSeconds int) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		c:          c,
		cacheTTL:   cacheTTLSeconds,
	}
}

func (cl *Client) Dimension() int { return cl.cfg.Dimension }

// Embed returns one vector per input text, preserving order. Cached vectors
// are served without a round trip; the remainder is embedded in batches of
// cfg.BatchSize and written back to the cache.
func (cl *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if cl.c == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
			continue
		}
		key := cl.cacheKey(t)
		raw, ok := cl.c.Get(ctx, key)
		if !ok {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
			continue
		}
		v, err := decodeVector(raw)
		if err != nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
			continue
		}
		out[i] = v
	}

	batchSize := cl.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	for start := 0; start < len(missTexts); start += batchSize {
		end := start + batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vectors, err := cl.embedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			idx := missIdx[start+j]
			out[idx] = v
			if cl.c != nil {
				if err := cl.c.Set(ctx, cl.cacheKey(missTexts[start+j]), encodeVector(v), cl.cacheTTL); err != nil {
					logging.FromContext(ctx).Warn().Err(err).Msg("embedding_cache_set_failed")
				}
			}
		}
	}
	return out, nil
}

func (cl *Client) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embedReq{Model: cl.cfg.Model, Input: inputs})
	if err != nil {
		return nil, err
	}
	url := cl.cfg.BaseURL + cl.cfg.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if cl.cfg.APIHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+cl.cfg.APIKey)
	} else if cl.cfg.APIHeader != "" {
		req.Header.Set(cl.cfg.APIHeader, cl.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cl.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("embedding: endpoint returned %s: %s", resp.Status, string(body))
	}

	var er embedResp
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("embedding: parse response: %w", err)
	}
	if len(er.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding: got %d vectors, want %d", len(er.Data), len(inputs))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

func (cl *Client) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(cl.cfg.Model + "\x00" + text))
	return "embed:" + base64.RawURLEncoding.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("embedding: corrupt cached vector of length %d", len(raw))
	}
	v := make([]float32, len(raw)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return v, nil
}

var _ Embedder = (*Client)(nil)
