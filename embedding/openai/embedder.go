// Package openai embeds query text through an OpenAI-compatible embeddings
// endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/viant/scriptsearch/semantic"
)

const (
	// DefaultEmbeddingModel is used when no model is configured.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultTimeout bounds one embeddings request.
	DefaultTimeout = 10 * time.Second
)

// ErrAPIKeyNotSet is returned by NewEmbedder without an API key.
var ErrAPIKeyNotSet = errors.New("openai: API key not set")

// Embedder turns text into float32 vectors.
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
}

type embedderOptions struct {
	model     string
	dimension int
	baseURL   string
	timeout   time.Duration
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel overrides the model name.
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithEmbeddingDimension requests vectors of the given size; zero keeps the
// model's native size.
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) { o.dimension = dimension }
}

// WithBaseURL points the client at another OpenAI-compatible server.
func WithBaseURL(url string) EmbedderOption {
	return func(o *embedderOptions) { o.baseURL = url }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) EmbedderOption {
	return func(o *embedderOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// NewEmbedder creates an Embedder authenticated with apiKey.
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	options := embedderOptions{
		model:   DefaultEmbeddingModel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(options.timeout),
	}
	if options.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(options.baseURL))
	}
	return &Embedder{
		client:    openai.NewClient(clientOpts...),
		model:     options.model,
		dimension: options.dimension,
	}, nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}

	data := resp.Data[0].Embedding
	vector := make([]float32, len(data))
	for i, v := range data {
		vector[i] = float32(v)
	}
	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, fmt.Errorf("embedding has %d values, want %d", len(vector), e.dimension)
	}
	return vector, nil
}

// ModelName returns the model used for embeddings.
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension returns the requested vector size, or zero for the model default.
func (e *Embedder) Dimension() int {
	return e.dimension
}

var _ semantic.Embedder = (*Embedder)(nil)
