package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github/itish2003/pdfchat/models"
)

// keywordEmbedder embeds a text as the count of each vocabulary word in it.
// The first failures calls to EmbedDocuments fail.
type keywordEmbedder struct {
	vocab    []string
	failures int

	mu         sync.Mutex
	docCalls   int
	queryCalls int
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: vocab}
}

func (e *keywordEmbedder) vector(text string) []float32 {
	text = strings.ToLower(text)
	v := make([]float32, len(e.vocab)+1)
	for i, w := range e.vocab {
		v[i] = float32(strings.Count(text, strings.ToLower(w)))
	}
	// Keeps every vector non-zero.
	v[len(e.vocab)] = 1
	return v
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.docCalls++
	fail := e.docCalls <= e.failures
	e.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queryCalls++
	e.mu.Unlock()
	return e.vector(text), nil
}

func (e *keywordEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docCalls
}

// fakeChat answers "Paris" when the prompt mentions it and the fallback
// sentence otherwise.
type fakeChat struct {
	name string
	err  error

	mu      sync.Mutex
	prompts []string
}

func (c *fakeChat) Name() string { return c.name }

func (c *fakeChat) Generate(_ context.Context, prompt string, _ float64) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if strings.Contains(prompt, "Paris") {
		return "The capital of France is Paris.", nil
	}
	return FallbackAnswer, nil
}

func (c *fakeChat) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

type fakeChatModels struct {
	models map[string]*fakeChat
	order  []string
}

func newFakeChatModels(names ...string) *fakeChatModels {
	m := &fakeChatModels{models: make(map[string]*fakeChat), order: names}
	for _, n := range names {
		m.models[n] = &fakeChat{name: n}
	}
	return m
}

func (m *fakeChatModels) Models() []string { return m.order }

func (m *fakeChatModels) ChatModel(name string) (ChatModel, error) {
	c, ok := m.models[name]
	if !ok {
		return nil, ErrUnknownModel
	}
	return c, nil
}

// textExtractor treats the uploaded bytes as the extracted text. Bytes
// starting with "%BAD" fail extraction.
type textExtractor struct {
	// block, when set, is received from before extracting.
	block chan struct{}
}

func (e *textExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if strings.HasPrefix(string(data), "%BAD") {
		return "", kindError(ErrExtraction, errors.New("invalid header"))
	}
	return string(data), nil
}

type testPipeline struct {
	*Pipeline
	embedder  *keywordEmbedder
	chat      *fakeChatModels
	extractor *textExtractor
}

func newTestPipeline() *testPipeline {
	embedder := newKeywordEmbedder("france", "paris", "capital", "germany", "berlin", "weather", "rain")
	chat := newFakeChatModels("llama3.2", "mistral")
	extractor := &textExtractor{}
	return &testPipeline{
		Pipeline: &Pipeline{
			Extractor: extractor,
			Indexer:   &Indexer{NewIndex: MemoryIndexFactory(embedder, "test-embed"), Attempts: 3},
			Answerer:  NewAnswerer("English"),
			Chat:      chat,
			TopK:      2,
		},
		embedder:  embedder,
		chat:      chat,
		extractor: extractor,
	}
}

func (p *testPipeline) newSession() *Session {
	return NewSession("test", p.Pipeline, "llama3.2", models.ModeBalanced)
}

const franceText = "The capital of France is Paris. Paris lies on the Seine.\n\n" +
	"Germany has Berlin as its capital. Berlin is a large city.\n\n" +
	"The weather in spring brings rain to many places."
