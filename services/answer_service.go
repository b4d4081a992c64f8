package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
	"google.golang.org/genai"
)

// FallbackAnswer is what the model is told to reply when the document has
// nothing relevant.
const FallbackAnswer = "The requested information could not be found in the provided document."

// Temperature is the sampling temperature of every answer.
const Temperature = 0.7

const answerTemplate = `Answer the question based on the following document:

Document:
{{.context}}

Question: {{.question}}

The answer must be in {{.language}}, using only information present in the document.
If the document contains no relevant information, respond exactly with the fixed fallback sentence:
"{{.fallback}}"

Answer:`

// ChatModel generates a completion for a fully rendered prompt.
type ChatModel interface {
	Name() string
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Answerer fills the answer template with retrieved context and asks a chat
// model to complete it.
type Answerer struct {
	prompt   prompts.PromptTemplate
	language string
}

func NewAnswerer(language string) *Answerer {
	if language == "" {
		language = "English"
	}
	return &Answerer{
		prompt:   prompts.NewPromptTemplate(answerTemplate, []string{"context", "question", "language", "fallback"}),
		language: language,
	}
}

// BuildPrompt joins docs in retrieved order, separated by a blank line, and
// renders them with question into the template.
func (a *Answerer) BuildPrompt(docs []schema.Document, question string) (string, error) {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.PageContent
	}
	return a.prompt.Format(map[string]any{
		"context":  strings.Join(parts, "\n\n"),
		"question": question,
		"language": a.language,
		"fallback": FallbackAnswer,
	})
}

// Answer returns the model's text unmodified, or an error wrapping ErrGeneration.
func (a *Answerer) Answer(ctx context.Context, model ChatModel, docs []schema.Document, question string) (string, error) {
	prompt, err := a.BuildPrompt(docs, question)
	if err != nil {
		return "", kindError(ErrGeneration, fmt.Errorf("rendering prompt: %w", err))
	}
	log.Printf("ANSWERER: Sending prompt with %d chunks to %s...", len(docs), model.Name())
	answer, err := model.Generate(ctx, prompt, Temperature)
	if err != nil {
		return "", kindError(ErrGeneration, err)
	}
	return answer, nil
}

// OllamaChat is a chat model served by Ollama.
type OllamaChat struct {
	name string
	llm  *ollama.LLM
}

func NewOllamaChat(httpClient *http.Client, serverURL, model string) (*OllamaChat, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama chat client for %s: %w", model, err)
	}
	return &OllamaChat{name: model, llm: llm}, nil
}

func (c *OllamaChat) Name() string { return c.name }

func (c *OllamaChat) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	answer, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("ollama %s: %w", c.name, err)
	}
	return answer, nil
}

// GeminiChat is a chat model served by the Gemini API.
type GeminiChat struct {
	client *genai.Client
	model  string
}

func NewGeminiChat(client *genai.Client, model string) *GeminiChat {
	return &GeminiChat{client: client, model: model}
}

func (g *GeminiChat) Name() string { return g.model }

func (g *GeminiChat) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	temp := float32(temperature)
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	return responseText.String(), nil
}

// ChatModels resolves the chat model a session selected by name.
type ChatModels interface {
	Models() []string
	ChatModel(name string) (ChatModel, error)
}

// ChatRegistry serves the configured Ollama models and, when a Gemini client
// is set, the Gemini model. Clients are created on first use.
type ChatRegistry struct {
	httpClient   *http.Client
	ollamaURL    string
	ollamaModels []string
	gemini       *genai.Client
	geminiModel  string

	mu     sync.Mutex
	models map[string]ChatModel
}

func NewChatRegistry(httpClient *http.Client, ollamaURL string, ollamaModels []string, gemini *genai.Client, geminiModel string) *ChatRegistry {
	return &ChatRegistry{
		httpClient:   httpClient,
		ollamaURL:    ollamaURL,
		ollamaModels: ollamaModels,
		gemini:       gemini,
		geminiModel:  geminiModel,
		models:       make(map[string]ChatModel),
	}
}

func (r *ChatRegistry) Models() []string {
	models := append([]string(nil), r.ollamaModels...)
	if r.gemini != nil && r.geminiModel != "" {
		models = append(models, r.geminiModel)
	}
	return models
}

func (r *ChatRegistry) ChatModel(name string) (ChatModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.models[name]; ok {
		return m, nil
	}
	var (
		m   ChatModel
		err error
	)
	switch {
	case r.gemini != nil && name == r.geminiModel:
		m = NewGeminiChat(r.gemini, name)
	case slices.Contains(r.ollamaModels, name):
		m, err = NewOllamaChat(r.httpClient, r.ollamaURL, name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	if err != nil {
		return nil, err
	}
	r.models[name] = m
	return m, nil
}
