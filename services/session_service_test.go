package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github/itish2003/pdfchat/models"
)

func TestSession_AskWithoutDocument(t *testing.T) {
	s := newTestPipeline().newSession()

	_, err := s.Ask(context.Background(), "What is the capital of France?")
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if got := len(s.Snapshot().Messages); got != 0 {
		t.Errorf("transcript should stay empty, got %d messages", got)
	}
}

func TestSession_AskEmptyQuestion(t *testing.T) {
	s := newTestPipeline().newSession()
	if _, err := s.Ask(context.Background(), "   "); err == nil {
		t.Error("expected an error for an empty question")
	}
}

func TestSession_UploadAndAsk(t *testing.T) {
	p := newTestPipeline()
	s := p.newSession()
	ctx := context.Background()

	resp, err := s.Upload(ctx, "france.pdf", []byte(franceText))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.State != models.StateReady || resp.AlreadyProcessed {
		t.Errorf("unexpected upload response %+v", resp)
	}
	if resp.Document.ChunkCount != 1 || resp.Document.EmbeddingModel != "test-embed" {
		t.Errorf("unexpected document info %+v", resp.Document)
	}

	reply, err := s.Ask(ctx, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(reply.Content, "Paris") {
		t.Errorf("expected an answer mentioning Paris, got %q", reply.Content)
	}

	msgs := s.Snapshot().Messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "What is the capital of France?" {
		t.Errorf("unexpected question entry %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != reply.Content {
		t.Errorf("unexpected answer entry %+v", msgs[1])
	}
}

func TestSession_UploadTwoPagePDF(t *testing.T) {
	p := newTestPipeline()
	p.Extractor = &PlainPDFExtractor{}
	s := p.newSession()
	ctx := context.Background()

	resp, err := s.Upload(ctx, "france.pdf", twoPagePDF("The capital of France ", "is Paris."))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.Document.ChunkCount != 1 || resp.Document.TextLength != len("The capital of France is Paris.") {
		t.Errorf("unexpected document info %+v", resp.Document)
	}
	s.mu.RLock()
	indexed := s.index.Len()
	s.mu.RUnlock()
	if indexed != 1 {
		t.Errorf("expected 1 indexed chunk, got %d", indexed)
	}

	reply, err := s.Ask(ctx, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(reply.Content, "Paris") {
		t.Errorf("expected an answer mentioning Paris, got %q", reply.Content)
	}
}

func TestSession_RetrievesRelevantChunk(t *testing.T) {
	p := newTestPipeline()
	s := p.newSession()
	ctx := context.Background()
	s.SetMode(string(models.ModePrecise))

	// Each paragraph fits a precise chunk but no two fit together.
	text := strings.Repeat("The capital of France is Paris. ", 20) + "\n\n" +
		strings.Repeat("Berlin is the capital of Germany. ", 20) + "\n\n" +
		strings.Repeat("The weather brings rain. ", 25)
	resp, err := s.Upload(ctx, "long.pdf", []byte(text))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.Document.ChunkCount != 3 {
		t.Fatalf("expected 3 chunks, got %d", resp.Document.ChunkCount)
	}
	if _, err := s.Ask(ctx, "Tell me about Berlin in Germany"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	prompt := p.chat.models["llama3.2"].lastPrompt()
	if !strings.Contains(prompt, "Berlin is the capital of Germany.") {
		t.Errorf("prompt should contain the Berlin chunk:\n%s", prompt)
	}
	if strings.Contains(prompt, "The weather brings rain.") {
		t.Errorf("prompt should only hold the two nearest chunks:\n%s", prompt)
	}
	if strings.Index(prompt, "Berlin") > strings.Index(prompt, "Paris") {
		t.Error("the nearest chunk should come first")
	}
}

func TestSession_FallbackAnswer(t *testing.T) {
	p := newTestPipeline()
	s := p.newSession()
	ctx := context.Background()

	s.Upload(ctx, "weather.pdf", []byte("The weather in spring brings rain to many places."))
	reply, err := s.Ask(ctx, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if reply.Content != FallbackAnswer {
		t.Errorf("expected the fallback answer, got %q", reply.Content)
	}
}

func TestSession_SameFileIsNotReprocessed(t *testing.T) {
	p := newTestPipeline()
	s := p.newSession()
	ctx := context.Background()

	s.Upload(ctx, "france.pdf", []byte(franceText))
	s.Ask(ctx, "What is the capital of France?")
	calls := p.embedder.calls()

	resp, err := s.Upload(ctx, "france.pdf", []byte(franceText))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !resp.AlreadyProcessed {
		t.Error("expected the upload to be recognised")
	}
	if p.embedder.calls() != calls {
		t.Error("the document should not be embedded again")
	}
	if len(s.Snapshot().Messages) != 2 {
		t.Error("the transcript should be kept")
	}
}

func TestSession_NewDocumentReplacesIndex(t *testing.T) {
	p := newTestPipeline()
	s := p.newSession()
	ctx := context.Background()

	s.Upload(ctx, "france.pdf", []byte(franceText))
	s.Ask(ctx, "What is the capital of France?")

	resp, err := s.Upload(ctx, "weather.pdf", []byte("The weather in spring brings rain to many places."))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.Document.FileName != "weather.pdf" {
		t.Errorf("unexpected document %+v", resp.Document)
	}
	snap := s.Snapshot()
	if len(snap.Messages) != 0 {
		t.Errorf("the transcript should be cleared, got %d messages", len(snap.Messages))
	}

	reply, _ := s.Ask(ctx, "What is the capital of France?")
	if reply.Content != FallbackAnswer {
		t.Errorf("answers should only come from the new document, got %q", reply.Content)
	}
}

func TestSession_SameContentDifferentName(t *testing.T) {
	p := newTestPipeline()
	s := p.newSession()
	ctx := context.Background()

	s.Upload(ctx, "a.pdf", []byte(franceText))
	resp, _ := s.Upload(ctx, "b.pdf", []byte(franceText))
	if resp.AlreadyProcessed {
		t.Error("a renamed file should be processed again")
	}
}

func TestSession_ExtractionFailure(t *testing.T) {
	p := newTestPipeline()
	s := p.newSession()
	ctx := context.Background()

	resp, err := s.Upload(ctx, "broken.pdf", []byte("%BAD"))
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if resp == nil || resp.State != models.StateError || resp.Error == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if _, err := s.Ask(ctx, "anything"); !errors.Is(err, ErrNoDocument) {
		t.Errorf("a failed upload should leave no index, got %v", err)
	}
	if p.embedder.calls() != 0 {
		t.Error("nothing should be embedded when extraction fails")
	}
}

func TestSession_EmptyDocument(t *testing.T) {
	s := newTestPipeline().newSession()
	_, err := s.Upload(context.Background(), "blank.pdf", []byte("  \n\n  "))
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if s.Snapshot().State != models.StateError {
		t.Error("expected the error state")
	}
}

func TestSession_EmbeddingFailureThenRetry(t *testing.T) {
	p := newTestPipeline()
	p.embedder.failures = 3
	s := p.newSession()
	ctx := context.Background()

	_, err := s.Upload(ctx, "france.pdf", []byte(franceText))
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	snap := s.Snapshot()
	if snap.State != models.StateError || !strings.Contains(snap.LastError, "Ollama") {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	// The same file is processed again once the service is back.
	resp, err := s.Upload(ctx, "france.pdf", []byte(franceText))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.AlreadyProcessed {
		t.Error("a failed file should not count as processed")
	}
}

func TestSession_GenerationFailureIsRecorded(t *testing.T) {
	p := newTestPipeline()
	p.chat.models["llama3.2"].err = errors.New("model not found")
	s := p.newSession()
	ctx := context.Background()

	s.Upload(ctx, "france.pdf", []byte(franceText))
	reply, err := s.Ask(ctx, "What is the capital of France?")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if !strings.HasPrefix(reply.Content, "An error occurred while generating the answer") {
		t.Errorf("unexpected reply %q", reply.Content)
	}
	if got := len(s.Snapshot().Messages); got != 2 {
		t.Errorf("expected the failed exchange in the transcript, got %d messages", got)
	}
}

func TestSession_Reset(t *testing.T) {
	p := newTestPipeline()
	s := p.newSession()
	ctx := context.Background()

	s.Upload(ctx, "france.pdf", []byte(franceText))
	s.Ask(ctx, "What is the capital of France?")
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	snap := s.Snapshot()
	if snap.State != models.StateEmpty || snap.Document != nil || len(snap.Messages) != 0 {
		t.Errorf("unexpected snapshot after reset %+v", snap)
	}
	if _, err := s.Ask(ctx, "What is the capital of France?"); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument after reset, got %v", err)
	}
}

func TestSession_BusyWhileProcessing(t *testing.T) {
	p := newTestPipeline()
	p.extractor.block = make(chan struct{})
	s := p.newSession()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Upload(ctx, "france.pdf", []byte(franceText))
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().State != models.StateProcessing {
		if time.Now().After(deadline) {
			t.Fatal("upload never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.Ask(ctx, "What is the capital of France?"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}
	if _, err := s.Upload(ctx, "other.pdf", []byte("other")); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}

	close(p.extractor.block)
	if err := <-done; err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if s.Snapshot().State != models.StateReady {
		t.Error("expected the ready state")
	}
}

func TestSession_Settings(t *testing.T) {
	s := newTestPipeline().newSession()

	if err := s.SetChatModel("mistral"); err != nil {
		t.Fatalf("SetChatModel: %v", err)
	}
	if err := s.SetChatModel("gpt-4"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	if err := s.SetMode("FAST"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := s.SetMode("turbo"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Model != "mistral" || snap.Mode != models.ModeFast {
		t.Errorf("unexpected settings %+v", snap)
	}
}

func TestSession_PreviewIsTruncated(t *testing.T) {
	s := newTestPipeline().newSession()
	text := strings.Repeat("é", 600)
	resp, err := s.Upload(context.Background(), "long.pdf", []byte(text))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.Document.TextLength != 600 {
		t.Errorf("expected 600 characters, got %d", resp.Document.TextLength)
	}
	if resp.Document.Preview != strings.Repeat("é", 500)+"..." {
		t.Error("expected a 500 character preview")
	}
}

func TestFileIdentity(t *testing.T) {
	a := FileIdentity("a.pdf", []byte("x"))
	if a != FileIdentity("a.pdf", []byte("x")) {
		t.Error("identity should be stable")
	}
	if a == FileIdentity("a.pdf", []byte("y")) || a == FileIdentity("b.pdf", []byte("x")) {
		t.Error("identity should depend on name and content")
	}
}
