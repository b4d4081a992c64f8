package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github/itish2003/pdfchat/models"
)

const previewRunes = 500

// Pipeline holds the components a session sequences. It is shared by all
// sessions and holds no per-session state.
type Pipeline struct {
	Extractor Extractor
	Indexer   *Indexer
	Answerer  *Answerer
	Chat      ChatModels
	TopK      int
}

// Session is one user's document, transcript and settings. Only one action
// (upload, question, reset) runs at a time; a second one fails with
// ErrSessionBusy until the first returns.
type Session struct {
	ID string

	pipeline *Pipeline
	busy     sync.Mutex

	mu              sync.RWMutex
	state           models.DocumentState
	index           SimilarityIndex
	messages        []models.ChatMessage
	processedFileID string
	document        *models.DocumentInfo
	lastError       string
	model           string
	mode            models.AnalysisMode
}

func NewSession(id string, pipeline *Pipeline, model string, mode models.AnalysisMode) *Session {
	return &Session{
		ID:       id,
		pipeline: pipeline,
		state:    models.StateEmpty,
		model:    model,
		mode:     mode,
	}
}

// FileIdentity identifies an upload by name and content.
func FileIdentity(name string, data []byte) string {
	sum := sha256.Sum256(data)
	return name + ":" + hex.EncodeToString(sum[:])
}

// Upload processes a PDF unless it is the document the session already holds.
// Starting to process clears the transcript and the previous index. On failure
// the session is left in the error state without an index.
func (s *Session) Upload(ctx context.Context, name string, data []byte) (*models.UploadResponse, error) {
	if !s.busy.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.busy.Unlock()

	fileID := FileIdentity(name, data)

	s.mu.Lock()
	if s.state == models.StateReady && s.processedFileID == fileID {
		doc := *s.document
		s.mu.Unlock()
		return &models.UploadResponse{
			Message:          fmt.Sprintf("%s is ready.", name),
			State:            models.StateReady,
			AlreadyProcessed: true,
			Document:         &doc,
		}, nil
	}
	old := s.index
	s.index = nil
	s.processedFileID = ""
	s.messages = nil
	s.document = nil
	s.lastError = ""
	s.state = models.StateProcessing
	mode := s.mode
	s.mu.Unlock()

	if old != nil {
		if err := old.Drop(ctx); err != nil {
			log.Printf("SESSION WARN: %s: could not drop previous index: %v", s.ID, err)
		}
	}

	log.Printf("SESSION: %s: processing %s (%d bytes, %s mode)", s.ID, name, len(data), mode)
	info, idx, err := s.process(ctx, name, fileID, data, mode)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = models.StateError
		s.lastError = UserMessage(err)
		log.Printf("SESSION ERROR: %s: failed to process %s: %v", s.ID, name, err)
		return &models.UploadResponse{
			Message: fmt.Sprintf("Failed to process %s.", name),
			State:   models.StateError,
			Error:   s.lastError,
		}, err
	}
	s.index = idx
	s.processedFileID = fileID
	s.document = info
	s.state = models.StateReady

	doc := *info
	return &models.UploadResponse{
		Message:  "Vector store created. You can now ask questions about the document.",
		State:    models.StateReady,
		Document: &doc,
	}, nil
}

func (s *Session) process(ctx context.Context, name, fileID string, data []byte, mode models.AnalysisMode) (*models.DocumentInfo, SimilarityIndex, error) {
	text, err := s.pipeline.Extractor.Extract(ctx, data)
	if err != nil {
		return nil, nil, err
	}

	splitter, err := NewRecursiveSplitter(mode.Params())
	if err != nil {
		return nil, nil, err
	}
	chunks, err := splitter.SplitChunks(text, SourceLabel)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("SESSION: %s: split %s into %d chunks.", s.ID, name, len(chunks))

	idx, err := s.pipeline.Indexer.Build(ctx, ChunkDocuments(chunks))
	if err != nil {
		return nil, nil, err
	}

	return &models.DocumentInfo{
		FileName:       name,
		FileID:         fileID,
		TextLength:     utf8.RuneCountInString(text),
		Preview:        preview(text, previewRunes),
		ChunkCount:     len(chunks),
		Mode:           mode,
		EmbeddingModel: idx.EmbeddingModel(),
	}, idx, nil
}

// Ask answers question from the indexed document and appends the question and
// the reply to the transcript as one pair. Without a document it returns
// ErrNoDocument and leaves the transcript alone. When retrieval or generation
// fails the reply holds the error text and the error is returned as well.
func (s *Session) Ask(ctx context.Context, question string) (models.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.ChatMessage{}, errors.New("question must not be empty")
	}
	if !s.busy.TryLock() {
		return models.ChatMessage{}, ErrSessionBusy
	}
	defer s.busy.Unlock()

	s.mu.RLock()
	idx := s.index
	modelName := s.model
	s.mu.RUnlock()
	if idx == nil {
		return models.ChatMessage{}, ErrNoDocument
	}

	asked := time.Now()
	answer, err := s.answer(ctx, idx, modelName, question)
	reply := models.ChatMessage{Role: models.RoleAssistant, Content: answer, CreatedAt: time.Now()}
	if err != nil {
		log.Printf("SESSION ERROR: %s: %v", s.ID, err)
		reply.Content = fmt.Sprintf("An error occurred while generating the answer: %v", err)
	}

	s.mu.Lock()
	s.messages = append(s.messages,
		models.ChatMessage{Role: models.RoleUser, Content: question, CreatedAt: asked},
		reply,
	)
	s.mu.Unlock()
	return reply, err
}

func (s *Session) answer(ctx context.Context, idx SimilarityIndex, modelName, question string) (string, error) {
	chat, err := s.pipeline.Chat.ChatModel(modelName)
	if err != nil {
		return "", kindError(ErrGeneration, err)
	}
	docs, err := Retrieve(ctx, idx, question, s.pipeline.TopK)
	if err != nil {
		return "", err
	}
	return s.pipeline.Answerer.Answer(ctx, chat, docs, question)
}

// Reset forgets the document and the transcript.
func (s *Session) Reset(ctx context.Context) error {
	if !s.busy.TryLock() {
		return ErrSessionBusy
	}
	defer s.busy.Unlock()
	s.clear(ctx)
	return nil
}

// Close waits for the running action, if any, and releases the index.
func (s *Session) Close(ctx context.Context) {
	s.busy.Lock()
	defer s.busy.Unlock()
	s.clear(ctx)
}

func (s *Session) clear(ctx context.Context) {
	s.mu.Lock()
	old := s.index
	s.index = nil
	s.processedFileID = ""
	s.messages = nil
	s.document = nil
	s.lastError = ""
	s.state = models.StateEmpty
	s.mu.Unlock()

	if old != nil {
		if err := old.Drop(ctx); err != nil {
			log.Printf("SESSION WARN: %s: could not drop index: %v", s.ID, err)
		}
	}
}

// SetChatModel selects the model used for the next answers.
func (s *Session) SetChatModel(name string) error {
	if !slices.Contains(s.pipeline.Chat.Models(), name) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	s.mu.Lock()
	s.model = name
	s.mu.Unlock()
	return nil
}

// SetMode selects the chunking mode used for the next upload.
func (s *Session) SetMode(name string) error {
	mode, err := models.ParseMode(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownMode, name)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

// Snapshot copies the session state for rendering.
func (s *Session) Snapshot() models.SessionResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := models.SessionResponse{
		ID:        s.ID,
		State:     s.state,
		Model:     s.model,
		Mode:      s.mode,
		LastError: s.lastError,
		Messages:  append([]models.ChatMessage{}, s.messages...),
	}
	if s.document != nil {
		doc := *s.document
		resp.Document = &doc
	}
	return resp
}

func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}
