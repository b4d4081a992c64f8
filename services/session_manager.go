package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github/itish2003/pdfchat/models"

	"github.com/google/uuid"
)

// SessionManager owns every live session. Sessions share the pipeline but
// never an index or a transcript.
type SessionManager struct {
	pipeline     *Pipeline
	defaultModel string
	defaultMode  models.AnalysisMode

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager(pipeline *Pipeline, defaultModel string, defaultMode models.AnalysisMode) *SessionManager {
	return &SessionManager{
		pipeline:     pipeline,
		defaultModel: defaultModel,
		defaultMode:  defaultMode,
		sessions:     make(map[string]*Session),
	}
}

// Create starts a new empty session with a random ID.
func (m *SessionManager) Create() *Session {
	return m.GetOrCreate(uuid.New().String())
}

// GetOrCreate returns the session with id, creating it when missing.
func (m *SessionManager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := NewSession(id, m.pipeline, m.defaultModel, m.defaultMode)
	m.sessions[id] = s
	log.Printf("SESSION: Created session %s", id)
	return s
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete removes the session and releases its index.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close(ctx)
	log.Printf("SESSION: Deleted session %s", id)
	return nil
}

// CloseAll releases every session, used on shutdown.
func (m *SessionManager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close(ctx)
	}
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Options lists the chat models and analysis modes sessions can choose from.
func (m *SessionManager) Options() models.OptionsResponse {
	resp := models.OptionsResponse{Models: m.pipeline.Chat.Models()}
	for _, mode := range models.Modes {
		resp.Modes = append(resp.Modes, models.ModeOption{Name: mode, Label: mode.Label(), Params: mode.Params()})
	}
	return resp
}
