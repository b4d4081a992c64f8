package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a session transcript.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentState is the lifecycle state of the document held by a session.
type DocumentState string

const (
	StateEmpty      DocumentState = "empty"
	StateProcessing DocumentState = "processing"
	StateReady      DocumentState = "ready"
	StateError      DocumentState = "error"
)

// DocumentInfo describes the document currently indexed by a session.
type DocumentInfo struct {
	FileName       string       `json:"file_name"`
	FileID         string       `json:"file_id"`
	TextLength     int          `json:"text_length"`
	Preview        string       `json:"preview"`
	ChunkCount     int          `json:"chunk_count"`
	Mode           AnalysisMode `json:"mode"`
	EmbeddingModel string       `json:"embedding_model"`
}
