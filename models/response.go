package models

// SessionResponse is the externally visible state of a session.
type SessionResponse struct {
	ID        string        `json:"id"`
	State     DocumentState `json:"state"`
	Model     string        `json:"model"`
	Mode      AnalysisMode  `json:"mode"`
	Document  *DocumentInfo `json:"document,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

type UploadResponse struct {
	Message          string        `json:"message"`
	State            DocumentState `json:"state"`
	AlreadyProcessed bool          `json:"already_processed,omitempty"`
	Document         *DocumentInfo `json:"document,omitempty"`
	Error            string        `json:"error,omitempty"`
}

type AskResponse struct {
	Answer ChatMessage `json:"answer"`
	Error  string      `json:"error,omitempty"`
}

type ModeOption struct {
	Name   AnalysisMode `json:"name"`
	Label  string       `json:"label"`
	Params ChunkParams  `json:"params"`
}

type OptionsResponse struct {
	Models []string     `json:"models"`
	Modes  []ModeOption `json:"modes"`
}
