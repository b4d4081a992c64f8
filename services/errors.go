package services

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction means the uploaded bytes are not a readable PDF.
	ErrExtraction = errors.New("could not extract text from the PDF")
	// ErrEmptyInput means the document produced no text or no chunks.
	ErrEmptyInput = errors.New("no text could be extracted from the document")
	// ErrEmbeddingService means the embedding backend failed, after retries when indexing.
	ErrEmbeddingService = errors.New("embedding service unavailable")
	// ErrGeneration means the chat backend failed to produce an answer.
	ErrGeneration = errors.New("answer generation failed")

	ErrNoDocument      = errors.New("upload a PDF file first")
	ErrSessionBusy     = errors.New("session is busy with another request")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownModel    = errors.New("unknown chat model")
	ErrUnknownMode     = errors.New("unknown analysis mode")
)

// kindError tags cause with one of the sentinel kinds above so that errors.Is
// matches both.
func kindError(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// UserMessage renders err as the notice shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmbeddingService):
		return fmt.Sprintf("Error while building the vector store: %v. Make sure the Ollama server is running.", err)
	case errors.Is(err, ErrGeneration):
		return fmt.Sprintf("An error occurred while generating the answer: %v", err)
	case errors.Is(err, ErrExtraction):
		return fmt.Sprintf("An error occurred while processing the PDF: %v", err)
	case errors.Is(err, ErrEmptyInput):
		return "No text could be extracted from the PDF."
	case errors.Is(err, ErrNoDocument):
		return "Please upload a PDF file first."
	}
	return err.Error()
}
