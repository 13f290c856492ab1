package rag

import (
	"context"
	"fmt"
	"sync"

	"file-qa/internal/helper"
	"file-qa/internal/models"
	"file-qa/internal/parser"

	"github.com/rs/zerolog/log"
)

type State int

const (
	StateAwaitingCredential State = iota
	StateAwaitingDocument
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAwaitingCredential:
		return "awaiting_credential"
	case StateAwaitingDocument:
		return "awaiting_document"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ChatClient answers prompts and can check that its credential is accepted
type ChatClient interface {
	Answerer
	ValidateKey(ctx context.Context) error
}

// Connector builds a chat client for an API key
type Connector func(apiKey string) (ChatClient, error)

type UploadResult struct {
	FileName string
	Chunks   int
	// Reused is set when the file was already the live document and nothing was re-ingested
	Reused bool
}

// Session tracks one user's progress from credential to questions.
// Only one document is live at a time.
type Session struct {
	mu       sync.Mutex
	id       string
	state    State
	connect  Connector
	pipeline *RAG
	fileName string
	chunks   int
}

func NewSession(connect Connector, pipeline *RAG) (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &Session{id: id, connect: connect, pipeline: pipeline}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FileName is the name of the live document, empty before the first upload
func (s *Session) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileName
}

// SetCredential validates apiKey against the chat service. On failure the session
// keeps its state and the classified error is returned.
func (s *Session) SetCredential(ctx context.Context, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if apiKey == "" {
		return models.ErrNoCredential
	}
	client, err := s.connect(apiKey)
	if err != nil {
		return err
	}
	if err := client.ValidateKey(ctx); err != nil {
		log.Warn().Str("session", s.id).Err(err).Msg("Credential rejected")
		return err
	}

	s.pipeline.SetAnswerer(client)
	if s.state == StateAwaitingCredential {
		s.state = StateAwaitingDocument
	}
	log.Info().Str("session", s.id).Str("state", s.state.String()).Msg("Credential accepted")
	return nil
}

// Upload makes fileName the live document. Uploading the live file again is a no-op.
func (s *Session) Upload(ctx context.Context, fileName string, data []byte) (*UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaitingCredential {
		return nil, models.ErrNoCredential
	}
	if !parser.IsSupported(fileName) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFileType, fileName)
	}
	if s.state == StateReady && fileName == s.fileName {
		log.Debug().Str("session", s.id).Str("file", fileName).Msg("Document already ingested")
		return &UploadResult{FileName: fileName, Chunks: s.chunks, Reused: true}, nil
	}

	n, err := s.pipeline.Ingest(ctx, fileName, data)
	if err != nil {
		// the previous collection may already be gone
		s.state = StateAwaitingDocument
		s.fileName = ""
		s.chunks = 0
		return nil, err
	}

	s.state = StateReady
	s.fileName = fileName
	s.chunks = n
	return &UploadResult{FileName: fileName, Chunks: n}, nil
}

func (s *Session) Ask(ctx context.Context, question string) (*models.PromptResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAwaitingCredential:
		return nil, models.ErrNoCredential
	case StateAwaitingDocument:
		return nil, models.ErrNoDocument
	}
	return s.pipeline.Query(ctx, question)
}
