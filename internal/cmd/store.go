package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dotcommander/cosmos-agent/internal/agent"
	"github.com/dotcommander/cosmos-agent/internal/agents"
	"github.com/dotcommander/cosmos-agent/internal/storage"
	"github.com/dotcommander/cosmos-agent/internal/storage/cache"
)

const ledgerDir = "agents"

// localStore bundles the agent ledger and the transcript cache.
type localStore struct {
	DB          *storage.DB
	Transcripts *cache.Transcripts
}

func openLocalStore(cachePath string) (*localStore, error) {
	transcripts, err := cache.NewTranscripts(cachePath)
	if err != nil {
		return nil, fmt.Errorf("open transcript cache: %w", err)
	}
	db, err := storage.Open(filepath.Join(cachePath, ledgerDir))
	if err != nil {
		return nil, fmt.Errorf("open agent ledger: %w", err)
	}
	return &localStore{DB: db, Transcripts: transcripts}, nil
}

func (s *localStore) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("close agent ledger: %w", err)
	}
	return nil
}

// recordAgent upserts the ledger entry of a conversation. Fields of conv
// that are still empty are left out.
func (s *localStore) recordAgent(endpoint string, conv agent.Conversation, question string) error {
	rec := storage.Record{
		AgentID:  conv.Agent.ID,
		Name:     conv.Agent.Name,
		Model:    conv.Agent.Model,
		Endpoint: endpoint,
		ThreadID: conv.Thread.ID,
		RunID:    conv.Run.ID,
		Question: question,
		Status:   string(conv.Run.Status),
	}
	for _, tool := range conv.Agent.Tools {
		if tool.Type == agents.ToolTypeMCP {
			rec.MCPLabel = tool.ServerLabel
			break
		}
	}
	if conv.Agent.CreatedAt != 0 {
		rec.CreatedAt = conv.Agent.CreatedAt.Time()
	}
	return s.DB.Save(rec) //nolint:wrapcheck
}

// saveReport stores the report and updates the ledger status. Both writes
// are attempted.
func (s *localStore) saveReport(report agent.Report) error {
	var errs []error
	if err := s.Transcripts.Write(report); err != nil {
		errs = append(errs, err)
	}
	if rec, err := s.DB.Find(report.AgentID); err == nil {
		rec.RunID = report.Run.ID
		rec.Status = string(report.Run.Status)
		if err := s.DB.Save(*rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
