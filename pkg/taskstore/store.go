// Package taskstore persists per-task pipeline artifacts as JSON files so a
// drafting run can be resumed, audited, or re-generated stage by stage.
package taskstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/policyops/regamend/pkg/docparser"
	apperrors "github.com/policyops/regamend/pkg/errors"
	"github.com/policyops/regamend/pkg/llm"
	"github.com/policyops/regamend/pkg/rag"
)

// RegulationRecord is the parsed amendment document for one task.
type RegulationRecord struct {
	TaskID     string                       `json:"task_id"`
	CreatedAt  time.Time                    `json:"created_at"`
	Regulation *docparser.RegulationDiffDoc `json:"regulation"`
}

// MatchEntry pairs one amendment item with the policy contexts retrieved for
// it. An entry with no contexts records an item that retrieval could not
// serve.
type MatchEntry struct {
	Item           docparser.RegulationDiffItem `json:"diffItem"`
	PolicyContexts []rag.DocumentContext        `json:"policyContexts"`
	RetrievalError string                       `json:"retrievalError,omitempty"`
}

// MatchRecord is the retrieval result for one task.
type MatchRecord struct {
	TaskID    string       `json:"task_id"`
	CreatedAt time.Time    `json:"created_at"`
	Entries   []MatchEntry `json:"entries"`
}

// DocumentSuggestions groups a task's suggestions by target document.
type DocumentSuggestions struct {
	DocName     string               `json:"doc_name"`
	ChangeCount int                  `json:"change_count"`
	Items       []llm.SuggestionItem `json:"items"`
}

// SuggestionRecord is the generation result for one task. Suggestions keeps
// pipeline order; ByDocument is the same set grouped per target document,
// most-changed document first.
type SuggestionRecord struct {
	TaskID      string                `json:"task_id"`
	CreatedAt   time.Time             `json:"created_at"`
	Suggestions []llm.SuggestionItem  `json:"suggestions"`
	ByDocument  []DocumentSuggestions `json:"suggestions_by_document"`
}

// TaskSummary describes one task for history listings.
type TaskSummary struct {
	TaskID         string    `json:"task_id"`
	Filename       string    `json:"filename"`
	CreatedAt      time.Time `json:"created_at"`
	ItemCount      int       `json:"item_count"`
	HasMatch       bool      `json:"has_match"`
	HasSuggestions bool      `json:"has_suggestions"`
}

// Store persists task artifacts under a single directory, one JSON file per
// stage per task. Writes go through a temp file and rename so readers never
// observe a partial artifact.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates the store, making the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create task directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "taskstore"),
	}, nil
}

// NewTaskID mints a fresh task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// SaveRegulation persists the parsed regulation for a task.
func (s *Store) SaveRegulation(record *RegulationRecord) error {
	return s.write(s.path("regulation", record.TaskID), record)
}

// LoadRegulation loads the parsed regulation for a task.
func (s *Store) LoadRegulation(taskID string) (*RegulationRecord, error) {
	var record RegulationRecord
	if err := s.read(s.path("regulation", taskID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveMatch persists the retrieval result for a task.
func (s *Store) SaveMatch(record *MatchRecord) error {
	return s.write(s.path("match", record.TaskID), record)
}

// LoadMatch loads the retrieval result for a task.
func (s *Store) LoadMatch(taskID string) (*MatchRecord, error) {
	var record MatchRecord
	if err := s.read(s.path("match", taskID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveSuggestions persists the generation result for a task.
func (s *Store) SaveSuggestions(record *SuggestionRecord) error {
	return s.write(s.path("suggestions", record.TaskID), record)
}

// LoadSuggestions loads the generation result for a task.
func (s *Store) LoadSuggestions(taskID string) (*SuggestionRecord, error) {
	var record SuggestionRecord
	if err := s.read(s.path("suggestions", taskID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListTasks returns summaries of all stored tasks, newest first.
func (s *Store) ListTasks() ([]TaskSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read task directory: %w", err)
	}

	var summaries []TaskSummary
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "regulation_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		taskID := strings.TrimSuffix(strings.TrimPrefix(name, "regulation_"), ".json")

		record, err := s.LoadRegulation(taskID)
		if err != nil {
			s.logger.Warn("skipping unreadable task artifact", "file", name, "error", err)
			continue
		}

		summary := TaskSummary{
			TaskID:    taskID,
			CreatedAt: record.CreatedAt,
		}
		if record.Regulation != nil {
			summary.Filename = record.Regulation.Filename
			summary.ItemCount = len(record.Regulation.Items)
		}
		summary.HasMatch = s.exists("match", taskID)
		summary.HasSuggestions = s.exists("suggestions", taskID)
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *Store) path(stage, taskID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", stage, taskID))
}

func (s *Store) exists(stage, taskID string) bool {
	_, err := os.Stat(s.path(stage, taskID))
	return err == nil
}

func (s *Store) write(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task artifact: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write task artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit task artifact: %w", err)
	}
	return nil
}

func (s *Store) read(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFound("task artifact %s not found", filepath.Base(path))
		}
		return fmt.Errorf("failed to read task artifact: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("task artifact %s is corrupt: %w", filepath.Base(path), err)
	}
	return nil
}
