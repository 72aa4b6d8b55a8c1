package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

const (
	recordConfirmation = "confirmation"
	recordTransition   = "transition"
)

// jsonlRecord is one line of the JSONL file.
type jsonlRecord struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// JsonlStorage appends trade records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutConfirmation appends a confirmation line.
func (s *JsonlStorage) PutConfirmation(_ context.Context, confirmation model.TradeConfirmation) error {
	return s.append(jsonlRecord{Type: recordConfirmation, Data: confirmation})
}

// RecordTransition appends a state transition line.
func (s *JsonlStorage) RecordTransition(_ context.Context, transition model.TradeTransition) error {
	return s.append(jsonlRecord{Type: recordTransition, Data: transition})
}

func (s *JsonlStorage) append(records ...jsonlRecord) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal %s record: %w", record.Type, err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write %s record: %w", record.Type, err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
