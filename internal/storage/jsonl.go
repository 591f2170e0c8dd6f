package storage

import (
	"sync"

	"dexlens/internal/model"
)

// JsonlStorage appends log records to a JSONL file. The mutex serializes
// concurrent batch writers on the same path.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writer, err := NewJSONLWriter(s.path, true)
	if err != nil {
		return err
	}

	for _, record := range logs {
		if err := writer.Write(record); err != nil {
			writer.Close()
			return err
		}
	}

	return writer.Close()
}
