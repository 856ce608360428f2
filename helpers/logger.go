package helpers

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrorFile appends failed items to a plain text file, one line per failure
type ErrorFile struct {
	mu   sync.Mutex
	path string
}

// NewErrorFile creates a new error file writer
func NewErrorFile(path string) *ErrorFile {
	return &ErrorFile{
		path: path,
	}
}

// Path returns the file the errors are written to
func (l *ErrorFile) Path() string {
	return l.path
}

// LogError logs an error to the file with the item key and timestamp
func (l *ErrorFile) LogError(key string, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, fileErr := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if fileErr != nil {
		return fmt.Errorf("open error file: %w", fileErr)
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	if _, writeErr := fmt.Fprintf(f, "[%s] [%s] %s\n", timestamp, key, err.Error()); writeErr != nil {
		return fmt.Errorf("write error file: %w", writeErr)
	}
	return nil
}
