package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Entry is one line in the connection audit log.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	InstanceName string    `json:"instance_name,omitempty"`
	Type         string    `json:"type"`
	Status       string    `json:"status,omitempty"`
	Error        string    `json:"error,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// ConnectionLog appends session lifecycle events as JSON lines. A nil
// receiver is valid and discards everything, so callers never guard.
type ConnectionLog struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	dir  string
}

func NewConnectionLog() (*ConnectionLog, error) {
	logDir, err := getLogDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get log directory: %w", err)
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, "connections.log")

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &ConnectionLog{
		file: file,
		enc:  json.NewEncoder(file),
		dir:  logDir,
	}, nil
}

func getLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	var logDir string
	switch runtime.GOOS {
	case "windows":
		logDir = filepath.Join(homeDir, "AppData", "Local", "wapair", "logs")
	case "darwin":
		logDir = filepath.Join(homeDir, "Library", "Logs", "wapair")
	default: // linux and others
		logDir = filepath.Join(homeDir, ".local", "share", "wapair", "logs")
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			logDir = filepath.Join(xdgData, "wapair", "logs")
		}
	}

	return logDir, nil
}

func (l *ConnectionLog) Log(entry Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = time.Now()
	l.enc.Encode(entry)
}

func (l *ConnectionLog) LogStatus(sessionID, instanceName, status string) {
	l.Log(Entry{
		SessionID:    sessionID,
		InstanceName: instanceName,
		Type:         "status",
		Status:       status,
	})
}

func (l *ConnectionLog) LogError(sessionID, instanceName, code, message string) {
	l.Log(Entry{
		SessionID:    sessionID,
		InstanceName: instanceName,
		Type:         "error",
		Error:        code,
		Message:      message,
	})
}

func (l *ConnectionLog) LogEvent(sessionID, instanceName, eventType, message string) {
	l.Log(Entry{
		SessionID:    sessionID,
		InstanceName: instanceName,
		Type:         eventType,
		Message:      message,
	})
}

func (l *ConnectionLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *ConnectionLog) Path() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Name()
}
