package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultDirName is the default name for the scriptex home directory.
	DefaultDirName = ".scriptex"

	// DocumentsDirName is the subdirectory for locally kept LaTeX documents.
	DocumentsDirName = "documents"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the scriptex home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.scriptex).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// DocumentsDir returns the directory holding kept documents of one script.
func (d *Dir) DocumentsDir(scriptID string) string {
	return filepath.Join(d.path, DocumentsDirName, safeName(scriptID))
}

// DocumentPath returns the path for a document generated at t.
func (d *Dir) DocumentPath(scriptID string, t time.Time) string {
	return filepath.Join(d.DocumentsDir(scriptID), t.UTC().Format("20060102T150405Z")+".tex")
}

// EnsureExists creates the home directory if it doesn't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// SaveDocument writes doc under DocumentsDir and returns its path.
func (d *Dir) SaveDocument(scriptID, doc string, t time.Time) (string, error) {
	if err := os.MkdirAll(d.DocumentsDir(scriptID), 0o755); err != nil {
		return "", fmt.Errorf("failed to create documents directory: %w", err)
	}
	path := d.DocumentPath(scriptID, t)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return path, nil
}

// safeName keeps script ids from escaping the documents directory.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.ReplaceAll(id, "..", "_"))
}
