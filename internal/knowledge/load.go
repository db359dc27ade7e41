package knowledge

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/seanblong/uniqa/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var defaultFS embed.FS

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Loader reads knowledge files from disk.
type Loader struct {
	Walker     FileSystemWalker
	FileReader FileReader
}

// NewLoader returns a Loader backed by the real file system.
func NewLoader() *Loader {
	return &Loader{
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

// document is the mapping form of a knowledge file.
type document struct {
	Chunks []models.KnowledgeChunk `yaml:"chunks" json:"chunks"`
}

// Load reads path as a single file or, if it is a directory, every knowledge
// file below it.
func Load(path string) (*Store, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	l := NewLoader()
	var chunks []models.KnowledgeChunk
	if fi.IsDir() {
		chunks, err = l.LoadDir(path)
	} else {
		chunks, err = l.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return New(chunks)
}

// Default returns the knowledge base compiled into the binary.
func Default() (*Store, error) {
	entries, err := defaultFS.ReadDir("data")
	if err != nil {
		return nil, err
	}
	var chunks []models.KnowledgeChunk
	for _, e := range entries {
		b, err := defaultFS.ReadFile("data/" + e.Name())
		if err != nil {
			return nil, err
		}
		cs, err := Parse(e.Name(), b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		chunks = append(chunks, cs...)
	}
	return New(chunks)
}

// LoadFile parses a single knowledge file.
func (l *Loader) LoadFile(path string) ([]models.KnowledgeChunk, error) {
	b, err := l.FileReader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	chunks, err := Parse(path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return chunks, nil
}

// LoadDir parses every knowledge file under root in lexical path order.
func (l *Loader) LoadDir(root string) ([]models.KnowledgeChunk, error) {
	var chunks []models.KnowledgeChunk
	err := l.Walker.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && de.IsDir() {
				return nil
			}
			if !IsKnowledgeFile(path) {
				return nil
			}
			cs, err := l.LoadFile(path)
			if err != nil {
				return err
			}
			chunks = append(chunks, cs...)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// IsKnowledgeFile reports whether path has a supported extension.
func IsKnowledgeFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Parse decodes a knowledge file. Both a bare list of chunks and a mapping
// with a "chunks" key are accepted, in YAML or JSON.
func Parse(name string, b []byte) ([]models.KnowledgeChunk, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return parseJSON(b)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(b, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	switch n := root.Content[0]; n.Kind {
	case yaml.SequenceNode:
		var chunks []models.KnowledgeChunk
		if err := n.Decode(&chunks); err != nil {
			return nil, err
		}
		return chunks, nil
	case yaml.MappingNode:
		var doc document
		if err := n.Decode(&doc); err != nil {
			return nil, err
		}
		return doc.Chunks, nil
	default:
		return nil, errors.New("knowledge file must contain a list or a mapping with chunks")
	}
}

func parseJSON(b []byte) ([]models.KnowledgeChunk, error) {
	b = bytes.TrimSpace(b)
	if b[0] == '[' {
		var chunks []models.KnowledgeChunk
		if err := json.Unmarshal(b, &chunks); err != nil {
			return nil, err
		}
		return chunks, nil
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc.Chunks, nil
}
