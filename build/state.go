package build

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"
)

// cborEncMode encodes canonically so that equal states are equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("build: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// State is what a build remembers about the classes it wrote. It is keyed
// by the slash-separated path of the class below the classes directory.
type State struct {
	RunID   string                `cbor:"1,keyasint"`
	Time    int64                 `cbor:"2,keyasint"` // unix seconds
	Classes map[string]ClassState `cbor:"3,keyasint"`
}

// ClassState records one written class.
type ClassState struct {
	Fingerprint uint64 `cbor:"1,keyasint"` // of the base fork as written
	Forks       []int  `cbor:"2,keyasint,omitempty"`
}

// Fingerprint hashes the bytes of a class file.
func Fingerprint(data []byte) uint64 {
	return xxh3.Hash(data)
}

// Current reports whether data is the output recorded for path.
func (s *State) Current(path string, data []byte) bool {
	cs, ok := s.Classes[path]
	return ok && cs.Fingerprint == Fingerprint(data)
}

// LoadState reads the state file. A missing file is an empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &State{Classes: make(map[string]ClassState)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("build: reading state: %w", err)
	}
	var s State
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("build: unmarshal state: %w", err)
	}
	if s.Classes == nil {
		s.Classes = make(map[string]ClassState)
	}
	return &s, nil
}

// Save writes the state file, creating its directory.
func (s *State) Save(path string) error {
	data, err := cborEncMode.Marshal(s)
	if err != nil {
		return fmt.Errorf("build: marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("build: creating state directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
