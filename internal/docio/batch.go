package docio

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
)

// Batch is a command batch file.
type Batch struct {
	// Description is free text for the author.
	Description string            `json:"description,omitempty" yaml:"description,omitempty" cbor:"description,omitempty"`
	Commands    []command.Command `json:"commands" yaml:"commands" cbor:"commands"`
}

// ReadBatch reads a command batch in format f from r. Commands are
// validated but not resolved.
func ReadBatch(r io.Reader, f Format) (Batch, error) {
	var b Batch
	if err := Decode(r, f, &b); err != nil {
		return Batch{}, err
	}
	for i, cmd := range b.Commands {
		if err := cmd.Validate(); err != nil {
			return Batch{}, fmt.Errorf("command %d: %w", i+1, err)
		}
	}
	return b, nil
}

// WriteBatch writes b to w in format f.
func WriteBatch(w io.Writer, f Format, b Batch) error {
	return Encode(w, f, b)
}

// LoadBatch reads the batch file at path, choosing the format by
// extension.
func LoadBatch(path string) (Batch, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return Batch{}, err
	}
	r, err := os.Open(path)
	if err != nil {
		return Batch{}, fmt.Errorf("open batch: %w", err)
	}
	defer r.Close()

	b, err := ReadBatch(r, f)
	if err != nil {
		return Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
