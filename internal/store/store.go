package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sage/utils"

	"github.com/charmbracelet/log"
)

type SaveParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Saver persists exported bytes under a suggested name and returns where they
// ended up.
type Saver interface {
	Save(context.Context, SaveParams) (string, error)
}

type DirSaver struct {
	Dir string
}

// Save writes into Dir/<session>/<job>, taken from the metadata, so repeated
// exports of the same tier never overwrite each other.
func (s *DirSaver) Save(ctx context.Context, params SaveParams) (string, error) {
	dir, err := utils.SafeSubdir(s.Dir, filepath.Join(params.Metadata["session"], params.Metadata["job"]))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(params.Name))
	log.With("component", "store").Debug("writing export", "path", path, "bytes", len(params.Data))

	tmp := path + ".part"
	if err := os.WriteFile(tmp, params.Data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}
