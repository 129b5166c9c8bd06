package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alejandrodnm/predictstats/internal/ports"
)

// ErrInvalidKey se devuelve para keys que saldrían del directorio del store.
var ErrInvalidKey = errors.New("storage: invalid key")

// FSStore guarda cada blob como un fichero en dir. Es el modo de despliegue
// más simple: el dashboard estático puede servir dir directamente.
type FSStore struct {
	dir string
}

var (
	_ ports.BlobStore  = (*FSStore)(nil)
	_ ports.BlobLister = (*FSStore)(nil)
)

// NewFSStore crea dir si no existe.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage.NewFSStore: mkdir %q: %w", dir, err)
	}
	return &FSStore{dir: dir}, nil
}

// path resuelve key dentro de dir. Las keys son nombres planos: nada de
// separadores, "..", ni rutas absolutas.
func (s *FSStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage.FSStore.Get: %w", err)
	}
	return data, true, nil
}

// Put escribe en un temporal y renombra, así un lector nunca ve un fichero a medias.
func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("storage.FSStore.Put: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op tras el rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FSStore.Put: write %s: %w", key, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.FSStore.Put: chmod %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage.FSStore.Put: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("storage.FSStore.Put: rename %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) List(_ context.Context) ([]ports.BlobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage.FSStore.List: %w", err)
	}
	var out []ports.BlobInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // borrado entre ReadDir e Info
		}
		out = append(out, ports.BlobInfo{
			Key:         e.Name(),
			Size:        int(info.Size()),
			ContentType: ContentType(e.Name()),
			UpdatedAt:   info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
