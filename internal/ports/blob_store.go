package ports

import (
	"context"
	"time"
)

// BlobStore es el almacenamiento opaco key → bytes donde el pipeline lee
// el histórico y escribe todas sus salidas.
type BlobStore interface {
	// Get devuelve el contenido de key. found=false si no existe (no es error).
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// Put reemplaza el contenido completo de key.
	Put(ctx context.Context, key string, data []byte) error
}

// BlobInfo describe un blob guardado.
type BlobInfo struct {
	Key         string    `json:"key"`
	Size        int       `json:"size"`
	ContentType string    `json:"contentType"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BlobLister lo implementan los stores que pueden enumerar su contenido.
type BlobLister interface {
	List(ctx context.Context) ([]BlobInfo, error)
}
