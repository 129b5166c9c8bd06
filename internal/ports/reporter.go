package ports

import (
	"context"

	"github.com/alejandrodnm/predictstats/internal/domain"
)

// Reporter presenta el resultado de cada ejecución al operador.
type Reporter interface {
	// Report recibe el resultado y, si la ejecución no falló, las estadísticas.
	Report(ctx context.Context, report domain.Report) error
}
