package domain

import "time"

// RunStatus es el resultado global de una ejecución del pipeline.
type RunStatus string

const (
	RunOK       RunStatus = "ok"
	RunDegraded RunStatus = "degraded" // algún fetch opcional falló, salidas completas
	RunFailed   RunStatus = "failed"   // sin trades: no se escribe nada
)

// RunResult resume una ejecución.
type RunResult struct {
	RunID      string    `json:"runId"`
	Status     RunStatus `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Trades     int       `json:"trades"`
	Written    []string  `json:"written,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Duration devuelve lo que tardó la ejecución.
func (r RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Report es lo que el pipeline entrega al reporter al final de cada ejecución.
type Report struct {
	Result RunResult
	Stats  Statistics
	Daily  []Bucket
}
