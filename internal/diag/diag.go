// Package diag carries non-fatal conditions back to callers of the band
// algebra operations.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mohammed-shakir/band-algebra/internal/core/observability"
)

type Code string

const (
	CodeUnknownIndex        Code = "unknown_index"
	CodeMissingBands        Code = "missing_bands"
	CodeUnsupportedPlatform Code = "unsupported_platform"
)

type Warning struct {
	Code    Code   `json:"code"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (w Warning) String() string { return w.Message }

// Warnings collects the warnings of one operation.
type Warnings []Warning

func (ws *Warnings) Add(code Code, subject, format string, args ...any) {
	*ws = append(*ws, Warning{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// About reports whether a warning with one of codes has exactly this subject.
// With no codes, any code matches.
func (ws Warnings) About(subject string, codes ...Code) bool {
	for _, w := range ws {
		if w.Subject != subject {
			continue
		}
		if len(codes) == 0 || slices.Contains(codes, w.Code) {
			return true
		}
	}
	return false
}

func (ws Warnings) Count(code Code) int {
	n := 0
	for _, w := range ws {
		if w.Code == code {
			n++
		}
	}
	return n
}

// Report logs every warning at warn level and counts it under operation.
func (ws Warnings) Report(ctx context.Context, log *slog.Logger, operation string) {
	for _, w := range ws {
		observability.IncWarning(operation, string(w.Code))
		if log != nil {
			log.WarnContext(ctx, w.Message, "operation", operation, "code", string(w.Code), "subject", w.Subject)
		}
	}
}
