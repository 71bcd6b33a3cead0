// Package tracking propagates analysis progress to reporters.
package tracking

import (
	"context"

	"github.com/helixml/tileqc/domain/run"
)

// Reporter receives run progress. Calls are made synchronously on the
// goroutine running the pipeline.
type Reporter interface {
	OnChange(ctx context.Context, status run.Status) error
	OnMalformedRecord(ctx context.Context, rec run.MalformedRecord) error
}
