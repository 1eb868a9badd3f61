// Package logger exposes a Cloud Logging backed stdlib logger for batch
// tools, which log to a named log stream rather than request-scoped
// structured records.
package logger

import (
	"context"
	"log"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/logging"
)

// New returns a stdlib logger writing to the named Cloud Logging stream
// of the ambient project.
func New(ctx context.Context, logID string) *log.Logger {
	projectID, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		log.Fatalf("failed to get project ID: %v", err)
	}
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		log.Fatalf("failed to create logging client: %v", err)
	}
	return client.Logger(logID).StandardLogger(logging.Info)
}
