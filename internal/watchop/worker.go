package watchop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felipeplets/percy-cli/internal/storage"
	"github.com/felipeplets/percy-cli/internal/watch"
)

// WorkerOptions configures a watch worker invocation.
type WorkerOptions struct {
	WatchOptions watch.Options
	WatchID      string
	Store        Store
	Uploader     storage.Uploader
}

// Run executes a watch session, uploads the resulting asset manifest, and
// transitions the watch through running → complete | failed.
//
// Run is intended to be called in a separate goroutine; it owns the full
// lifecycle of the watch from the moment it is called.
func Run(ctx context.Context, opts WorkerOptions) {
	if err := opts.Store.MarkRunning(opts.WatchID); err != nil {
		// If we cannot even mark it running the store is broken; nothing to do.
		return
	}

	result, err := watch.Run(ctx, opts.WatchOptions)
	if err != nil {
		_ = opts.Store.MarkFailed(opts.WatchID, fmt.Errorf("watch: %w", err))
		return
	}

	artefacts, err := uploadManifest(ctx, opts.WatchID, result, opts.Uploader)
	if err != nil {
		_ = opts.Store.MarkFailed(opts.WatchID, fmt.Errorf("upload: %w", err))
		return
	}

	_ = opts.Store.MarkComplete(opts.WatchID, result.Stats, result.TimedOut, artefacts)
}

// manifestEntry is the exported shape of one discovered resource, omitting
// the resource body to keep the manifest small.
type manifestEntry struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Status   int    `json:"status"`
	SHA      string `json:"sha"`
	Root     bool   `json:"root,omitempty"`
}

// uploadManifest serialises the discovered-asset manifest and uploads it.
// Returns the artefact list ready to be stored on the watch.
func uploadManifest(ctx context.Context, watchID string, result *watch.Result, uploader storage.Uploader) ([]Artefact, error) {
	entries := make([]manifestEntry, 0, len(result.Resources))
	for _, r := range result.Resources {
		entries = append(entries, manifestEntry{
			URL:      r.URL,
			MimeType: r.MimeType,
			Status:   r.Status,
			SHA:      r.SHA,
			Root:     r.Root,
		})
	}

	manifestJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	req := &storage.UploadRequest{
		ObjectName:  objectPath(watchID, "manifest.json"),
		Content:     bytes.NewReader(manifestJSON),
		ContentType: "application/json",
	}

	uploaded, err := uploader.Upload(ctx, req)
	if err != nil {
		return nil, err
	}

	return []Artefact{{
		Name:      "manifest",
		SignedURL: uploaded.SignedURL,
		ExpiresAt: uploaded.ExpiresAt,
	}}, nil
}

func objectPath(watchID, filename string) string {
	date := time.Now().UTC().Format("2006/01/02")
	return fmt.Sprintf("watches/%s/%s/%s", date, watchID, filename)
}
