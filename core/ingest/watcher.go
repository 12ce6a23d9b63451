// Package ingest watches a local drop folder and feeds new audio files into
// the active project as uploaded tracks.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"soundscene/logger"

	"github.com/fsnotify/fsnotify"
)

// UploadFunc ingests one audio file's bytes as a track.
type UploadFunc func(ctx context.Context, filename string, data []byte) error

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".aac":  true,
	".m4a":  true,
	".ogg":  true,
}

// Watcher monitors a directory for new audio files.
type Watcher struct {
	dir    string
	upload UploadFunc
}

// NewWatcher creates a drop-folder watcher.
func NewWatcher(dir string, upload UploadFunc) *Watcher {
	return &Watcher{dir: dir, upload: upload}
}

// Run watches until the context is cancelled. Files are read after a short
// settle delay so partially written files are not picked up mid-copy.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	logger.Info("watching drop folder", logger.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !audioExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			go w.ingest(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("drop folder watch error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	// Let the writer finish.
	time.Sleep(500 * time.Millisecond)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read dropped file", logger.String("path", path), logger.ErrorField(err))
		return
	}

	if err := w.upload(ctx, filepath.Base(path), data); err != nil {
		logger.Warn("failed to ingest dropped file", logger.String("path", path), logger.ErrorField(err))
		return
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("failed to remove ingested file", logger.String("path", path), logger.ErrorField(err))
	}
	logger.Info("ingested dropped file", logger.String("path", path))
}
