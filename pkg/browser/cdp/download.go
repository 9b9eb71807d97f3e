package cdp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// download is one captured browser download. The browser writes the file
// under its GUID inside the configured downloads directory.
type download struct {
	guid              string
	suggestedFilename string
	path              string

	mu     sync.Mutex
	state  string
	doneCh chan struct{}
	once   sync.Once
}

func newDownload(guid, suggestedFilename, path string) *download {
	return &download{
		guid:              guid,
		suggestedFilename: suggestedFilename,
		path:              path,
		state:             "inProgress",
		doneCh:            make(chan struct{}),
	}
}

// progress records a state transition from Browser.downloadProgress.
func (d *download) progress(state string) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()

	if state == "completed" || state == "canceled" {
		d.once.Do(func() { close(d.doneCh) })
	}
}

func (d *download) SuggestedFilename() string {
	return d.suggestedFilename
}

// Path blocks until the download finishes and returns the temp file.
func (d *download) Path(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("download did not finish: %w", ctx.Err())
	case <-d.doneCh:
	}

	d.mu.Lock()
	state := d.state
	d.mu.Unlock()

	if state != "completed" {
		return "", fmt.Errorf("download %s", state)
	}

	return d.path, nil
}

// Failure returns the failure reason, or "" when the download succeeded or
// is still running.
func (d *download) Failure(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == "canceled" {
		return "canceled", nil
	}

	return "", nil
}

// SaveAs copies the finished download to path.
func (d *download) SaveAs(ctx context.Context, path string) error {
	source, err := d.Path(ctx)
	if err != nil {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open download: %w", err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("failed to copy download to %s: %w", path, err)
	}

	return nil
}
