package mosaic

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// ProgressWriter reports progress for long-running operations: feature
// indexing during a build, byte counts during a backend upload.
// Generalized from pmtiles' byte/count split: a progress bar keyed
// purely on bytes reads oddly for an "indexed 4,000/10,000 features"
// operation.
type ProgressWriter interface {
	NewCountProgress(total int64, description string) Progress
	NewBytesProgress(total int64, description string) Progress
}

// Progress is an active progress tracker.
type Progress interface {
	io.Writer
	Add(num int)
	Close() error
}

var (
	progressWriterMu sync.RWMutex
	progressWriter   ProgressWriter = &defaultProgressWriter{}
)

// SetProgressWriter installs a custom progress writer for all mosaic
// operations. Pass nil to suppress all progress reporting.
func SetProgressWriter(pw ProgressWriter) {
	progressWriterMu.Lock()
	defer progressWriterMu.Unlock()
	if pw == nil {
		progressWriter = &quietProgressWriter{}
	} else {
		progressWriter = pw
	}
}

func getProgressWriter() ProgressWriter {
	progressWriterMu.RLock()
	defer progressWriterMu.RUnlock()
	return progressWriter
}

// progressFor returns the quiet writer when quiet is requested for this
// single call, without disturbing the process-wide default.
func progressFor(quiet bool) ProgressWriter {
	if quiet {
		return &quietProgressWriter{}
	}
	return getProgressWriter()
}

type defaultProgressWriter struct{}

func (d *defaultProgressWriter) NewCountProgress(total int64, description string) Progress {
	label := fmt.Sprintf("%s (%s)", description, humanize.Comma(total))
	return &progressBarWrapper{bar: progressbar.Default(total, label)}
}

func (d *defaultProgressWriter) NewBytesProgress(total int64, description string) Progress {
	label := fmt.Sprintf("%s (%s)", description, humanize.Bytes(uint64(total)))
	return &progressBarWrapper{bar: progressbar.DefaultBytes(total, label)}
}

type progressBarWrapper struct {
	bar *progressbar.ProgressBar
}

func (p *progressBarWrapper) Write(data []byte) (int, error) {
	if p.bar == nil {
		return len(data), nil
	}
	return p.bar.Write(data)
}

func (p *progressBarWrapper) Add(num int) {
	if p.bar != nil {
		p.bar.Add(num)
	}
}

func (p *progressBarWrapper) Close() error {
	if p.bar != nil {
		return p.bar.Close()
	}
	return nil
}

type quietProgressWriter struct{}

func (q *quietProgressWriter) NewCountProgress(total int64, description string) Progress {
	return &quietProgress{}
}

func (q *quietProgressWriter) NewBytesProgress(total int64, description string) Progress {
	return &quietProgress{}
}

type quietProgress struct{}

func (q *quietProgress) Write(data []byte) (int, error) { return len(data), nil }
func (q *quietProgress) Add(num int)                     {}
func (q *quietProgress) Close() error                    { return nil }
