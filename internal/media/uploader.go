package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sam17/fxlifesheet/core/logger"
	"github.com/sam17/fxlifesheet/internal/records"
	"log/slog"
)

// Fetcher downloads media bytes for a transport-specific reference.
type Fetcher interface {
	FetchMedia(ctx context.Context, ref string) ([]byte, error)
}

// Uploader runs the image pipeline as detached work: fetch bytes, store them,
// record the resulting URL. Failures are logged and swallowed; the
// conversation never waits on this.
type Uploader struct {
	fetch   Fetcher
	store   Store
	sink    records.Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewUploader wires the pipeline. sink may be nil when recording URLs is not wanted.
func NewUploader(fetch Fetcher, store Store, sink records.Sink) *Uploader {
	return &Uploader{
		fetch:   fetch,
		store:   store,
		sink:    sink,
		timeout: 30 * time.Second,
	}
}

// Process starts a detached upload for the given media reference.
// It returns immediately.
func (u *Uploader) Process(ctx context.Context, userID int64, questionKey, ref string) {
	rid := logger.RIDFrom(ctx)
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		// The parent update finishes independently of this work.
		bg, cancel := context.WithTimeout(context.Background(), u.timeout)
		defer cancel()
		bg = logger.WithRID(bg, rid)

		start := time.Now()
		url, err := u.run(bg, ref)
		if err != nil {
			logger.Error(bg, "media", "upload.fail",
				slog.Int64("user_id", userID),
				slog.String("question_key", questionKey),
				slog.String("err", err.Error()),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			)
			return
		}

		logger.Info(bg, "media", "upload.success",
			slog.Int64("user_id", userID),
			slog.String("question_key", questionKey),
			slog.String("url", url),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)

		if u.sink == nil {
			return
		}
		if err := u.sink.RecordAnswer(bg, userID, questionKey, url, "telegram_image"); err != nil {
			logger.Warn(bg, "media", "upload.record.fail",
				slog.Int64("user_id", userID),
				slog.String("question_key", questionKey),
				slog.String("err", err.Error()),
			)
		}
	}()
}

func (u *Uploader) run(ctx context.Context, ref string) (string, error) {
	data, err := u.fetch.FetchMedia(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref, err)
	}
	name := fmt.Sprintf("%s-%s.jpg", ref, uuid.NewString())
	url, err := u.store.Store(ctx, data, name)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return url, nil
}

// Wait blocks until all in-flight uploads finish. Used on shutdown and in tests.
func (u *Uploader) Wait() {
	u.wg.Wait()
}
