package substack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/writestack/noteflow/internal/domain"
	"github.com/writestack/noteflow/internal/metrics"
)

// DefaultMaxAttachments caps how many URLs one note may carry. Excess URLs are
// silently dropped — a resource limit, not a reported error.
const DefaultMaxAttachments = 4

// Uploader is the slice of the platform client the preparer needs.
type Uploader interface {
	UploadImage(ctx context.Context, image []byte) (string, error)
	CreateAttachment(ctx context.Context, imageURL string) (*domain.Attachment, error)
}

// Preparer downloads referenced media and re-uploads each item to the
// platform, producing attachment handles for the publish call.
type Preparer struct {
	uploader Uploader
	download *http.Client
	logger   *slog.Logger
	max      int
}

func NewPreparer(uploader Uploader, logger *slog.Logger, maxAttachments int) *Preparer {
	if maxAttachments <= 0 {
		maxAttachments = DefaultMaxAttachments
	}
	return &Preparer{
		uploader: uploader,
		download: &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "attachments"),
		max:      maxAttachments,
	}
}

// Prepare processes up to max URLs sequentially. A failure at any stage skips
// that URL only; the batch continues and a non-nil error is returned only
// when the batch itself cannot proceed (context cancelled). The returned
// slice preserves input order but may be shorter than the input — callers map
// results back by URL, never by index.
func (p *Preparer) Prepare(ctx context.Context, urls []string) ([]domain.Attachment, error) {
	if len(urls) == 0 {
		return []domain.Attachment{}, nil
	}
	if len(urls) > p.max {
		p.logger.WarnContext(ctx, "truncating attachment list", "given", len(urls), "max", p.max)
		urls = urls[:p.max]
	}

	attachments := make([]domain.Attachment, 0, len(urls))
	for _, url := range urls {
		a, err := p.prepareOne(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("prepare attachments: %w", ctx.Err())
			}
			metrics.AttachmentsPreparedTotal.WithLabelValues("failed").Inc()
			p.logger.ErrorContext(ctx, "skipping attachment", "url", url, "error", err)
			continue
		}
		metrics.AttachmentsPreparedTotal.WithLabelValues("ok").Inc()
		a.SourceURL = url
		attachments = append(attachments, *a)
	}
	return attachments, nil
}

func (p *Preparer) prepareOne(ctx context.Context, url string) (*domain.Attachment, error) {
	data, err := p.downloadImage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	hostedURL, err := p.uploader.UploadImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	a, err := p.uploader.CreateAttachment(ctx, hostedURL)
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	return a, nil
}

func (p *Preparer) downloadImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.download.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// MapResults re-derives per-URL success for a prepared batch. Prepare returns
// only the successful subset, so membership is decided by source URL equality.
func MapResults(requested []string, prepared []domain.Attachment) map[string]*domain.Attachment {
	byURL := make(map[string]*domain.Attachment, len(prepared))
	for i := range prepared {
		byURL[prepared[i].SourceURL] = &prepared[i]
	}
	results := make(map[string]*domain.Attachment, len(requested))
	for _, url := range requested {
		results[url] = byURL[url]
	}
	return results
}
