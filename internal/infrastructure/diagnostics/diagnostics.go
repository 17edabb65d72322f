// Package diagnostics captures what a failed expectation was looking at: the page URL,
// cleaned markup of the target and a screenshot thumbnail.
package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

const DefaultThumbnailWidth = 480

type Collector struct {
	ch         output.ControlChannel
	logger     output.LoggerPort
	clean      *CleanConfig
	thumbWidth int
	screenshot bool
}

var _ output.DiagnosticsPort = (*Collector)(nil)

// New returns a collector. thumbWidth <= 0 disables screenshots.
func New(ch output.ControlChannel, logger output.LoggerPort, thumbWidth int) *Collector {
	return &Collector{
		ch:         ch,
		logger:     logger.Named("diagnostics"),
		clean:      &DefaultCleanConfig,
		thumbWidth: thumbWidth,
		screenshot: thumbWidth > 0,
	}
}

// Capture never fails: parts that cannot be collected are left empty and logged.
func (c *Collector) Capture(ctx context.Context, page entity.PageID, node *entity.NodeRef) *entity.Diagnostic {
	d := &entity.Diagnostic{Captured: time.Now()}
	if info, err := c.ch.PageInfo(ctx, page); err == nil {
		d.PageURL = info.URL
	} else {
		c.logger.Debug("Page info unavailable", "page", string(page), "error", err)
	}

	if src, ok := c.ch.(output.HTMLSource); ok {
		var (
			raw string
			err error
		)
		if node != nil {
			raw, err = src.OuterHTML(ctx, *node)
		} else {
			raw, err = src.Content(ctx, page)
		}
		if err != nil {
			c.logger.Debug("Markup unavailable", "page", string(page), "error", err)
		} else {
			d.HTML = Clean(raw, c.clean)
		}
	}

	if c.screenshot {
		shot, err := c.ch.Screenshot(ctx, page)
		if err == nil {
			shot, err = Thumbnail(shot, c.thumbWidth)
		}
		if err != nil {
			c.logger.Debug("Screenshot unavailable", "page", string(page), "error", err)
		} else {
			d.Image = shot
		}
	}
	return d
}

// Thumbnail scales a screenshot down to width, keeping the aspect ratio. Smaller
// images are returned unchanged.
func Thumbnail(shot *entity.Screenshot, width int) (*entity.Screenshot, error) {
	img, err := imaging.Decode(bytes.NewReader(shot.Data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if img.Bounds().Dx() <= width {
		return shot, nil
	}
	img = imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "png",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}
