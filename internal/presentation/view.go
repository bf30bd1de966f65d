// Package presentation turns lookup outcomes into the view model returned to clients.
package presentation

import (
	"context"
	"image/color"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/example/flower-lookup/internal/palette"
	"github.com/example/flower-lookup/internal/wiki"
)

const (
	FailureTitle       = "Failed to detect"
	FailureDescription = "Could not get information on flower from Wikipedia."
)

// View is what a client renders for one identification.
type View struct {
	Found       bool   `json:"found"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
	ThemeColor  string `json:"theme_color"`
	// ImageRetained tells the client to keep showing the photo it captured.
	ImageRetained bool   `json:"image_retained"`
	ErrorKind     string `json:"error_kind,omitempty"`
}

// ThemeSource derives a theme colour from an image URL.
type ThemeSource interface {
	ThemeColor(ctx context.Context, url string) (color.RGBA, error)
}

// Presenter builds views. It is safe for concurrent use.
type Presenter struct {
	theme        ThemeSource
	tag          language.Tag
	themeTimeout time.Duration
	logger       *zap.Logger
}

// NewPresenter builds a Presenter; theme may be nil to always use the default colour.
func NewPresenter(theme ThemeSource, tag language.Tag, logger *zap.Logger) *Presenter {
	return &Presenter{theme: theme, tag: tag, themeTimeout: 3 * time.Second, logger: logger.Named("presentation")}
}

// Success renders a found record. A thumbnail that cannot be analysed keeps the
// default theme colour.
func (p *Presenter) Success(ctx context.Context, record wiki.Record) View {
	view := View{
		Found:       true,
		Title:       cases.Title(p.tag).String(record.Title),
		Description: record.Description,
		ImageURL:    record.ImageURL,
		ThemeColor:  palette.Hex(palette.DefaultColor),
	}
	if p.theme == nil || record.ImageURL == "" {
		return view
	}

	themeCtx, cancel := context.WithTimeout(ctx, p.themeTimeout)
	defer cancel()
	c, err := p.theme.ThemeColor(themeCtx, record.ImageURL)
	if err != nil {
		p.logger.Info("theme colour unavailable", zap.String("image_url", record.ImageURL), zap.Error(err))
		return view
	}
	view.ThemeColor = palette.Hex(c)
	return view
}

// Failure renders the fixed fallback for any lookup error.
func (p *Presenter) Failure(err error) View {
	return View{
		Title:         FailureTitle,
		Description:   FailureDescription,
		ThemeColor:    palette.Hex(palette.DefaultColor),
		ImageRetained: true,
		ErrorKind:     wiki.Kind(err),
	}
}
