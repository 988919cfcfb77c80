package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/waterfall/internal/view"
)

const (
	dpi            = 120.0
	fontSize       = 9.0
	tickMarkHeight = 5
	jpegQuality    = 98

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

// ErrEmptySnapshot is returned when there is nothing to render.
var ErrEmptySnapshot = errors.New("snapshot has no rows")

// Format is an output image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts "png", "jpeg" and "jpg".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format: %s", s)
	}
}

// Snapshot is a waterfall bitmap with the frequency and time ranges it covers.
// The newest row is at the top of Image.
type Snapshot struct {
	Image *image.RGBA
	Rows  int // Valid rows from the top; 0 means the whole image

	FrequencyMin float64 // Hz, left edge
	FrequencyMax float64 // Hz, right edge

	TimestampStart time.Time // Oldest row
	TimestampEnd   time.Time // Newest row
}

func (s *Snapshot) height() int {
	if s.Image == nil {
		return 0
	}
	h := s.Image.Rect.Dy()
	if s.Rows > 0 {
		h = min(h, s.Rows)
	}
	return h
}

// Borders defines the sizes of white space around the waterfall
type Borders struct {
	Top    int // Space for frequency scale
	Left   int // Space for time scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// Config holds the annotation options.
type Config struct {
	TimeFormat     string         // Format string for the time scale (e.g. "15:04")
	DatetimeFormat string         // Format string for the info bar
	Location       *time.Location // Timezone for time display
	FontSize       float64        // Font size in points
	Borders        Borders
}

// Renderer composes a snapshot with its frequency scale, time scale and an
// information bar into a still image.
type Renderer struct {
	config Config
	font   *truetype.Font
}

// NewRenderer creates a renderer with the given configuration; zero values
// take defaults.
func NewRenderer(config Config) (*Renderer, error) {
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &Renderer{config: config, font: parsedFont}, nil
}

// Render draws the annotations first and then blits the waterfall over the
// data area.
func (r *Renderer) Render(s *Snapshot) (*image.RGBA, error) {
	height := s.height()
	if height == 0 || s.Image.Rect.Dx() == 0 {
		return nil, ErrEmptySnapshot
	}
	width := s.Image.Rect.Dx()

	b := r.config.Borders
	img := image.NewRGBA(image.Rect(0, 0, width+b.Left+b.Right, height+b.Top+b.Bottom))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	ann := r.newAnnotator(img)
	defer ann.Close()

	if err := ann.drawFrequencyScale(s, width); err != nil {
		return nil, fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := ann.drawTimeScale(s, height); err != nil {
		return nil, fmt.Errorf("drawing time scale: %w", err)
	}
	if err := ann.drawInfoBar(s, width, height); err != nil {
		return nil, fmt.Errorf("drawing info bar: %w", err)
	}

	area := image.Rect(b.Left, b.Top, b.Left+width, b.Top+height)
	draw.Draw(img, area, s.Image, s.Image.Rect.Min, draw.Src)

	return img, nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return fmt.Errorf("unsupported image format: %s", format)
	}
}

type annotator struct {
	img      *image.RGBA
	context  *freetype.Context
	config   Config
	fontFace font.Face
}

func (r *Renderer) newAnnotator(img *image.RGBA) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(r.font)
	ctx.SetFontSize(r.config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	return &annotator{
		img:     img,
		context: ctx,
		config:  r.config,
		fontFace: truetype.NewFace(r.font, &truetype.Options{
			Size:    r.config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}
}

func (a *annotator) Close() error {
	return a.fontFace.Close()
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawFrequencyScale(s *Snapshot, width int) error {
	span := s.FrequencyMax - s.FrequencyMin
	if span <= 0 {
		return nil
	}

	step := view.NiceFrequencyStep(span, width)
	textY := a.config.Borders.Top - a.fontHeight()/2

	for freq := math.Ceil(s.FrequencyMin/step) * step; freq <= s.FrequencyMax; freq += step {
		x := a.config.Borders.Left + int((freq-s.FrequencyMin)/span*float64(width))

		for y := a.config.Borders.Top - tickMarkHeight; y < a.config.Borders.Top; y++ {
			a.img.Set(x, y, color.Black)
		}

		label := view.FormatFrequency(freq)
		labelWidth := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-labelWidth.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

// drawTimeScale labels rows from the newest at the top down to the oldest.
func (a *annotator) drawTimeScale(s *Snapshot, height int) error {
	duration := s.TimestampEnd.Sub(s.TimestampStart)
	if duration <= 0 || height < 2 {
		return nil
	}

	step := niceTimeStep(duration)
	metrics := a.fontFace.Metrics()
	pixelsPerSecond := float64(height-1) / duration.Seconds()

	for t := s.TimestampEnd.Truncate(step); !t.Before(s.TimestampStart); t = t.Add(-step) {
		y := a.config.Borders.Top + int(s.TimestampEnd.Sub(t).Seconds()*pixelsPerSecond)

		for x := a.config.Borders.Left - tickMarkHeight; x < a.config.Borders.Left; x++ {
			a.img.Set(x, y, color.Black)
		}

		textY := y + a.fontHeight()/2 - metrics.Descent.Round()
		label := t.In(a.config.Location).Format(a.config.TimeFormat)
		if _, err := a.context.DrawString(label, freetype.Pt(10, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(s *Snapshot, width, height int) error {
	var sb strings.Builder

	sb.WriteString(view.FormatSpan(s.FrequencyMin, s.FrequencyMax))
	if !s.TimestampStart.IsZero() {
		sb.WriteString(fmt.Sprintf("; Time: %s - %s",
			s.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
			s.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))
	}
	if width > 0 {
		sb.WriteString(fmt.Sprintf("; 1px = %s", view.FormatFrequency((s.FrequencyMax-s.FrequencyMin)/float64(width))))
	}
	sb.WriteString(fmt.Sprintf("; %s lines", humanize.Comma(int64(height))))

	metrics := a.fontFace.Metrics()
	textY := a.img.Bounds().Max.Y - (a.config.Borders.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.config.Borders.Left, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// niceTimeStep picks an interval giving about 8 labels.
func niceTimeStep(duration time.Duration) time.Duration {
	rough := duration / 8

	intervals := []time.Duration{
		time.Second,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
		time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		time.Hour,
		2 * time.Hour,
		4 * time.Hour,
	}

	for _, interval := range intervals {
		if rough <= interval {
			return interval
		}
	}
	return 6 * time.Hour
}
