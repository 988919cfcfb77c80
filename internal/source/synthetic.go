package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat/distuv"
)

// Tone is a carrier in the synthetic signal.
type Tone struct {
	Offset    float64 `yaml:"offset"`    // Hz from the centre frequency
	Amplitude float64 `yaml:"amplitude"` // Linear, full scale is 1
	Drift     float64 `yaml:"drift"`     // Hz per second, wraps inside the band
}

// SyntheticConfig describes a generated IQ stream.
type SyntheticConfig struct {
	CenterFrequency float64  `yaml:"centerFrequency"` // Hz
	SampleRate      float64  `yaml:"sampleRate"`      // Hz, equal to the displayed bandwidth
	Size            int      `yaml:"size"`            // FFT size, a power of two
	Interval        Duration `yaml:"interval"`        // Time between lines
	NoiseLevel      float64  `yaml:"noiseLevel"`      // Standard deviation of the complex noise
	Tones           []Tone   `yaml:"tones"`
	Seed            uint64   `yaml:"seed"`
}

func (c *SyntheticConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("synthetic: sample rate must be positive: %f", c.SampleRate)
	}
	if c.Size < 2 || c.Size&(c.Size-1) != 0 {
		return fmt.Errorf("synthetic: FFT size must be a power of two: %d", c.Size)
	}
	if c.Interval < 0 {
		return fmt.Errorf("synthetic: interval must not be negative: %s", c.Interval)
	}
	if c.NoiseLevel < 0 {
		return fmt.Errorf("synthetic: noise level must not be negative: %f", c.NoiseLevel)
	}
	return nil
}

// Synthetic generates FFT lines from tones in Gaussian noise: IQ samples are
// windowed with a Hann window, transformed, converted to dB and reordered so
// that the centre frequency is in the middle of the line.
type Synthetic struct {
	config SyntheticConfig

	fft    *fourier.CmplxFFT
	window []float64
	gain   float64 // Window coherent gain
	noise  distuv.Normal

	iq     []complex128
	coeffs []complex128
	t      float64 // Stream time in seconds

	logger *slog.Logger
}

// WithSyntheticLogger sets the logger for the synthetic source.
func WithSyntheticLogger(logger *slog.Logger) func(*Synthetic) {
	return func(s *Synthetic) {
		s.logger = logger
	}
}

func NewSynthetic(config SyntheticConfig, opts ...func(*Synthetic)) (*Synthetic, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	win := make([]float64, config.Size)
	for i := range win {
		win[i] = 1
	}
	win = window.Hann(win)

	var sum float64
	for _, w := range win {
		sum += w
	}

	s := &Synthetic{
		config: config,
		fft:    fourier.NewCmplxFFT(config.Size),
		window: win,
		gain:   sum,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: config.NoiseLevel / math.Sqrt2,
			Src:   rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15),
		},
		iq:     make([]complex128, config.Size),
		coeffs: make([]complex128, config.Size),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("source", s.Name()))
	return s, nil
}

func (s *Synthetic) Name() string {
	return "synthetic"
}

// Next generates the next line. It is not safe for concurrent use.
func (s *Synthetic) Next() Line {
	n := s.config.Size
	rate := s.config.SampleRate
	half := rate / 2

	for i := range s.iq {
		t := s.t + float64(i)/rate

		var v complex128
		for _, tone := range s.config.Tones {
			f := math.Mod(tone.Offset+tone.Drift*s.t+half, rate)
			if f < 0 {
				f += rate
			}
			f -= half
			v += cmplx.Rect(tone.Amplitude, 2*math.Pi*f*t)
		}
		if s.config.NoiseLevel > 0 {
			v += complex(s.noise.Rand(), s.noise.Rand())
		}
		s.iq[i] = v * complex(s.window[i], 0)
	}
	s.t += float64(n) / rate

	s.fft.Coefficients(s.coeffs, s.iq)

	power := make([]float32, n)
	for i, c := range s.coeffs {
		mag := cmplx.Abs(c) / s.gain
		db := MissingPower
		if mag > 0 {
			db = float32(20 * math.Log10(mag))
		}
		// Negative frequencies go to the left half.
		power[(i+n/2)%n] = max(db, MissingPower)
	}

	return Line{
		Timestamp:      time.Now(),
		FrequencyStart: s.config.CenterFrequency - half,
		FrequencyEnd:   s.config.CenterFrequency + half,
		BinWidth:       rate / float64(n),
		Power:          power,
	}
}

// Run sends a line every interval until ctx is done. The lines channel is
// not closed.
func (s *Synthetic) Run(ctx context.Context, lines chan<- Line) error {
	interval := s.config.Interval.Duration()
	if interval <= 0 {
		interval = time.Duration(float64(time.Second) * float64(s.config.Size) / s.config.SampleRate)
	}

	s.logger.Info("generating lines",
		slog.Int("size", s.config.Size),
		slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			select {
			case lines <- s.Next():
			case <-ctx.Done():
			}
		}
	}
}
