package source

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	RTLPowerRuntime = "rtl_power"

	BinWidthMin = 1
	BinWidthMax = 2_800_000

	// MissingPower replaces bins that rtl_power reports as invalid.
	MissingPower float32 = -200

	// WindowFunctionRectangle is the default window function
	WindowFunctionRectangle      WindowFunction = "rectangle"
	WindowFunctionHamming        WindowFunction = "hamming"
	WindowFunctionBlackman       WindowFunction = "blackman"
	WindowFunctionBlackmanHarris WindowFunction = "blackman-harris"
	WindowFunctionHannPoisson    WindowFunction = "hann-poisson"
	WindowFunctionBartlett       WindowFunction = "bartlett"
	WindowFunctionYoussef        WindowFunction = "youssef"
	WindowFunctionKaiser         WindowFunction = "kaiser"

	// SmoothingAvg is the default smoothing method
	SmoothingAvg SmoothingMethod = "avg"
	SmoothingIIR SmoothingMethod = "iir"
)

var (
	validWindowFunctions = map[WindowFunction]struct{}{
		WindowFunctionRectangle:      {},
		WindowFunctionHamming:        {},
		WindowFunctionBlackman:       {},
		WindowFunctionBlackmanHarris: {},
		WindowFunctionHannPoisson:    {},
		WindowFunctionYoussef:        {},
		WindowFunctionKaiser:         {},
		WindowFunctionBartlett:       {},
	}

	validSmoothingMethods = map[SmoothingMethod]struct{}{
		SmoothingAvg: {},
		SmoothingIIR: {},
	}
)

type WindowFunction string

func (w WindowFunction) String() string {
	return string(w)
}

type SmoothingMethod string

func (s SmoothingMethod) String() string {
	return string(s)
}

// RTLPowerConfig is the `rtl_power` tool configuration. See `man rtl_power`:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_power.1.en.html
type RTLPowerConfig struct {
	FrequencyStart int64 `yaml:"frequencyStart" json:"frequencyStart"` // -f lower Frequency range start (Hz)
	FrequencyEnd   int64 `yaml:"frequencyEnd" json:"frequencyEnd"`     // -f upper Frequency range end (Hz)
	BinWidth       int64 `yaml:"binWidth" json:"binWidth"`             // -f bin_size Bin size in Hz (valid range 1Hz - 2.8MHz)

	Interval    Duration `yaml:"interval" json:"interval"`       // -i integration_interval (default: 10 seconds)
	DeviceIndex int      `yaml:"deviceIndex" json:"deviceIndex"` // -d device_index (default: 0)
	Gain        int      `yaml:"gain" json:"gain"`               // -g tuner_gain (default: automatic)
	PPMError    int      `yaml:"ppmError" json:"ppmError"`       // -p ppm_error (default: 0)

	Smoothing      SmoothingMethod `yaml:"smoothing" json:"smoothing"`           // -s [avg|iir]
	FFTThreads     int             `yaml:"fftThreads" json:"fftThreads"`         // -t threads
	WindowFunction WindowFunction  `yaml:"windowFunction" json:"windowFunction"` // -w window (default: rectangle)
	Crop           float32         `yaml:"crop" json:"crop"`                     // -c crop_percent (0..1)

	PeakHold       bool `yaml:"peakHold" json:"peakHold"`             // -P
	DirectSampling bool `yaml:"directSampling" json:"directSampling"` // -D
	OffsetTuning   bool `yaml:"offsetTuning" json:"offsetTuning"`     // -O
	BiasTee        bool `yaml:"biasTee" json:"biasTee"`               // -T
}

func (c *RTLPowerConfig) Validate() error {
	if c.FrequencyStart <= 0 {
		return fmt.Errorf("rtl_power: frequency start must be positive: %d", c.FrequencyStart)
	}
	if c.FrequencyEnd <= c.FrequencyStart {
		return fmt.Errorf("rtl_power: frequency end must be greater than start: %d <= %d", c.FrequencyEnd, c.FrequencyStart)
	}
	if c.BinWidth < BinWidthMin || c.BinWidth > BinWidthMax {
		return fmt.Errorf("rtl_power: invalid bin width: %d, must be between %d and %d Hz", c.BinWidth, BinWidthMin, BinWidthMax)
	}

	interval := c.Interval.Duration()
	if interval < 0 || (interval > 0 && interval < time.Second) {
		return fmt.Errorf("rtl_power: interval must be at least 1 second: %s given", interval)
	}

	if c.WindowFunction != "" {
		if _, ok := validWindowFunctions[c.WindowFunction]; !ok {
			return fmt.Errorf("rtl_power: invalid window function: %s", c.WindowFunction)
		}
	}
	if c.Smoothing != "" {
		if _, ok := validSmoothingMethods[c.Smoothing]; !ok {
			return fmt.Errorf("rtl_power: invalid smoothing method: %s", c.Smoothing)
		}
	}
	if c.Crop < 0 || c.Crop > 1 {
		return fmt.Errorf("rtl_power: crop percent must be between 0 and 1: %0.2f given", c.Crop)
	}

	return nil
}

// Args returns the command line arguments for `rtl_power`.
func (c *RTLPowerConfig) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-f", fmt.Sprintf("%d:%d:%d", c.FrequencyStart, c.FrequencyEnd, c.BinWidth),
	}

	if c.Interval > 0 {
		args = append(args, "-i", c.Interval.String())
	}

	args = append(args, "-d", strconv.Itoa(c.DeviceIndex))

	if c.Gain > 0 {
		args = append(args, "-g", strconv.Itoa(c.Gain))
	}
	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}
	if c.Smoothing != "" {
		args = append(args, "-s", c.Smoothing.String())
	}
	if c.FFTThreads > 0 {
		args = append(args, "-t", strconv.Itoa(c.FFTThreads))
	}
	if c.WindowFunction != "" {
		args = append(args, "-w", c.WindowFunction.String())
	}
	if c.Crop > 0 {
		args = append(args, "-c", strconv.FormatFloat(float64(c.Crop), 'f', 2, 32))
	}
	if c.PeakHold {
		args = append(args, "-P")
	}
	if c.DirectSampling {
		args = append(args, "-D")
	}
	if c.OffsetTuning {
		args = append(args, "-O")
	}
	if c.BiasTee {
		args = append(args, "-T")
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *RTLPowerConfig) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("rtl_power: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", RTLPowerRuntime, strings.Join(args, " "))
}

// rtlPower turns rtl_power CSV output into FFT lines. Every CSV row is one
// hop; the hops of a sweep are joined into a single line.
type rtlPower struct {
	binPath string
	args    []string

	sweep sweep
}

// NewRTLPower creates a handler for the rtl_power binary found in PATH.
func NewRTLPower(config *RTLPowerConfig) (Handler, error) {
	binPath, err := FindRuntime(RTLPowerRuntime)
	if err != nil {
		return nil, fmt.Errorf("finding runtime: %w", err)
	}

	args, err := config.Args()
	if err != nil {
		return nil, fmt.Errorf("creating args: %w", err)
	}

	return &rtlPower{binPath: binPath, args: args}, nil
}

func (h *rtlPower) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

func (h *rtlPower) Parse(line string, lines chan<- Line) error {
	hop, err := parseRTLPowerLine(line)
	if err != nil {
		return err
	}

	if l, ok := h.sweep.add(hop); ok {
		lines <- l
	}
	return nil
}

func (h *rtlPower) Flush(lines chan<- Line) {
	if l, ok := h.sweep.flush(); ok {
		lines <- l
	}
}

func (h *rtlPower) Name() string {
	return RTLPowerRuntime
}

// parseRTLPowerLine parses one row: date, time, Hz low, Hz high, Hz step,
// samples, dB, dB, ... hackrf_sweep writes the same layout with microsecond
// timestamps.
func parseRTLPowerLine(line string) (Line, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return Line{}, fmt.Errorf("invalid rtl_power output: not enough fields")
	}

	dateTime := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])
	timestamp, err := time.ParseInLocation(time.DateTime, dateTime, time.Local)
	if err != nil {
		return Line{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	freqLow, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return Line{}, fmt.Errorf("invalid start frequency: %w", err)
	}

	freqHigh, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return Line{}, fmt.Errorf("invalid end frequency: %w", err)
	}
	if freqHigh <= freqLow {
		return Line{}, fmt.Errorf("invalid frequency range: %.0f-%.0f", freqLow, freqHigh)
	}

	binSize, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return Line{}, fmt.Errorf("invalid bin size: %w", err)
	}

	if _, err = strconv.Atoi(strings.TrimSpace(fields[5])); err != nil {
		return Line{}, fmt.Errorf("invalid number of samples: %w", err)
	}

	power := make([]float32, len(fields)-6)
	for i, field := range fields[6:] {
		p, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			power[i] = MissingPower
			continue
		}
		power[i] = float32(p)
	}

	return Line{
		Timestamp:      timestamp,
		FrequencyStart: freqLow,
		FrequencyEnd:   freqLow + float64(len(power))*binSize,
		BinWidth:       binSize,
		Power:          power,
	}, nil
}
