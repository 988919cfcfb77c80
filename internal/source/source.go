package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")

	ErrAlreadyRunning = errors.New("source is already running")
)

// Line is one FFT line: power in dB for equally spaced bins starting at
// FrequencyStart.
type Line struct {
	Timestamp      time.Time
	FrequencyStart float64 // Hz, lower edge of the first bin
	FrequencyEnd   float64 // Hz, upper edge of the last bin
	BinWidth       float64 // Hz
	Power          []float32
}

// CenterFrequency returns the frequency in the middle of the line.
func (l *Line) CenterFrequency() float64 {
	return (l.FrequencyStart + l.FrequencyEnd) / 2
}

// Bandwidth returns the frequency span covered by the line.
func (l *Line) Bandwidth() float64 {
	return l.FrequencyEnd - l.FrequencyStart
}

// Handler interface defines the methods required for running an external FFT
// producer.
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Parse(line string, lines chan<- Line) error
	Name() string
}

// Flusher is implemented by handlers that buffer partial output and have to
// emit it once the command exits.
type Flusher interface {
	Flush(lines chan<- Line)
}

// WithLogger sets the logger for the command
func WithLogger(logger *slog.Logger) func(c *Command) {
	return func(c *Command) {
		c.logger = logger.With(slog.String("source", c.handler.Name()))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(c *Command) {
	return func(c *Command) {
		c.parseErrorsThreshold = threshold
	}
}

// Command runs an external program and turns its output into FFT lines.
type Command struct {
	handler Handler

	isSampling atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewCommand creates a new Command instance with a discard logger
func NewCommand(h Handler, options ...func(c *Command)) *Command {
	c := Command{
		handler:              h,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Name returns the handler name.
func (c *Command) Name() string {
	return c.handler.Name()
}

// BeginSampling starts the command and sends parsed lines to the lines
// channel. The returned channel is closed once sampling stops and carries the
// reason, if any. The caller must keep draining lines until then.
func (c *Command) BeginSampling(ctx context.Context, lines chan<- Line) (<-chan error, error) {
	if !c.isSampling.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	cmd := c.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		c.isSampling.Store(false)
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		c.isSampling.Store(false)
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		cancel()
		c.isSampling.Store(false)
		return nil, fmt.Errorf("starting command: %w", err)
	}

	samplingStopped := make(chan error, 1)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(samplingStopped)
		defer cancel()

		c.logger.Info("starting sampling...")

		// Pipes must be drained before Wait closes them.
		var pipes sync.WaitGroup
		var errs []error
		var mu sync.Mutex

		collect := func(err error) {
			if err == nil {
				return
			}
			cancel()
			c.logger.Error(err.Error())

			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}

		pipes.Add(2)
		go func() {
			defer pipes.Done()
			collect(c.handleStdout(stdout, lines))
		}()
		go func() {
			defer pipes.Done()
			collect(c.handleStderr(stderr))
		}()
		pipes.Wait()

		collect(c.handleCmdWait(ctx, cmd))

		c.logger.Info("sampling stopped")
		c.isSampling.Store(false)

		if len(errs) > 0 {
			samplingStopped <- errors.Join(errs...)
		}
	}()

	return samplingStopped, nil
}

// Stop terminates the command and waits for sampling to finish.
func (c *Command) Stop() {
	if !c.isSampling.Load() {
		return
	}

	c.cancel()
	c.wg.Wait()
}

// IsSampling returns true if the command is running
func (c *Command) IsSampling() bool {
	return c.isSampling.Load()
}

// handleStdout reads from stdout, parses and sends lines to the lines channel.
func (c *Command) handleStdout(stdout io.Reader, lines chan<- Line) error {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := c.handler.Parse(line, lines); err != nil {
			parseErrors++
			c.logger.Warn(fmt.Sprintf("error parsing line: %s", err.Error()), slog.String("line", line))

			if parseErrors >= c.parseErrorsThreshold {
				return ErrTooManyParseErrors
			}

			continue
		}

		parseErrors = 0
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: reading stdout: %w", ErrBrokenPipe, err)
	}

	if f, ok := c.handler.(Flusher); ok {
		f.Flush(lines)
	}
	return nil
}

// handleStderr reads from stderr and logs it.
func (c *Command) handleStderr(stderr io.Reader) error {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		c.logger.Warn(fmt.Sprintf("%s >> %s", c.handler.Name(), line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: reading stderr: %w", ErrBrokenPipe, err)
	}

	return nil
}

// handleCmdWait waits for the command to exit. Exits caused by cancellation
// are not errors.
func (c *Command) handleCmdWait(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("command exited with error: %w", err)
	}

	return nil
}

// FindRuntime locates an external program in PATH.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", runtime, err)
	}

	return binPath, nil
}
