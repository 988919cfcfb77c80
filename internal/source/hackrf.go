package source

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	HackRFRuntime = "hackrf_sweep"

	MinNumSamples = 8192
	MaxLNAGain    = 40
	MaxVGAGain    = 62
	LNAGainStep   = 8
	VGAGainStep   = 2
)

// HackRFConfig is the `hackrf_sweep` tool configuration. See `man hackrf_sweep`:
// https://manpages.debian.org/bookworm/hackrf/hackrf_sweep.1.en.html
//
// The sweep always runs continuously and writes text output to stdout, the
// same CSV layout rtl_power produces.
type HackRFConfig struct {
	FrequencyStart int64 `yaml:"frequencyStart" json:"frequencyStart"` // -f freq_min, Hz; passed to the tool in MHz
	FrequencyEnd   int64 `yaml:"frequencyEnd" json:"frequencyEnd"`     // -f freq_max, Hz; passed to the tool in MHz

	LNAGain    *int  `yaml:"lnaGain" json:"lnaGain"`       // -l gain_db LNA (IF) gain, 0-40dB, 8dB steps
	VGAGain    *int  `yaml:"vgaGain" json:"vgaGain"`       // -g gain_db VGA (baseband) gain, 0-62dB, 2dB steps
	BinWidth   int64 `yaml:"binWidth" json:"binWidth"`     // -w bin_width FFT bin width (frequency resolution) in Hz
	NumSamples int64 `yaml:"numSamples" json:"numSamples"` // -n num_samples Number of samples per frequency, 8192-4294967296

	SerialNumber string `yaml:"serialNumber" json:"serialNumber"` // -d serial_number Serial number of desired HackRF
	EnableAmp    bool   `yaml:"enableAmp" json:"enableAmp"`       // -a amp_enable RX RF amplifier 1=Enable, 0=Disable
	AntennaPower bool   `yaml:"antennaPower" json:"antennaPower"` // -p antenna_enable Antenna port power, 1=Enable, 0=Disable
	NumSweeps    int    `yaml:"numSweeps" json:"numSweeps"`       // -N num_sweeps Number of sweeps to perform
}

func (c *HackRFConfig) Validate() error {
	if c.FrequencyStart < 0 || c.FrequencyStart >= c.FrequencyEnd {
		return errors.New("hackrf_sweep: frequency end must be greater than frequency start")
	}
	if c.FrequencyEnd-c.FrequencyStart < 1e6 {
		return fmt.Errorf("hackrf_sweep: frequency range must span at least 1 MHz: %d Hz given", c.FrequencyEnd-c.FrequencyStart)
	}

	if c.LNAGain != nil {
		if *c.LNAGain < 0 || *c.LNAGain > MaxLNAGain {
			return fmt.Errorf("hackrf_sweep: LNA gain must be between 0 and 40 dB: %d given", *c.LNAGain)
		}
		if *c.LNAGain%LNAGainStep != 0 {
			return errors.New("hackrf_sweep: LNA gain must be a multiple of 8 dB")
		}
	}

	if c.VGAGain != nil {
		if *c.VGAGain < 0 || *c.VGAGain > MaxVGAGain {
			return fmt.Errorf("hackrf_sweep: VGA gain must be between 0 and 62 dB: %d given", *c.VGAGain)
		}
		if *c.VGAGain%VGAGainStep != 0 {
			return errors.New("hackrf_sweep: VGA gain must be a multiple of 2 dB")
		}
	}

	if c.BinWidth < 0 {
		return fmt.Errorf("hackrf_sweep: bin width must not be negative: %d given", c.BinWidth)
	}
	if c.NumSamples > 0 && c.NumSamples < MinNumSamples {
		return fmt.Errorf("hackrf_sweep: number of samples must be at least 8192: %d given", c.NumSamples)
	}
	if c.NumSweeps < 0 {
		return fmt.Errorf("hackrf_sweep: number of sweeps cannot be negative: %d given", c.NumSweeps)
	}

	return nil
}

// Args returns the command line arguments for `hackrf_sweep`.
func (c *HackRFConfig) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{"-f", fmt.Sprintf("%d:%d", c.FrequencyStart/1e6, c.FrequencyEnd/1e6)}

	if c.SerialNumber != "" {
		args = append(args, "-d", c.SerialNumber)
	}
	if c.BinWidth > 0 {
		args = append(args, "-w", strconv.FormatInt(c.BinWidth, 10))
	}
	if c.LNAGain != nil {
		args = append(args, "-l", strconv.Itoa(*c.LNAGain))
	}
	if c.VGAGain != nil {
		args = append(args, "-g", strconv.Itoa(*c.VGAGain))
	}
	if c.NumSamples >= MinNumSamples {
		args = append(args, "-n", strconv.FormatInt(c.NumSamples, 10))
	}
	if c.EnableAmp {
		args = append(args, "-a", "1")
	}
	if c.AntennaPower {
		args = append(args, "-p", "1")
	}
	if c.NumSweeps > 0 {
		args = append(args, "-N", strconv.Itoa(c.NumSweeps))
	}

	return args, nil
}

func (c *HackRFConfig) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("%s: %s", HackRFRuntime, err.Error())
	}
	return fmt.Sprintf("%s %s", HackRFRuntime, strings.Join(args, " "))
}

// hackRF turns hackrf_sweep output into FFT lines. The tool reports each
// retune as two rows a few MHz apart, so hops arrive out of frequency order.
type hackRF struct {
	binPath string
	args    []string

	sweep sweep
}

// NewHackRF creates a handler for the hackrf_sweep binary found in PATH.
func NewHackRF(config *HackRFConfig) (Handler, error) {
	binPath, err := FindRuntime(HackRFRuntime)
	if err != nil {
		return nil, fmt.Errorf("finding runtime: %w", err)
	}

	args, err := config.Args()
	if err != nil {
		return nil, fmt.Errorf("creating args: %w", err)
	}

	return &hackRF{binPath: binPath, args: args}, nil
}

func (h *hackRF) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

func (h *hackRF) Parse(line string, lines chan<- Line) error {
	hop, err := parseRTLPowerLine(line)
	if err != nil {
		return err
	}

	if l, ok := h.sweep.add(hop); ok {
		lines <- l
	}
	return nil
}

func (h *hackRF) Flush(lines chan<- Line) {
	if l, ok := h.sweep.flush(); ok {
		lines <- l
	}
}

func (h *hackRF) Name() string {
	return HackRFRuntime
}
