package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gcodefilter/config"
	"gcodefilter/exclude"
	"gcodefilter/streaming"
)

var (
	configPath string
	verbose    bool
	rectFlags  []string
	circFlags  []string

	outputFile string
	toStdout   bool

	device string
	baud   int
)

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	for _, spec := range rectFlags {
		vals, err := splitFloats(spec, 4)
		if err != nil {
			return nil, fmt.Errorf("invalid --rect value %q: %w", spec, err)
		}
		cfg.Regions = append(cfg.Regions, exclude.Record{
			Type: "rectangular",
			X1:   vals[0], Y1: vals[1], X2: vals[2], Y2: vals[3],
		})
	}
	for _, spec := range circFlags {
		vals, err := splitFloats(spec, 3)
		if err != nil {
			return nil, fmt.Errorf("invalid --circle value %q: %w", spec, err)
		}
		cfg.Regions = append(cfg.Regions, exclude.Record{
			Type: "circular",
			CX:   vals[0], CY: vals[1], R: vals[2],
		})
	}
	return cfg, nil
}

func splitFloats(spec string, count int) ([]float64, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != count {
		return nil, fmt.Errorf("expected %d comma-separated values", count)
	}
	vals := make([]float64, count)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// runFiltered loads the configuration, builds the filter and runs the input
// file (or stdin for "-") through it into buf.
func runFiltered(input string, buf *bytes.Buffer) (*exclude.Filter, int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}

	filter, err := cfg.BuildFilter(newLogger())
	if err != nil {
		return nil, 0, err
	}

	var in io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()
		in = f
	}

	counted := &countingReader{r: in}
	if err := filter.ProcessStream(counted, buf); err != nil {
		return nil, 0, err
	}
	return filter, counted.lines, nil
}

type countingReader struct {
	r     io.Reader
	lines int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.lines += bytes.Count(p[:n], []byte{'\n'})
	return n, err
}

var rootCmd = &cobra.Command{
	Use:           "gcodefilter",
	Short:         "Suppress G-code inside user-defined exclusion regions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var filterCmd = &cobra.Command{
	Use:   "filter <input>",
	Short: "Filter a G-code file, writing the result to a file or stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var buf bytes.Buffer
		_, inLines, err := runFiltered(args[0], &buf)
		if err != nil {
			return err
		}

		outLines := bytes.Count(buf.Bytes(), []byte{'\n'})
		if outputFile != "" {
			if err := os.WriteFile(outputFile, buf.Bytes(), 0644); err != nil {
				return err
			}
		}
		if toStdout || outputFile == "" {
			if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
				return err
			}
		}

		color.New(color.FgGreen).Fprintf(os.Stderr,
			"filtered %d lines to %d lines\n", inLines, outLines)
		return nil
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream <input>",
	Short: "Filter a G-code file and stream it to a printer over serial",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if device == "" {
			return fmt.Errorf("a serial device is required")
		}

		var buf bytes.Buffer
		if _, _, err := runFiltered(args[0], &buf); err != nil {
			return err
		}

		var lines []string
		for _, line := range strings.Split(buf.String(), "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}

		s := streaming.NewMarlinStreamer(newLogger())
		if err := s.Connect(device, baud); err != nil {
			return fmt.Errorf("unable to connect to device: %w", err)
		}

		startTime := time.Now()
		pBar := pb.StartNew(len(lines))
		pBar.Format("[=> ]")

		progress := make(chan int)
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, os.Interrupt)
		go func() {
			for range sigchan {
				fmt.Fprintf(os.Stderr, "\nStopping...\n")
				s.Stop()
				os.Exit(7)
			}
		}()

		errchan := make(chan error, 1)
		go func() {
			errchan <- s.Send(lines, progress)
		}()
		for range progress {
			pBar.Increment()
		}
		if err := <-errchan; err != nil {
			s.Stop()
			return err
		}
		pBar.Finish()
		s.Stop()

		color.New(color.FgGreen).Fprintf(os.Stderr,
			"streamed %d lines in %s\n", len(lines), time.Since(startTime).Round(time.Second))
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().StringArrayVar(&rectFlags, "rect", nil,
		"Rectangular exclusion region as x1,y1,x2,y2 (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&circFlags, "circle", nil,
		"Circular exclusion region as cx,cy,r (repeatable)")

	filterCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	filterCmd.Flags().BoolVar(&toStdout, "stdout", false, "Also write the result to stdout")

	streamCmd.Flags().StringVarP(&device, "device", "d", "", "Serial device for the printer")
	streamCmd.Flags().IntVarP(&baud, "baud", "b", 115200, "Serial baud rate")

	rootCmd.AddCommand(filterCmd, streamCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
