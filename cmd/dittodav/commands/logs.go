package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
	logsMethod string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show server logs",
	Long: `Show the DittoDAV server log file named by logging.output.

Both the text and json log formats are understood. Logging to stdout or
stderr leaves nothing to read; point logging.output at a file instead.

Examples:
  # Show the last 100 lines
  dittodav logs

  # Show only MOVE requests from the last hour and keep watching
  dittodav logs --method MOVE --since 2026-01-02T15:04:05Z -f`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show (0 for all)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339)")
	logsCmd.Flags().StringVar(&logsMethod, "method", "", "Only show lines for this WebDAV method")
}

// logFilter selects log lines by time and request method.
type logFilter struct {
	since  time.Time
	method string
}

func (f logFilter) match(line string) bool {
	if !f.since.IsZero() {
		ts, ok := extractTimestamp(line)
		if ok && ts.Before(f.since) {
			return false
		}
	}
	if f.method != "" {
		m := strings.ToUpper(f.method)
		if !strings.Contains(line, " "+logger.KeyMethod+"="+m) &&
			!strings.Contains(line, `"`+logger.KeyMethod+`":"`+m+`"`) {
			return false
		}
	}
	return true
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	path := cfg.Logging.Output
	switch strings.ToLower(path) {
	case "", "stdout", "stderr":
		return fmt.Errorf("logs are written to %s; set logging.output to a file path to use this command", path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("log file not available: %w", err)
	}

	filter := logFilter{method: logsMethod}
	if logsSince != "" {
		filter.since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since timestamp (expected RFC3339): %w", err)
		}
	}

	if !logsFollow {
		return showLogs(cmd.OutOrStdout(), path, logsLines, filter)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return followLogs(ctx, cmd.OutOrStdout(), path, logsLines, filter)
}

// showLogs writes the last n matching lines of the file; n <= 0 writes all.
func showLogs(w io.Writer, path string, n int, filter logFilter) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var tail []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !filter.match(line) {
			continue
		}
		tail = append(tail, line)
		if n > 0 && len(tail) > n {
			tail = tail[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	for _, line := range tail {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// followLogs prints the tail of the file and then every line appended to it
// until ctx is done or the file is removed.
func followLogs(ctx context.Context, w io.Writer, path string, n int, filter logFilter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// The watch starts before the tail is read so no append is missed.
	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	var (
		reader  = bufio.NewReader(f)
		offset  int64
		partial string
		tail    []string
	)
	// readLines hands every complete line after the last one read to emit.
	readLines := func(emit func(string) error) error {
		for {
			chunk, err := reader.ReadString('\n')
			offset += int64(len(chunk))
			if err == io.EOF {
				partial += chunk
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read log file: %w", err)
			}
			line := strings.TrimRight(partial+chunk, "\r\n")
			partial = ""
			if !filter.match(line) {
				continue
			}
			if err := emit(line); err != nil {
				return err
			}
		}
	}
	writeLine := func(line string) error {
		_, err := fmt.Fprintln(w, line)
		return err
	}

	err = readLines(func(line string) error {
		tail = append(tail, line)
		if n > 0 && len(tail) > n {
			tail = tail[1:]
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, line := range tail {
		if err := writeLine(line); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Write):
				if info, err := f.Stat(); err == nil && info.Size() < offset {
					// Truncated in place.
					if _, err := f.Seek(0, io.SeekStart); err != nil {
						return fmt.Errorf("failed to rewind log file: %w", err)
					}
					reader.Reset(f)
					offset, partial = 0, ""
				}
				if err := readLines(writeLine); err != nil {
					return err
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

// extractTimestamp reads the time of a text or json log line.
func extractTimestamp(line string) (time.Time, bool) {
	if strings.HasPrefix(line, "[") && len(line) > len(logger.TextTimeLayout)+1 {
		ts, err := time.ParseInLocation(logger.TextTimeLayout, line[1:len(logger.TextTimeLayout)+1], time.Local)
		if err == nil {
			return ts, true
		}
	}

	if strings.HasPrefix(line, "{") {
		var rec struct {
			Time time.Time `json:"time"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err == nil && !rec.Time.IsZero() {
			return rec.Time, true
		}
	}
	return time.Time{}, false
}
