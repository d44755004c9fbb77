package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittodav/internal/cli/health"
	"github.com/marmos91/dittodav/internal/cli/output"
	"github.com/marmos91/dittodav/internal/cli/timeutil"
)

var (
	statusOutput string
	statusURL    string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of a running DittoDAV server.

This command calls the server's /health endpoint and displays its
status, start time and uptime.

Examples:
  # Check a local server on the default port
  dittodav status

  # Check a server elsewhere
  dittodav status --url http://dav.internal:8080

  # Output as JSON
  dittodav status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:8080", "Base URL of the server")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running   bool   `json:"running" yaml:"running"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Message   string `json:"message" yaml:"message"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
}

// Headers implements output.TableRenderer.
func (s ServerStatus) Headers() []string {
	return []string{"Status", "Started", "Uptime", "Message"}
}

// Rows implements output.TableRenderer.
func (s ServerStatus) Rows() [][]string {
	state := "stopped"
	switch {
	case s.Running && s.Healthy:
		state = "running"
	case s.Running:
		state = "unhealthy"
	}
	return [][]string{{state, s.StartedAt, s.Uptime, s.Message}}
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := fetchStatus(&http.Client{Timeout: 2 * time.Second}, statusURL)
	return output.Print(os.Stdout, format, status)
}

func fetchStatus(client *http.Client, baseURL string) ServerStatus {
	status := ServerStatus{Message: "Server is not running"}

	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/health")
	if err != nil {
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.Running = true
	var healthResp health.Response
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		status.Message = "Server is running but health response invalid"
		return status
	}

	status.Healthy = healthResp.Healthy()
	if healthResp.Data.StartedAt != "" {
		status.StartedAt = timeutil.FormatTime(healthResp.Data.StartedAt)
		status.Uptime = timeutil.FormatUptime(healthResp.Data.UptimeSec)
	}
	if status.Healthy {
		status.Message = "Server is running and healthy"
	} else {
		status.Message = fmt.Sprintf("Server is running but unhealthy: %s", healthResp.Error)
	}
	return status
}
