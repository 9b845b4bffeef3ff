package main

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/Artemis1799/Ody-stras-sub001/internal/client"
	"github.com/Artemis1799/Ody-stras-sub001/internal/watch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var (
		wsURL       string
		controlPort int
		style       string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow transfers from the terminal",
		Long: `Connect to a relay as an observer and show transfers as they arrive.

Status and flush go through the control endpoint on the same host.

Examples:
  relay watch
  relay watch --url ws://192.168.1.20:8765/ws
  relay watch --control-port 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := client.NewWSClient(wsURL)
			var httpClient *client.HTTPClient
			if controlPort > 0 {
				httpClient = client.NewHTTPClient(controlBase(wsURL, controlPort))
			}

			p := tea.NewProgram(watch.New(ws, httpClient, watch.Options{GlamourStyle: style}), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&wsURL, "url", "u", "ws://127.0.0.1:8765/ws", "WebSocket URL of the relay")
	cmd.Flags().IntVar(&controlPort, "control-port", 8766, "Control port on the relay host, 0 to skip it")
	cmd.Flags().StringVar(&style, "style", "dark", "Summary style (dark, light, notty)")

	return cmd
}

// controlBase converts ws://host:8765/ws into http://host:port.
func controlBase(wsURL string, port int) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Hostname() == "" {
		return "http://127.0.0.1:" + strconv.Itoa(port)
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(u.Hostname(), strconv.Itoa(port)))
}
