package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/gpuprobe/internal/gpu"
)

func apiClient() *http.Client {
	socketPath := defaultSocketPath()
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", socketPath)
			},
		},
	}
}

func apiGet(path string, v any) error {
	resp, err := apiClient().Get("http://gpuprobe" + path)
	if err != nil {
		return fmt.Errorf("connecting to server: %w (is gpuprobe serve running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show GPU stats from the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		var resp gpu.Response
		if err := apiGet("/v1/gpu", &resp); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(resp)
		}
		renderResponse(os.Stdout, resp)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the probe response as JSON")
	rootCmd.AddCommand(statusCmd)
}
