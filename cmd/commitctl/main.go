// Package main implements the commitctl CLI for manual operations against a
// running commitd server, plus local detection helpers.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/commitd/internal/detector"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
	"github.com/fyrsmithlabs/commitd/internal/timeparse"
)

var (
	// serverURL is the base URL for the commitd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "commitctl",
	Short: "CLI for commitd operations",
	Long: `commitctl is a command-line interface for the commitment pipeline.
It can run detection locally over a transcript, resolve time phrases, and
talk to a running commitd server.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8085", "commitd server URL")
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(resolveTimeCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(healthCmd)
}

// detectCmd runs commitment detection locally over a transcript.
var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Detect commitments in a transcript file or stdin",
	Long: `Detect commitments in a transcript using the built-in pattern sets.

Examples:
  # Detect from a file
  commitctl detect call.txt

  # Detect from stdin
  cat call.txt | commitctl detect -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	transcript, err := readInput(args)
	if err != nil {
		return err
	}

	catalog, err := patterns.NewDefaultCatalog(logging.Nop())
	if err != nil {
		return fmt.Errorf("register default patterns: %w", err)
	}
	det := detector.New(catalog, timeparse.NewResolver(timeparse.DefaultBusinessHours()),
		logging.Nop(), detector.DefaultConfig())

	res := det.Detect(string(transcript))
	if len(res.Commitments) == 0 {
		fmt.Println("No commitments detected.")
		return nil
	}

	out, err := json.MarshalIndent(res.Commitments, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// resolveTimeCmd resolves a natural-language time phrase.
var resolveTimeCmd = &cobra.Command{
	Use:   "resolve-time <phrase>",
	Short: "Resolve a time phrase to a due timestamp",
	Long: `Resolve a natural-language time phrase against the current time.

Examples:
  commitctl resolve-time "tomorrow"
  commitctl resolve-time "by 3:30pm"
  commitctl resolve-time "within 2 business days"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver := timeparse.NewResolver(timeparse.DefaultBusinessHours())
		parsed := resolver.Resolve(args[0], time.Now())
		fmt.Printf("Due:            %s\n", parsed.Due.Format(time.RFC3339))
		fmt.Printf("Confidence:     %.2f\n", parsed.Confidence)
		fmt.Printf("Specific time:  %v\n", parsed.IsSpecific)
		fmt.Printf("Business hours: %v\n", parsed.BusinessHours)
		return nil
	},
}

// patternsCmd lists the built-in extraction patterns.
var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the built-in extraction patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := patterns.NewDefaultCatalog(logging.Nop())
		if err != nil {
			return err
		}
		for _, p := range catalog.All() {
			approval := ""
			if p.RequiresApproval {
				approval = " (approval)"
			}
			fmt.Printf("%-8s %-20s %s%s\n", p.System, p.Category, p.BasePriority, approval)
		}
		return nil
	},
}

// processCmd asks the server to process a call.
var processCmd = &cobra.Command{
	Use:   "process <call-id>",
	Short: "Queue a call for processing on the commitd server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := json.Marshal(map[string]string{"call_id": args[0]})
		if err != nil {
			return err
		}
		resp, err := httpClient().Post(serverURL+"/webhooks/calls", "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		defer resp.Body.Close()
		return printResponse(resp)
	},
}

// taskCmd fetches a task status record from the server.
var taskCmd = &cobra.Command{
	Use:   "task <task-id>",
	Short: "Show a task's status record and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := httpClient().Get(serverURL + "/api/v1/tasks/" + args[0])
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		defer resp.Body.Close()
		return printResponse(resp)
	},
}

// healthCmd checks server health.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check commitd server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := httpClient().Get(serverURL + "/health")
		if err != nil {
			return fmt.Errorf("get health: %w", err)
		}
		defer resp.Body.Close()
		return printResponse(resp)
	},
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	fmt.Println(string(bytes.TrimSpace(body)))
	return nil
}
