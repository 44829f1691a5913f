package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// Source is a retrieved chunk an answer was grounded on.
type Source struct {
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	Offset     int    `json:"offset"`
	Text       string `json:"text"`
}

// Answer is the API answer payload.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// IndexStatus is the API index payload.
type IndexStatus struct {
	Loaded     bool   `json:"loaded"`
	Entries    int    `json:"entries"`
	Dimensions int    `json:"dimensions"`
	Provider   string `json:"provider,omitempty"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{"question": strings.Join(args, " ")}
			if topK > 0 {
				body["top_k"] = topK
			}
			return postAnswer(cmd, "/query", body)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (server default when 0)")

	return cmd
}

// OutlookCmd creates the outlook command.
func OutlookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outlook <symbol>",
		Short: "Write an outlook report for a stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAnswer(cmd, "/reports/outlook", map[string]string{"symbol": args[0]})
		},
	}
}

// CompeteCmd creates the compete command.
func CompeteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compete <symbol> <competitor>",
		Short: "Write a report on the competition between two stocks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postAnswer(cmd, "/reports/competitor", map[string]string{
				"symbol":     args[0],
				"competitor": args[1],
			})
		},
	}
}

// StatusCmd creates the status command.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the index served by the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/index")
			if err != nil {
				return err
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				fmt.Fprintln(cmd.OutOrStdout(), string(resp.Data))
				return nil
			}

			var status IndexStatus
			if err := json.Unmarshal(resp.Data, &status); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			printStatus(cmd.OutOrStdout(), &status)
			return nil
		},
	}
}

func postAnswer(cmd *cobra.Command, path string, body interface{}) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post(cmd.Context(), path, body)
	if err != nil {
		return err
	}

	outputJSON, _ := cmd.Flags().GetBool("output")
	if outputJSON {
		fmt.Fprintln(cmd.OutOrStdout(), string(resp.Data))
		return nil
	}

	var answer Answer
	if err := json.Unmarshal(resp.Data, &answer); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	printAnswer(cmd.OutOrStdout(), &answer)
	return nil
}

func printAnswer(out io.Writer, answer *Answer) {
	fmt.Fprintln(out, strings.TrimSpace(answer.Answer))
	if len(answer.Sources) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:")
	for i, src := range answer.Sources {
		fmt.Fprintf(out, "  %d. %s (chunk %d)\n", i+1, src.Source, src.ChunkIndex)
	}
}

func printStatus(out io.Writer, status *IndexStatus) {
	if !status.Loaded {
		fmt.Fprintln(out, "No index loaded")
		return
	}
	fmt.Fprintf(out, "Entries: %d\n", status.Entries)
	fmt.Fprintf(out, "Dimensions: %d\n", status.Dimensions)
	if status.Provider != "" {
		fmt.Fprintf(out, "Provider: %s\n", status.Provider)
	}
}
