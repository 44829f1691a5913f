package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API credentials",
		Long:  "Store, clear and inspect the API token and URL used by the newsrag CLI",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var apiKey string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Long:  "Store the API token and URL in the global config (~/.config/newsrag/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter API token: ")
				input, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read API token: %w", err)
				}
				apiKey = input
			}
			return runAuthLogin(cmd.OutOrStdout(), apiKey, apiURL)
		},
	}

	cmd.Flags().StringVar(&apiKey, "token", "", "API token (NEWSRAG_API_TOKEN of the server)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Long:  "Remove stored credentials from the global config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(cmd.OutOrStdout())
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where credentials come from",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAuthStatus(cmd.OutOrStdout(), outputJSON)
		},
	}
}

func runAuthLogin(out io.Writer, apiKey, apiURL string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" || strings.ContainsAny(apiKey, " \t") {
		return fmt.Errorf("invalid API token: must be a single non-empty word")
	}

	config := &GlobalConfig{
		APIKey: apiKey,
		APIURL: apiURL,
	}

	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintln(out, "Credentials saved")
	return nil
}

func runAuthLogout(out io.Writer) error {
	if err := DeleteGlobalConfig(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	fmt.Fprintln(out, "Credentials removed")
	return nil
}

func runAuthStatus(out io.Writer, outputJSON bool) error {
	source, apiKey, apiURL := GetCredentialSource("", "")

	if outputJSON {
		status := map[string]interface{}{
			"configured": source != SourceNone,
			"source":     string(source),
		}
		if source != SourceNone {
			status["api_key"] = maskAPIKey(apiKey)
			status["api_url"] = apiURL
		}

		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if source == SourceNone {
		fmt.Fprintln(out, "No credentials configured")
		fmt.Fprintln(out, "Run 'newsrag auth login' or set NEWSRAG_API_KEY and NEWSRAG_API_URL")
		return nil
	}

	fmt.Fprintf(out, "Source: %s\n", source)
	fmt.Fprintf(out, "API Key: %s\n", maskAPIKey(apiKey))
	fmt.Fprintf(out, "API URL: %s\n", apiURL)
	return nil
}

func maskAPIKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
