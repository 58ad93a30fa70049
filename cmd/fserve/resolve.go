package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fserve/internal/request"
	"fserve/internal/response"
)

var (
	resolveRoot string
	resolveJSON bool
	resolveBody bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Show how a request path would be answered",
	Long: `Run the response builder for a request path without starting a server
and print the classification and response head.

Examples:
  fserve resolve /index.html
  fserve resolve '/%2e%2e/etc/passwd' --root ./public
  fserve resolve / --body`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveRoot, "root", ".", "Root directory")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Output as JSON")
	resolveCmd.Flags().BoolVar(&resolveBody, "body", false, "Also print the response body")
	rootCmd.AddCommand(resolveCmd)
}

// ResolveResultCLI is the JSON form of a resolve result.
type ResolveResultCLI struct {
	RequestPath   string `json:"requestPath"`
	ResolvedPath  string `json:"resolvedPath"`
	Kind          string `json:"kind"`
	Escaped       bool   `json:"escaped"`
	Status        int    `json:"status"`
	ContentType   string `json:"contentType,omitempty"`
	ContentLength int    `json:"contentLength"`
	Head          string `json:"head"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	resp, err := resolvePath(resolveRoot, args[0])
	if err != nil {
		return err
	}
	return writeResolve(cmd.OutOrStdout(), resp, resolveJSON, resolveBody)
}

func resolvePath(root, path string) (*response.Response, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	req := &request.Request{Target: path, Path: path, Version: request.HTTP11}
	return response.Build(root, req)
}

func writeResolve(w io.Writer, resp *response.Response, asJSON, withBody bool) error {
	if asJSON {
		data, err := json.MarshalIndent(ResolveResultCLI{
			RequestPath:   resp.RequestPath,
			ResolvedPath:  resp.ResolvedPath,
			Kind:          resp.Kind.String(),
			Escaped:       resp.Escaped,
			Status:        resp.Status.Code(),
			ContentType:   resp.ContentType,
			ContentLength: resp.ContentLength,
			Head:          string(resp.Head()),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "Request:  %s\n", resp.RequestPath)
	fmt.Fprintf(w, "Resolved: %s\n", resp.ResolvedPath)
	fmt.Fprintf(w, "Kind:     %s\n", resp.Kind)
	if resp.Escaped {
		fmt.Fprintln(w, "Escaped:  yes (outside root)")
	}
	fmt.Fprintln(w)
	if _, err := w.Write(resp.Head()); err != nil {
		return err
	}
	if withBody {
		if _, err := w.Write(resp.Body()); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}
