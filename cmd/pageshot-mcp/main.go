// Command pageshot-mcp exposes a running `pageshot serve` instance as MCP
// tools over stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/pageshot/models"
)

const pollInterval = 2 * time.Second

// apiClient talks to the pageshot HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	apiURL := os.Getenv("PAGESHOT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8090"
	}
	c := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("PAGESHOT_API_KEY"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	s := server.NewMCPServer(
		"pageshot",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	runTool := mcp.NewTool("run_verification",
		mcp.WithDescription("Run a page verification plan: open each page in a headless browser, wait until it is ready, check the expected elements are visible and save a screenshot. Returns the per-step outcome."),
		mcp.WithString("plan",
			mcp.Description("Built-in plan to run (default: 'integration'). Use list_plans to see them."),
		),
		mcp.WithString("base_url",
			mcp.Description("Server URL the plan's pages are resolved against, e.g. 'http://localhost:8000'"),
		),
		mcp.WithBoolean("text_snapshots",
			mcp.Description("Also write a Markdown rendition of each page next to its screenshot"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the run to finish (default: true). When false, returns the run ID at once."),
		),
	)
	s.AddTool(runTool, handleRun(c))

	getRunTool := mcp.NewTool("get_run",
		mcp.WithDescription("Get the status and report of a verification run."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Run ID returned by run_verification"),
		),
	)
	s.AddTool(getRunTool, handleGetRun(c))

	listPlansTool := mcp.NewTool("list_plans",
		mcp.WithDescription("List the built-in verification plans."),
	)
	s.AddTool(listPlansTool, handleListPlans(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request and decodes a 2xx JSON body into out. Error bodies are
// turned into errors carrying the API's code and message.
func (c *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e models.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != nil {
			return fmt.Errorf("%s: %s", e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// waitRun polls the run until it leaves the queued and running states or
// ctx is canceled.
func (c *apiClient) waitRun(ctx context.Context, id string) (*models.RunStatusResponse, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var status models.RunStatusResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+id, nil, &status); err != nil {
			return nil, err
		}
		if status.Status != models.JobQueued && status.Status != models.JobRunning {
			return &status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func handleRun(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := models.RunRequest{
			Plan:          request.GetString("plan", ""),
			BaseURL:       request.GetString("base_url", ""),
			TextSnapshots: request.GetBool("text_snapshots", false),
		}

		var created models.RunResponse
		if err := c.do(ctx, http.MethodPost, "/api/v1/runs", req, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}

		if !request.GetBool("wait", true) {
			return mcp.NewToolResultText(fmt.Sprintf("Run %s queued: plan %s, %d steps", created.ID, created.Plan, created.Steps)), nil
		}

		status, err := c.waitRun(ctx, created.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("waiting for run %s failed: %v", created.ID, err)), nil
		}
		return mcp.NewToolResultText(formatRun(status)), nil
	}
}

func handleGetRun(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		var status models.RunStatusResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+id, nil, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get run failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatRun(&status)), nil
	}
}

func handleListPlans(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var body struct {
			Plans []models.PlanInfo `json:"plans"`
		}
		if err := c.do(ctx, http.MethodGet, "/api/v1/plans", nil, &body); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list plans failed: %v", err)), nil
		}

		var sb strings.Builder
		for _, p := range body.Plans {
			fmt.Fprintf(&sb, "- %s (%d steps): %s\n", p.Name, p.Steps, p.Description)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// formatRun renders a run as plain text for the model.
func formatRun(s *models.RunStatusResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s: %s (plan %s)\n", s.ID, s.Status, s.Plan)
	if s.Error != nil {
		fmt.Fprintf(&sb, "Error: %s", s.Error.Code)
		if s.Error.Step != "" {
			fmt.Fprintf(&sb, " in step %q", s.Error.Step)
		}
		fmt.Fprintf(&sb, ": %s\n", s.Error.Message)
	}
	if s.Report == nil {
		return sb.String()
	}

	sb.WriteString("\n")
	for i, step := range s.Report.Steps {
		fmt.Fprintf(&sb, "[%d] %s: %s", i+1, step.Name, step.Outcome)
		if step.Screenshot != "" {
			fmt.Fprintf(&sb, " -> %s", step.Screenshot)
		}
		if step.Warning != "" {
			fmt.Fprintf(&sb, " (warning: %s)", step.Warning)
		}
		sb.WriteString("\n")
	}
	if s.Report.DiagnosticScreenshot != "" {
		fmt.Fprintf(&sb, "Error screenshot: %s\n", s.Report.DiagnosticScreenshot)
	}
	return sb.String()
}
