package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noesis-run/noesis/internal/output"
)

// outputFormat is set once from the --format global flag in main() before
// any command runs; it has no concurrent writers.
var outputFormat = output.FormatJSON

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *apiClient) request(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		return data, resp.StatusCode, fmt.Errorf("%s %s: %s (status %d)", method, path, strings.TrimSpace(string(data)), resp.StatusCode)
	}
	return data, resp.StatusCode, nil
}

// prettyPrint renders a JSON response body in the CLI's configured output
// format (json by default, yaml with --format yaml).
func prettyPrint(data []byte) {
	if len(data) == 0 {
		fmt.Println("(empty)")
		return
	}
	if outputFormat == output.FormatJSON {
		var dst bytes.Buffer
		if err := json.Indent(&dst, data, "", "  "); err != nil {
			fmt.Println(string(data))
			return
		}
		fmt.Println(dst.String())
		return
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		fmt.Println(string(data))
		return
	}
	rendered, err := output.RenderString(generic, outputFormat)
	if err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(rendered)
}

func parseJSONMap(input string) (map[string]any, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(input), &result); err != nil {
		return nil, err
	}
	return result, nil
}
