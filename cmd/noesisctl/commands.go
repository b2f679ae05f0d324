package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

func cmdVerify(ctx context.Context, c *apiClient) error {
	return runVerify(ctx, c, "/verify")
}

func cmdVerifyReadonly(ctx context.Context, c *apiClient) error {
	return runVerify(ctx, c, "/verify_readonly")
}

// runVerify maps spec.md §6.4's exit-code contract onto the CLI: 0 for a
// satisfied verification, 1 for any invariant violation or terminal
// organization status.
func runVerify(ctx context.Context, c *apiClient, path string) error {
	method := http.MethodGet
	if path == "/verify" {
		method = http.MethodPost
	}
	data, _, err := c.request(ctx, method, path, nil)
	if err != nil && data == nil {
		return err
	}
	prettyPrint(data)

	var result struct {
		Checks []struct {
			Satisfied bool `json:"satisfied"`
		} `json:"checks"`
	}
	if jsonErr := json.Unmarshal(data, &result); jsonErr != nil {
		return fmt.Errorf("decode verification result: %w", jsonErr)
	}
	for _, check := range result.Checks {
		if !check.Satisfied {
			return errors.New("verification failed")
		}
	}
	return nil
}

func cmdStatus(ctx context.Context, c *apiClient) error {
	data, _, err := c.request(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdVitals(ctx context.Context, c *apiClient) error {
	data, _, err := c.request(ctx, http.MethodGet, "/vitals", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdSessionStart(ctx context.Context, c *apiClient, args []string) error {
	if len(args) < 1 {
		return errors.New("session_start requires a partner label")
	}
	data, _, err := c.request(ctx, http.MethodPost, "/session/start", map[string]any{"partner": args[0]})
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdSessionEnd(ctx context.Context, c *apiClient) error {
	data, _, err := c.request(ctx, http.MethodPost, "/session/end", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdRecharge(ctx context.Context, c *apiClient, args []string) error {
	amount := 0.1
	if len(args) > 0 {
		parsed, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		amount = parsed
	}
	data, _, err := c.request(ctx, http.MethodPost, "/recharge", map[string]any{"amount": amount})
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdOpExec(ctx context.Context, c *apiClient, args []string) error {
	if len(args) < 1 {
		return errors.New("op_exec requires an operation id")
	}
	var params map[string]any
	if len(args) > 1 {
		parsed, err := parseJSONMap(args[1])
		if err != nil {
			return fmt.Errorf("invalid params json: %w", err)
		}
		params = parsed
	}
	data, _, err := c.request(ctx, http.MethodPost, "/op/"+args[0], params)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdAgentForceCycle(ctx context.Context, c *apiClient) error {
	data, _, err := c.request(ctx, http.MethodPost, "/agent/cycle", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdAgentWake(ctx context.Context, c *apiClient) error {
	data, _, err := c.request(ctx, http.MethodPost, "/agent/wake", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdAgentSleep(ctx context.Context, c *apiClient) error {
	data, _, err := c.request(ctx, http.MethodPost, "/agent/sleep", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdSnapshotCreate(ctx context.Context, c *apiClient, args []string) error {
	description := ""
	if len(args) > 0 {
		description = args[0]
	}
	data, _, err := c.request(ctx, http.MethodPost, "/snapshot", map[string]any{"description": description})
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdSnapshotList(ctx context.Context, c *apiClient) error {
	data, _, err := c.request(ctx, http.MethodGet, "/snapshot", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdSnapshotRestore(ctx context.Context, c *apiClient, args []string) error {
	if len(args) < 1 {
		return errors.New("snapshot_restore requires a snapshot id")
	}
	data, _, err := c.request(ctx, http.MethodPost, "/snapshot/"+args[0]+"/restore", nil)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}

func cmdMetaDefine(ctx context.Context, c *apiClient, args []string) error {
	if len(args) < 1 {
		return errors.New("meta_define requires a json request body")
	}
	return postJSONBody(ctx, c, "/meta/define", args[0])
}

func cmdMetaCompose(ctx context.Context, c *apiClient, args []string) error {
	if len(args) < 1 {
		return errors.New("meta_compose requires a json request body")
	}
	return postJSONBody(ctx, c, "/meta/compose", args[0])
}

func cmdMetaSpecialize(ctx context.Context, c *apiClient, args []string) error {
	if len(args) < 1 {
		return errors.New("meta_specialize requires a json request body")
	}
	return postJSONBody(ctx, c, "/meta/specialize", args[0])
}

func postJSONBody(ctx context.Context, c *apiClient, path, raw string) error {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	data, _, err := c.request(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	prettyPrint(data)
	return nil
}
