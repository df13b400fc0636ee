// Package perp hedges the LP token0 exposure with a short on a perpetuals
// venue. Orders go through an external CLI spoken to as JSON over stdio;
// account positions arrive over a WebSocket stream.
package perp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Result is the CLI response envelope.
type Result struct {
	OK            bool            `json:"ok"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         string          `json:"error,omitempty"`
	StatusCode    int             `json:"status_code,omitempty"`
	RetryAttempts int             `json:"retry_attempts,omitempty"`
}

// Err converts a failed envelope into an error.
func (r *Result) Err(command string) error {
	if r.OK {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = "unknown error"
	}
	if r.StatusCode != 0 {
		return fmt.Errorf("%s: %s (status %d)", command, msg, r.StatusCode)
	}
	return fmt.Errorf("%s: %s", command, msg)
}

// Runner executes one venue command.
type Runner interface {
	Run(ctx context.Context, command string, payload any) (*Result, error)
}

// CLIClient runs `<python> <script> <command>` with the payload on stdin and
// parses the JSON envelope from stdout.
type CLIClient struct {
	python string
	script string
	env    []string
}

// NewCLIClient creates a client. env is appended to the process environment.
func NewCLIClient(python, script string, env ...string) *CLIClient {
	if python == "" {
		python = "python3"
	}
	return &CLIClient{python: python, script: script, env: env}
}

func (c *CLIClient) Run(ctx context.Context, command string, payload any) (*Result, error) {
	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", command, err)
	}

	cmd := exec.CommandContext(ctx, c.python, c.script, command)
	cmd.Stdin = bytes.NewReader(body)
	cmd.Env = append(os.Environ(), c.env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "extended cli returned empty output"
		}
		if runErr != nil {
			return nil, fmt.Errorf("%s: %s: %w", command, msg, runErr)
		}
		return nil, errors.New(msg)
	}

	var res Result
	if err := json.Unmarshal(out, &res); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("parse %s output: %s", command, msg)
		}
		return nil, fmt.Errorf("parse %s output: %w", command, err)
	}
	return &res, nil
}

// text accepts a JSON string, number or bool and keeps its textual form.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(data)
	return nil
}
