package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karsov/opsloop/internal/risk"
)

const defaultCommandTimeout = 2 * time.Minute

// CommandTool runs a shell command on the local host. Every command passes
// through the risk classifier first; a refused command raises BlockedError.
type CommandTool struct {
	classifier *risk.Classifier
	timeout    time.Duration
	workDir    string
}

// NewCommandTool constructs the local command tool.
func NewCommandTool(classifier *risk.Classifier, workDir string) *CommandTool {
	return &CommandTool{
		classifier: classifier,
		timeout:    defaultCommandTimeout,
		workDir:    workDir,
	}
}

func (t *CommandTool) Name() string { return "command" }

func (t *CommandTool) Description() string {
	return "Run a shell command on the local host. Args: command (string)."
}

func (t *CommandTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	command, err := StringArg(args, "command")
	if err != nil {
		return "", err
	}

	assessment := t.classifier.Validate(command)
	if !assessment.Allowed {
		return "", &BlockedError{Assessment: assessment}
	}
	if assessment.RequiresApproval {
		// Approval happens outside this process; refuse and signal it.
		return "", &BlockedError{Assessment: assessment}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", assessment.SanitizedCommand)
	cmd.Dir = t.workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("command", assessment.SanitizedCommand).Msg("command tool: run")
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("command failed: %w: %s", err, detail)
	}
	return strings.TrimSpace(stdout.String()), nil
}
