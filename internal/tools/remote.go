package tools

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/karsov/opsloop/internal/risk"
)

const (
	sshDialTimeout    = 15 * time.Second
	sshCommandTimeout = 2 * time.Minute
)

// SSHPool caches live SSH connections keyed by host:port:user. Reuse and
// eviction are guarded by a mutex; a dead connection is dialed fresh on the
// next use.
type SSHPool struct {
	mu      sync.Mutex
	conns   map[string]*ssh.Client
	keyFile string
}

// NewSSHPool constructs a pool authenticating with the given private key
// file.
func NewSSHPool(keyFile string) *SSHPool {
	return &SSHPool{
		conns:   make(map[string]*ssh.Client),
		keyFile: keyFile,
	}
}

// Get returns a pooled connection for host:port:user, dialing when absent.
func (p *SSHPool) Get(host string, port int, user string) (*ssh.Client, error) {
	key := fmt.Sprintf("%s:%d:%s", host, port, user)

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.conns[key]; ok {
		// A dead connection is evicted and redialed.
		if _, _, err := client.SendRequest("keepalive@opsloop", true, nil); err == nil {
			return client, nil
		}
		_ = client.Close()
		delete(p.conns, key)
	}

	client, err := p.dial(host, port, user)
	if err != nil {
		return nil, err
	}
	p.conns[key] = client
	return client, nil
}

func (p *SSHPool) dial(host string, port int, user string) (*ssh.Client, error) {
	keyData, err := os.ReadFile(p.keyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key: %w", err)
	}
	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // hosts are operator-supplied
		Timeout:         sshDialTimeout,
	}
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return client, nil
}

// Close shuts every pooled connection down.
func (p *SSHPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, client := range p.conns {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Str("conn", key).Msg("ssh pool: close failed")
		}
		delete(p.conns, key)
	}
}

// RemoteCommandTool runs a command on a remote host over SSH. Commands are
// risk-gated exactly like local ones.
type RemoteCommandTool struct {
	classifier *risk.Classifier
	pool       *SSHPool
}

// NewRemoteCommandTool constructs the remote command tool over a shared
// connection pool.
func NewRemoteCommandTool(classifier *risk.Classifier, pool *SSHPool) *RemoteCommandTool {
	return &RemoteCommandTool{classifier: classifier, pool: pool}
}

func (t *RemoteCommandTool) Name() string { return "remote_command" }

func (t *RemoteCommandTool) Description() string {
	return "Run a shell command on a remote host over SSH. Args: host (string), user (string), command (string), port (number, optional)."
}

func (t *RemoteCommandTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	host, err := StringArg(args, "host")
	if err != nil {
		return "", err
	}
	user, err := StringArg(args, "user")
	if err != nil {
		return "", err
	}
	command, err := StringArg(args, "command")
	if err != nil {
		return "", err
	}
	port := 22
	if v, ok := args["port"].(float64); ok && v > 0 {
		port = int(v)
	}

	assessment := t.classifier.Validate(command)
	if !assessment.Allowed || assessment.RequiresApproval {
		return "", &BlockedError{Assessment: assessment}
	}

	client, err := t.pool.Get(host, port, user)
	if err != nil {
		return "", err
	}
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	runCtx, cancel := context.WithTimeout(ctx, sshCommandTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- session.Run(assessment.SanitizedCommand) }()
	select {
	case <-runCtx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("remote command timed out on %s", host)
	case err := <-done:
		if err != nil {
			detail := strings.TrimSpace(stderr.String())
			return "", fmt.Errorf("remote command failed: %w: %s", err, detail)
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}
