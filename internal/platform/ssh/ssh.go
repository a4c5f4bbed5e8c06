package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/edgefleet/internal/util/retry"
)

const (
	defaultPort           = 22
	defaultDialTimeout    = 30 * time.Second
	defaultConnectRetries = 3
	defaultConnectDelay   = 10 * time.Second
	defaultCommandRetries = 2
	defaultCommandDelay   = 5 * time.Second
)

// ErrNoAuthMethod is returned when a credential carries neither a password nor a key.
var ErrNoAuthMethod = errors.New("credential has no password or private key")

// errCommandFailed marks a non-zero exit so the command policy retries it.
var errCommandFailed = errors.New("command exited with non-zero status")

// Credential identifies the remote user and how it authenticates.
// Password and key may both be set; the key is offered first.
type Credential struct {
	Username   string
	Password   string
	KeyPath    string
	PrivateKey []byte
}

// Config holds executor configuration. Zero values fall back to defaults.
type Config struct {
	Port        int
	DialTimeout time.Duration

	// Connect governs dial + handshake attempts.
	Connect retry.Policy

	// Command governs re-execution of failed commands.
	Command retry.Policy

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used: fleet machines are
	// enrolled by address and password, without a known_hosts file.
	HostKeyCallback ssh.HostKeyCallback
}

// Executor opens authenticated sessions to remote hosts.
type Executor struct {
	config Config
}

// NewExecutor creates an executor, applying defaults to a copy of cfg.
func NewExecutor(cfg Config) *Executor {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Connect.MaxAttempts == 0 {
		cfg.Connect = retry.Fixed(defaultConnectRetries, defaultConnectDelay)
	}
	if cfg.Command.MaxAttempts == 0 {
		cfg.Command = retry.Fixed(defaultCommandRetries, defaultCommandDelay)
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // fleet hosts are enrolled without known host keys
	}
	return &Executor{config: cfg}
}

// Connect dials address (host or host:port) and authenticates with cred.
// Attempts follow the connect policy; exhaustion returns the last error.
func (e *Executor) Connect(ctx context.Context, address string, cred Credential) (*Session, error) {
	auth, err := authMethods(cred)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            auth,
		HostKeyCallback: e.config.HostKeyCallback,
		Timeout:         e.config.DialTimeout,
	}

	addr := e.hostPort(address)
	var client *ssh.Client

	err = e.config.Connect.Do(ctx, func(ctx context.Context) error {
		var dialErr error
		client, dialErr = dial(ctx, addr, clientConfig)
		return dialErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}

	return &Session{
		host:   addr,
		client: client,
		policy: e.config.Command,
	}, nil
}

func (e *Executor) hostPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(e.config.Port))
}

func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

func authMethods(cred Credential) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	key := cred.PrivateKey
	if len(key) == 0 && cred.KeyPath != "" {
		// #nosec G304
		data, err := os.ReadFile(cred.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key %s: %w", cred.KeyPath, err)
		}
		key = data
	}
	if len(key) > 0 {
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if cred.Password != "" {
		password := cred.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, ErrNoAuthMethod
	}
	return methods, nil
}

// Result is the outcome of the final attempt of a command.
// Err holds a transport failure; ExitCode is -1 when no status was received.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Summary returns the most useful diagnostic for a failed result.
func (r Result) Summary() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return fmt.Sprintf("exit %d: %s", r.ExitCode, s)
	}
	return fmt.Sprintf("exit %d", r.ExitCode)
}

// Session is an authenticated connection to one host.
type Session struct {
	host   string
	client *ssh.Client
	policy retry.Policy
}

// Host returns the host:port this session is connected to.
func (s *Session) Host() string {
	return s.host
}

// Execute runs command, retrying on non-zero exit or transport error.
// It always returns the final attempt's result; callers must check OK.
func (s *Session) Execute(ctx context.Context, command string) Result {
	var last Result

	_ = s.policy.Do(ctx, func(context.Context) error {
		last = s.run(command, nil)
		if last.Err != nil {
			return last.Err
		}
		if last.ExitCode != 0 {
			return errCommandFailed
		}
		return nil
	})

	return last
}

// Upload writes data to remotePath with the given mode. It is not retried.
func (s *Session) Upload(_ context.Context, remotePath string, data []byte, mode os.FileMode) error {
	cmd := fmt.Sprintf("cat > %s && chmod %o %s", Quote(remotePath), mode.Perm(), Quote(remotePath))
	res := s.run(cmd, data)
	if !res.OK() {
		return fmt.Errorf("failed to upload %s to %s: %s", remotePath, s.host, res.Summary())
	}
	return nil
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.client.Close()
}

func (s *Session) run(command string, stdin []byte) Result {
	session, err := s.client.NewSession()
	if err != nil {
		return Result{ExitCode: -1, Err: fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)}
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	err = session.Run(command)
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
	default:
		res.ExitCode = -1
		res.Err = fmt.Errorf("command failed on %s: %w", s.host, err)
	}
	return res
}

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
