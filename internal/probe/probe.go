// Package probe ships a script to a remote host over an already-acquired
// SSH client, executes it, and parses its single-line JSON-object stdout
// into a typed record. Grounded on collector/remote_probe.py, reusing the
// sshpool session shape established for C1.
package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	// DefaultTimeout bounds the remote execution step; the copy and cleanup
	// steps are not bounded by it.
	DefaultTimeout = 10 * time.Second

	remoteTempDir = "/tmp"
)

// Script is a probe's remote payload: its local source text and the mode
// argument passed to force a single JSON-object output.
type Script struct {
	Name     string // used to derive the remote temp filename
	Source   string
	ModeFlag string
}

// Runner executes Scripts against a live *ssh.Client. It has no state of
// its own; callers acquire a client from the connection pool and pass it in
// per-probe, so a single Runner is safely reused across hosts.
type Runner struct {
	Timeout time.Duration
}

// NewRunner constructs a Runner with the default 10s timeout.
func NewRunner() *Runner {
	return &Runner{Timeout: DefaultTimeout}
}

// Result is the outcome of one probe run: either raw JSON bytes ready for
// the caller's typed parse, or a non-nil Err describing why none was
// produced. The probe never panics; failure is always represented here.
type Result struct {
	JSON []byte
	Err  error
}

// Run copies script to a remote temp path, executes it, reads stdout,
// removes the temp file on every exit path, and validates that stdout looks
// like a JSON object. It does not unmarshal — callers decode into their own
// identification/metrics struct.
func (r *Runner) Run(client *ssh.Client, script Script) Result {
	remotePath := fmt.Sprintf("%s/.optilab_probe_%s.sh", remoteTempDir, script.Name)

	// Cleanup must run regardless of how the copy or execution below turns
	// out; a failed copy can still leave a partial file behind.
	defer r.cleanup(client, remotePath)

	if err := r.copyScript(client, remotePath, script.Source); err != nil {
		return Result{Err: fmt.Errorf("probe: copy script: %w", err)}
	}

	stdout, err := r.execScript(client, remotePath, script.ModeFlag)
	if err != nil {
		return Result{Err: fmt.Errorf("probe: exec: %w", err)}
	}

	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Result{Err: fmt.Errorf("probe: output does not start with '{': %q", truncate(trimmed, 80))}
	}

	var js json.RawMessage
	if err := json.Unmarshal(trimmed, &js); err != nil {
		return Result{Err: fmt.Errorf("probe: malformed JSON: %w", err)}
	}

	return Result{JSON: trimmed}
}

func (r *Runner) copyScript(client *ssh.Client, remotePath, source string) error {
	sess, err := client.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return err
	}

	cmd := fmt.Sprintf("cat > %s && chmod +x %s", remotePath, remotePath)
	if err := sess.Start(cmd); err != nil {
		return err
	}
	if _, err := stdin.Write([]byte(source)); err != nil {
		return err
	}
	if err := stdin.Close(); err != nil {
		return err
	}
	return sess.Wait()
}

func (r *Runner) execScript(client *ssh.Client, remotePath, modeFlag string) ([]byte, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	cmd := fmt.Sprintf("bash %s %s", remotePath, modeFlag)
	done := make(chan error, 1)
	if err := sess.Start(cmd); err != nil {
		return nil, err
	}
	go func() { done <- sess.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("remote exit: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), nil
	case <-time.After(r.Timeout):
		_ = sess.Signal(ssh.SIGKILL)
		return nil, fmt.Errorf("timed out after %s", r.Timeout)
	}
}

func (r *Runner) cleanup(client *ssh.Client, remotePath string) {
	sess, err := client.NewSession()
	if err != nil {
		return
	}
	defer sess.Close()
	_ = sess.Run(fmt.Sprintf("rm -f %s", remotePath))
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
