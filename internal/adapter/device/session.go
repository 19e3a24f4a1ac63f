package device

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/semmidev/netvault/internal/domain"
)

type sshSession struct {
	client  *ssh.Client
	timeout time.Duration
}

// Run executes one command in a fresh exec channel. The SSH protocol has no
// mid-command cancellation, so on timeout the underlying connection is torn
// down to unblock the read.
func (s *sshSession) Run(ctx context.Context, command string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: open session: %v", domain.ErrConnect, err)
	}
	defer session.Close()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)

	go func() {
		output, err := session.CombinedOutput(command)
		done <- result{output, err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("run %q: %w", command, r.err)
		}
		return string(r.output), nil
	case <-timer.C:
		s.client.Close()
		return "", fmt.Errorf("%w: %q after %s", domain.ErrCommandTimeout, command, s.timeout)
	case <-ctx.Done():
		s.client.Close()
		return "", ctx.Err()
	}
}

func (s *sshSession) Close() error {
	return s.client.Close()
}
