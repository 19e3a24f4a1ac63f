package device

import (
	"context"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/semmidev/netvault/internal/config"
	"github.com/semmidev/netvault/internal/domain"
)

// SSHDialer opens password-authenticated shell sessions on network devices.
type SSHDialer struct {
	config *config.BackupConfig
}

func NewSSHDialer(cfg *config.BackupConfig) *SSHDialer {
	return &SSHDialer{config: cfg}
}

func (d *SSHDialer) Dial(ctx context.Context, target domain.Target) (domain.Session, error) {
	clientConfig := &ssh.ClientConfig{
		User: target.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(target.Password),
			ssh.KeyboardInteractive(keyboardInteractive(target.Password)),
		},
		// Device fleets rotate host keys on RMA; pinning them is managed
		// out of band, not by the backup engine.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.config.ConnectTimeout,
	}

	addr := net.JoinHostPort(target.Host, fmt.Sprintf("%d", target.Port))

	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, classifyDialError(addr, err)
	}

	return &sshSession{client: client, timeout: d.config.CommandTimeout}, nil
}

// keyboardInteractive answers every challenge with the password. Many
// network operating systems only advertise keyboard-interactive auth.
func keyboardInteractive(password string) ssh.KeyboardInteractiveChallenge {
	return func(name, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	}
}

func classifyDialError(addr string, err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") ||
		strings.Contains(err.Error(), "password rejected") {
		return fmt.Errorf("%w: %s: %v", domain.ErrAuth, addr, err)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("%w: %s: connection timed out", domain.ErrConnect, addr)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrConnect, addr, err)
}
