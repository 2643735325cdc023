package sshpool

import (
	"time"

	"golang.org/x/crypto/ssh"
)

// session wraps a live *ssh.Client with the bookkeeping the pool needs to
// decide whether it is still worth reusing.
type session struct {
	client   *ssh.Client
	lastUsed time.Time
}

// alive reports whether the underlying transport still looks usable. The
// Python original inspects paramiko's transport.is_active(); golang.org/x/crypto/ssh
// has no direct equivalent, so we probe it the idiomatic Go way: open and
// immediately close a throwaway session. A failure here means the
// connection is dead and must be evicted.
func (s *session) alive() bool {
	if s.client == nil {
		return false
	}
	sess, err := s.client.NewSession()
	if err != nil {
		return false
	}
	_ = sess.Close()
	return true
}

func (s *session) close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}
