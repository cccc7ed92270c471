package shell

import (
	"fmt"
	"os"
)

// Session is the identity a shell presents: who is logged in and what
// machine it pretends to run on.
type Session struct {
	Username string
	Hostname string
	System   string
	Release  string
	Machine  string
}

// NewSession returns the identity of username on hostname.
func NewSession(username, hostname string) Session {
	return Session{
		Username: username,
		Hostname: hostname,
		System:   "Linux",
		Release:  "6.1.0-vshell",
		Machine:  "x86_64",
	}
}

// DefaultSession derives the user and host from the process environment.
func DefaultSession() Session {
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "user"
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}
	return NewSession(username, hostname)
}

// Prompt renders the prompt for the given working directory.
func (s Session) Prompt(cwd string) string {
	return fmt.Sprintf("%s@%s:%s$ ", s.Username, s.Hostname, cwd)
}
