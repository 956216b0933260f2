// Package cli parses the agent's command line, validates it and turns it
// into an app.Config. Usage errors carry exit code 2.
package cli
