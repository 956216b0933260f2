// Package app contains the agent's core application logic: it loads a
// router configuration, builds and runs the router, serves the handler and
// metrics HTTP surface and swaps in new configurations while running. It is
// decoupled from any specific entrypoint like a CLI.
package app
