// Package testutil holds helpers shared by package tests: a thread-safe log
// buffer, routers built from HCL strings, background runners and a
// recording sink element.
package testutil
