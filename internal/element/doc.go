// Package element defines the contract between the router and the packet
// processing units it hosts.
//
// An element embeds Base and implements Class. Everything else is
// optional: the router discovers what an element can do by asserting the
// small capability interfaces declared here (Pusher, Puller, Configurer,
// Initializer, TaskRunner, Storage, ...).
package element
