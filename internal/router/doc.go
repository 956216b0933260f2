// Package router assembles elements into a graph and runs it.
//
// A Router is built in three steps. Elements and connections are added
// while the router is new. Initialize then freezes port counts, resolves
// the push/pull discipline of every port, configures every element in
// configure-phase order and initializes them in the same order. Bring-up
// is all or nothing: when any step fails every element is cleaned up and
// the router is left dead. A live router is driven by its master until it
// is stopped, after which Cleanup releases its elements.
//
// A replacement router can take over the state of a stopped one through
// TakeState, which hands every StateTaker element the element of the same
// name in the old router.
package router
