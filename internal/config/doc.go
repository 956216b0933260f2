// Package config defines the format-agnostic router model: the elements to
// create, how they connect and which modules they require, along with the
// Loader interface implemented by concrete formats such as HCL.
//
// A Model carries source ranges so that problems found while building a
// router point back at the configuration.
package config
