// Package hcl provides the HCL implementation of config.Loader. A router
// configuration is a set of top-level blocks:
//
//	require "standard" {}
//
//	element "src" {
//	  class  = "InfiniteSource"
//	  config = ["LIMIT 5", "BURST 1"]
//	}
//
//	element "q" {
//	  class  = "Queue"
//	  config = "CAPACITY 3"
//	}
//
//	connect {
//	  from = "src"
//	  to   = "q"
//	}
//
// config is either a single comma-separated string or a list of arguments.
// Expressions may call env, format, join, upper and lower.
package hcl
