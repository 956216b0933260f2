// Package confparse splits element configuration strings into arguments
// and parses typed argument values.
//
// An element's configuration is a comma-separated list of arguments.
// Commas nested in quotes, parentheses, brackets or braces do not split.
// Optional arguments are usually introduced by an upper-case keyword, as
// in "LIMIT 5". Args reads positional and keyword arguments in one pass
// and assigns the results only when every argument parsed.
package confparse
