// Package registry provides the central "glue" for the module system.
//
// Modules register element classes by name. At startup the registry is
// validated so that every class constructs an element reporting the same
// class name with parseable port and processing declarations. Build then
// turns a configuration model into an uninitialized router, reporting every
// unknown class, unsatisfied requirement and bad declaration in one pass.
package registry
