// Package directory talks to a prekey directory: the external
// collaborator that stores published prekey bundles and hands them out
// for session bootstrap. The client implements
// domain.PrekeyBundleProvider; the server is a minimal in-memory
// directory for local and test use.
package directory
