// Package errs defines the coded error taxonomy shared by the search
// packages: configuration, storage, embedding availability and dimension
// mismatch failures. Errors match their sentinels through errors.Is.
package errs
