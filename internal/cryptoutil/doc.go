// Package cryptoutil holds small hashing helpers used to verify content
// bundles.
package cryptoutil
