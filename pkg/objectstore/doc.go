// Package objectstore provides read-only access to the cluster state
// store. A Locator names a bucket and key prefix parsed from the boot
// configuration; the client fetches objects into memory or straight to
// disk with a target file mode.
package objectstore
