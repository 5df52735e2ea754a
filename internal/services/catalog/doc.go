// Package catalog resolves media metadata and user identity for the listen
// party service. It owns the read-side catalog of library items, podcast
// episodes, and users with their per-library access, backed by SQLite.
package catalog
