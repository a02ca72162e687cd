package ingest

// ValidPath reports whether name is safe to use as a file name under the
// storage root. Only a single plain path component is accepted: anything
// empty, absolute, containing a separator, or referencing the current or
// parent directory is rejected. This is the sole defense against uploads
// escaping the storage root.
func ValidPath(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		// Backslash counts as a separator so Windows-style traversal
		// is rejected on every platform.
		if r == '/' || r == '\\' || r == 0 {
			return false
		}
	}
	return true
}
