package archive

// Prefer reports whether a beats b as the duplicate winner. The order is:
// a non-null hash, then the newer modification time, then the larger size,
// then the lexicographically smaller path. Distinct paths never tie.
func Prefer(a, b FileRecord) bool {
	if a.ContentHash.Valid != b.ContentHash.Valid {
		return a.ContentHash.Valid
	}
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	if a.SizeBytes != b.SizeBytes {
		return a.SizeBytes > b.SizeBytes
	}
	return a.Path < b.Path
}

// Winner returns the preferred record of a non-empty group and its index.
func Winner(group []FileRecord) (FileRecord, int) {
	best := 0
	for i := 1; i < len(group); i++ {
		if Prefer(group[i], group[best]) {
			best = i
		}
	}
	return group[best], best
}
