package record

// Dedup returns the unique records of in by full field equality, keeping the
// first occurrence of each. The input slice is not modified.
// Dedup(Dedup(x)) == Dedup(x).
func Dedup(in []CallRecord) []CallRecord {
	seen := make(map[CallRecord]struct{}, len(in))
	out := make([]CallRecord, 0, len(in))
	for _, r := range in {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
