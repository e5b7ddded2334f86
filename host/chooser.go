package host

// Chooser produces the candidate order for a connection attempt. The
// connection machinery consumes the returned sequence as-is and never
// recomputes ordering itself.
type Chooser func(specs []Spec, req Requirement, cache *StatusCache) []Spec

// OrderByStatus is the default chooser. It keeps the configured order but
// promotes hosts whose cached status already satisfies the requirement and
// demotes hosts that failed to connect last time. Unknown hosts sit in the
// middle: they may well work, but a known-good host is a better first try.
func OrderByStatus(specs []Spec, req Requirement, cache *StatusCache) []Spec {
	var good, fresh, bad []Spec
	for _, spec := range specs {
		st := StatusUnknown
		if cache != nil {
			st = cache.Lookup(spec)
		}
		switch {
		case req.Allows(st):
			good = append(good, spec)
		case st == StatusConnectFailed:
			bad = append(bad, spec)
		default:
			fresh = append(fresh, spec)
		}
	}
	out := make([]Spec, 0, len(specs))
	out = append(out, good...)
	out = append(out, fresh...)
	return append(out, bad...)
}
