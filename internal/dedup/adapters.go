package dedup

// Stale delivery kinds reported by Classify.
const (
	KindDuplicate = "duplicate"
	KindUnknown   = "unknown"
)

// Classify labels a callback for an id that is no longer pending: KindDuplicate
// when the id was resolved recently, KindUnknown otherwise. A nil set always
// reports KindUnknown.
func Classify(set ResolvedSet, id string) string {
	if set != nil && set.WasResolved(id) {
		return KindDuplicate
	}
	return KindUnknown
}
