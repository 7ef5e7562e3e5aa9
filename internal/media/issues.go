package media

import "time"

// Pair links an item to the first item seen with the same fingerprint.
type Pair struct {
	First  *Descriptor
	Second *Descriptor
}

// Issues is the outcome of classifying a set of descriptors.
type Issues struct {
	// Empty holds zero-length files.
	Empty []*Descriptor
	// Duplicates holds pairs that are the same item.
	Duplicates []Pair
	// Collisions holds pairs with equal content but different record months.
	Collisions []Pair
}

// noTime stands in for an absent record time when comparing items.
var noTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// SameItem reports whether a and b are the same logical item: identical
// content recorded in the same year and month.
func SameItem(a, b *Descriptor, policy RecordTimePolicy) bool {
	if a.Fingerprint != b.Fingerprint {
		return false
	}
	ta := recordTimeOrSentinel(a, policy)
	tb := recordTimeOrSentinel(b, policy)
	return ta.Year() == tb.Year() && ta.Month() == tb.Month()
}

func recordTimeOrSentinel(d *Descriptor, policy RecordTimePolicy) time.Time {
	if t, ok := policy.RecordTime(d); ok {
		return t
	}
	return noTime
}

// Classify partitions descriptors into empty files, duplicates and
// collisions. The first non-empty descriptor seen for a fingerprint is its
// representative; every later one is paired with it.
func Classify(items []*Descriptor, policy RecordTimePolicy) *Issues {
	issues := &Issues{}
	representatives := make(map[string]*Descriptor)
	for _, d := range items {
		if d.Size == 0 {
			issues.Empty = append(issues.Empty, d)
			continue
		}
		rep, ok := representatives[d.Fingerprint]
		if !ok {
			representatives[d.Fingerprint] = d
			continue
		}
		if SameItem(rep, d, policy) {
			issues.Duplicates = append(issues.Duplicates, Pair{First: rep, Second: d})
		} else {
			issues.Collisions = append(issues.Collisions, Pair{First: rep, Second: d})
		}
	}
	return issues
}

// DuplicatePaths returns the paths of the later member of each duplicate pair.
func (i *Issues) DuplicatePaths() []string {
	paths := make([]string, 0, len(i.Duplicates))
	for _, p := range i.Duplicates {
		paths = append(paths, p.Second.Path)
	}
	return paths
}

// CollisionMembers returns both sides of every collision pair in first-seen
// order, each descriptor once.
func (i *Issues) CollisionMembers() []*Descriptor {
	seen := make(map[*Descriptor]bool)
	var out []*Descriptor
	for _, p := range i.Collisions {
		for _, d := range []*Descriptor{p.First, p.Second} {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// CollisionFingerprints returns the set of fingerprints involved in a collision.
func (i *Issues) CollisionFingerprints() map[string]bool {
	fps := make(map[string]bool, len(i.Collisions))
	for _, p := range i.Collisions {
		fps[p.First.Fingerprint] = true
	}
	return fps
}
