package touch

import "fmt"

// Kind is the semantic device classification derived from the raw
// builtin flag and family id.
type Kind int

const (
	KindUnknown          Kind = 0
	KindInternalTrackpad Kind = 1
	KindExternalTrackpad Kind = 2
	KindMagicMouse       Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindInternalTrackpad:
		return "internal-trackpad"
	case KindExternalTrackpad:
		return "external-trackpad"
	case KindMagicMouse:
		return "magic-mouse"
	}
	return "unknown"
}

// Class is a device classification. The raw family id is always kept,
// so an unknown class still identifies the hardware generation exactly.
type Class struct {
	Kind     Kind
	FamilyID int32
}

func (c Class) String() string {
	if c.Kind == KindUnknown {
		return fmt.Sprintf("unknown(family %d)", c.FamilyID)
	}
	return c.Kind.String()
}

type familyRange struct {
	lo, hi int32
	kind   Kind
}

// Family id ranges observed so far. The mapping is heuristic and known
// to be incomplete - newer hardware generations are not covered and
// classify as KindUnknown, which is a legitimate result, not an error.
var familyRanges = []familyRange{
	{112, 113, KindMagicMouse},
	{128, 130, KindExternalTrackpad},
}

// Classify maps raw device attributes to a Class. Pure function; the
// builtin flag wins over any family id.
func Classify(builtin bool, familyID int32) Class {
	if builtin {
		return Class{Kind: KindInternalTrackpad, FamilyID: familyID}
	}
	for _, r := range familyRanges {
		if familyID >= r.lo && familyID <= r.hi {
			return Class{Kind: r.kind, FamilyID: familyID}
		}
	}
	return Class{Kind: KindUnknown, FamilyID: familyID}
}
