// Package prompts holds the fixed contrastive prompt catalogue scored
// against each image. Group membership and ordering are constants tuned for
// the research protocol, not derived at runtime.
package prompts

// Pair is an ordered (positive, negative) contrastive description. A pair's
// identity is its position inside its group.
type Pair struct {
	Positive string
	Negative string
}

// Group is a named, ordered sequence of pairs.
type Group struct {
	Name  string
	Pairs []Pair
}

// Group names used across evaluation diagnostics.
const (
	GroupPerson       = "person"
	GroupFemale       = "female"
	GroupFormFit      = "form_fit"
	GroupBodyExposure = "body_exposure"
)

// Person gates on a human subject being present at all.
var Person = Group{
	Name: GroupPerson,
	Pairs: []Pair{
		{
			Positive: "an instagram photo of a person",
			Negative: "an instagram photo with no person, such as scenery, food, or objects",
		},
	},
}

// Female gates on the subject being a woman before garment scoring runs.
var Female = Group{
	Name: GroupFemale,
	Pairs: []Pair{
		{
			Positive: "an instagram photo of a woman",
			Negative: "an instagram photo of a man",
		},
	},
}

// FormFit contrasts form-fitting against loose garments.
var FormFit = Group{
	Name: GroupFormFit,
	Pairs: []Pair{
		{
			Positive: "an instagram photo of a woman wearing a form-fitting top",
			Negative: "an instagram photo of a woman wearing a loose or oversized top",
		},
		{
			Positive: "an instagram photo of a woman wearing a fitted, body-hugging top",
			Negative: "an instagram photo of a woman wearing a relaxed-fit top",
		},
		{
			Positive: "an instagram photo of a woman wearing a tight bodycon dress",
			Negative: "an instagram photo of a woman wearing a loose dress",
		},
		{
			Positive: "an instagram photo emphasizing a close-fitting silhouette",
			Negative: "an instagram photo emphasizing a relaxed, flowy silhouette",
		},
		{
			Positive: "an instagram photo of a woman wearing stretchy ribbed knit that clings to the body",
			Negative: "an instagram photo of a woman wearing flowy fabric that drapes away from the body",
		},
		{
			Positive: "an instagram photo of a woman wearing a slim or tailored top",
			Negative: "an instagram photo of a woman wearing a boxy top",
		},
	},
}

// BodyExposure contrasts revealing against covering garments.
var BodyExposure = Group{
	Name: GroupBodyExposure,
	Pairs: []Pair{
		{
			Positive: "an instagram photo of a woman wearing a crop top that reveals the midriff",
			Negative: "an instagram photo of a woman wearing a top that covers the midriff",
		},
		{
			Positive: "an instagram photo with a low-cut neckline showing cleavage",
			Negative: "an instagram photo with a high neckline that covers the chest",
		},
		{
			Positive: "an instagram photo of a woman wearing a mini skirt showing the upper thighs",
			Negative: "an instagram photo of a woman wearing a knee-length or midi skirt covering the thighs",
		},
		{
			Positive: "an instagram photo featuring a high-slit dress revealing the leg",
			Negative: "an instagram photo featuring a dress without a slit or with a low slit",
		},
		{
			Positive: "an instagram photo of a woman wearing a backless or deep-back dress revealing the back",
			Negative: "an instagram photo of a woman wearing a dress that covers the back",
		},
		{
			Positive: "an instagram photo with sheer or mesh fabric that reveals skin",
			Negative: "an instagram photo with opaque fabrics that do not reveal skin",
		},
		{
			Positive: "an instagram photo of a woman wearing a strapless or spaghetti-strap top revealing the shoulders",
			Negative: "an instagram photo of a woman wearing a sleeved top that covers the shoulders",
		},
	},
}

// Truncate returns the first n pairs of the group, or the whole group when n
// is zero, negative, or past the end. Used by the stage-1 fast-mode knob.
func (g Group) Truncate(n int) Group {
	if n <= 0 || n >= len(g.Pairs) {
		return g
	}
	return Group{Name: g.Name, Pairs: g.Pairs[:n]}
}

// Flatten lists every prompt of every group in submission order, positives
// before negatives within a pair.
func Flatten(groups ...Group) []string {
	out := make([]string, 0, 2*totalPairs(groups))
	for _, g := range groups {
		for _, p := range g.Pairs {
			out = append(out, p.Positive, p.Negative)
		}
	}
	return out
}

func totalPairs(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Pairs)
	}
	return n
}
