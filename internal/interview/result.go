package interview

const (
	MinRating = 100
	MaxRating = 3000

	// HireThreshold is the lowest rating that yields a HIRED verdict.
	HireThreshold = 2200
)

type Tier string

const (
	TierDeveloping  Tier = "Developing"
	TierPromising   Tier = "Promising"
	TierNoteworthy  Tier = "Noteworthy"
	TierImpressive  Tier = "Impressive"
	TierExceptional Tier = "Exceptional"
	TierLegendary   Tier = "Legendary"
)

// TierBand is an inclusive rating range mapped to a tier.
type TierBand struct {
	Tier Tier
	Min  int
	Max  int
}

// TierBands is ordered from lowest to highest and covers [MinRating, MaxRating]
// without gaps or overlaps.
var TierBands = []TierBand{
	{Tier: TierDeveloping, Min: MinRating, Max: 999},
	{Tier: TierPromising, Min: 1000, Max: 1399},
	{Tier: TierNoteworthy, Min: 1400, Max: 1799},
	{Tier: TierImpressive, Min: 1800, Max: 2199},
	{Tier: TierExceptional, Min: 2200, Max: 2599},
	{Tier: TierLegendary, Min: 2600, Max: MaxRating},
}

// DeriveTier returns the band containing rating. Ratings outside the scale are
// clamped to the nearest band.
func DeriveTier(rating int) Tier {
	for _, band := range TierBands {
		if rating <= band.Max {
			return band.Tier
		}
	}
	return TierBands[len(TierBands)-1].Tier
}

type Verdict string

const (
	VerdictHired    Verdict = "HIRED"
	VerdictNotHired Verdict = "NOT HIRED"
)

func DeriveVerdict(rating int) Verdict {
	if rating >= HireThreshold {
		return VerdictHired
	}
	return VerdictNotHired
}

type DimensionKey string

const (
	DimensionTechnicalSkills DimensionKey = "technicalSkills"
	DimensionProblemSolving  DimensionKey = "problemSolving"
	DimensionCommunication   DimensionKey = "communication"
	DimensionExperience      DimensionKey = "experience"
	DimensionCultureFit      DimensionKey = "cultureFit"
)

// DimensionKeys lists every required dimension in canonical order.
var DimensionKeys = []DimensionKey{
	DimensionTechnicalSkills,
	DimensionProblemSolving,
	DimensionCommunication,
	DimensionExperience,
	DimensionCultureFit,
}

type MomentType string

const (
	MomentStrongAnswer      MomentType = "strong_answer"
	MomentWeakAnswer        MomentType = "weak_answer"
	MomentGreenFlag         MomentType = "green_flag"
	MomentRedFlag           MomentType = "red_flag"
	MomentMissedOpportunity MomentType = "missed_opportunity"
	MomentRecovery          MomentType = "recovery"
)

var MomentTypes = []MomentType{
	MomentStrongAnswer,
	MomentWeakAnswer,
	MomentGreenFlag,
	MomentRedFlag,
	MomentMissedOpportunity,
	MomentRecovery,
}

func IsDimensionKey(s string) bool {
	for _, key := range DimensionKeys {
		if string(key) == s {
			return true
		}
	}
	return false
}

func IsMomentType(s string) bool {
	for _, t := range MomentTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

type Dimension struct {
	Name     DimensionKey `json:"name"`
	Score    float64      `json:"score"`
	Feedback string       `json:"feedback"`
}

type Moment struct {
	Type        MomentType `json:"type"`
	Question    string     `json:"question"`
	Quote       string     `json:"quote"`
	Explanation string     `json:"explanation"`
}

// ScoringResult is the canonical, validated outcome of scoring one interview.
// Tier and Verdict are always derived from Rating.
type ScoringResult struct {
	Rating     int         `json:"rating"`
	Tier       Tier        `json:"tier"`
	Verdict    Verdict     `json:"verdict"`
	Summary    string      `json:"summary"`
	Dimensions []Dimension `json:"dimensions"`
	Moments    []Moment    `json:"moments"`
	IsPartial  bool        `json:"isPartial"`
	Note       string      `json:"note,omitempty"`
}
