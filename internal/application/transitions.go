package application

// Stage is the coarse pipeline position.
type Stage string

const (
	StageApplied   Stage = "applied"
	StageScreening Stage = "screening"
	StageInterview Stage = "interview"
	StageOffer     Stage = "offer"
	StageHired     Stage = "hired"
	StageRejected  Stage = "rejected"
	StageWithdrawn Stage = "withdrawn"
)

// Status is the finer-grained state within a stage.
type Status string

const (
	StatusSubmitted          Status = "submitted"
	StatusUnderReview        Status = "under_review"
	StatusShortlisted        Status = "shortlisted"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusInterviewed        Status = "interviewed"
	StatusOfferExtended      Status = "offer_extended"
	StatusOfferAccepted      Status = "offer_accepted"
	StatusOfferDeclined      Status = "offer_declined"
	StatusRejected           Status = "rejected"
	StatusWithdrawn          Status = "withdrawn"
)

// Phase is one valid (stage, status) pair.
type Phase struct {
	Stage  Stage  `yaml:"stage"`
	Status Status `yaml:"status"`
}

var (
	phaseApplied            = Phase{StageApplied, StatusSubmitted}
	phaseUnderReview        = Phase{StageScreening, StatusUnderReview}
	phaseShortlisted        = Phase{StageScreening, StatusShortlisted}
	phaseInterviewScheduled = Phase{StageInterview, StatusInterviewScheduled}
	phaseInterviewed        = Phase{StageInterview, StatusInterviewed}
	phaseOfferExtended      = Phase{StageOffer, StatusOfferExtended}
	phaseOfferDeclined      = Phase{StageOffer, StatusOfferDeclined}
	phaseHired              = Phase{StageHired, StatusOfferAccepted}
	phaseRejected           = Phase{StageRejected, StatusRejected}
	phaseWithdrawn          = Phase{StageWithdrawn, StatusWithdrawn}
)

// transitions is the allow-list: the pairs an application may move to from
// each pair via AdvanceStage. Rejection and withdrawal are deliberately
// absent; they go through their own forced operations.
var transitions = map[Phase][]Phase{
	phaseApplied:            {phaseUnderReview},
	phaseUnderReview:        {phaseShortlisted, phaseInterviewScheduled},
	phaseShortlisted:        {phaseInterviewScheduled},
	phaseInterviewScheduled: {phaseInterviewed},
	phaseInterviewed:        {phaseOfferExtended},
	phaseOfferExtended:      {phaseOfferDeclined, phaseHired},
	phaseOfferDeclined:      {},
	phaseHired:              {},
	phaseRejected:           {},
	phaseWithdrawn:          {},
}

// IsAllowedPhase reports whether the pair exists in the state space at all.
func IsAllowedPhase(p Phase) bool {
	if _, ok := transitions[p]; ok {
		return true
	}
	return false
}

// CanTransition reports whether AdvanceStage may move from one pair to
// another.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InitialPhase is where every new application starts.
func InitialPhase() Phase {
	return phaseApplied
}
