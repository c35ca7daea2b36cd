package fravik

import "time"

// Status is the overall workflow state of a submitted application.
type Status string

const (
	StatusSubmitted             Status = "submitted"
	StatusAwaitingBOIReview     Status = "awaiting_boi_review"
	StatusAwaitingENTRevision   Status = "awaiting_ent_revision"
	StatusAwaitingPLReview      Status = "awaiting_pl_review"
	StatusAwaitingGroupReview   Status = "awaiting_group_review"
	StatusAwaitingOwnerDecision Status = "awaiting_owner_decision"
	StatusApproved              Status = "approved"
	StatusPartiallyApproved     Status = "partially_approved"
	StatusRejected              Status = "rejected"
)

// transitions is the allowed progression between workflow states. Review
// stages may route back to the revision-request state when documentation is
// insufficient; terminal states have no outgoing edges.
var transitions = map[Status][]Status{
	StatusSubmitted:           {StatusAwaitingBOIReview},
	StatusAwaitingBOIReview:   {StatusAwaitingENTRevision, StatusAwaitingPLReview},
	StatusAwaitingENTRevision: {StatusAwaitingBOIReview},
	StatusAwaitingPLReview:    {StatusAwaitingENTRevision, StatusAwaitingGroupReview},
	StatusAwaitingGroupReview: {StatusAwaitingENTRevision, StatusAwaitingOwnerDecision},
	StatusAwaitingOwnerDecision: {
		StatusApproved, StatusPartiallyApproved, StatusRejected,
	},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final decision state.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusPartiallyApproved, StatusRejected:
		return true
	}
	return false
}

// Recommendation is a review stage's conclusion.
type Recommendation string

const (
	RecommendationApproved          Recommendation = "approved"
	RecommendationPartiallyApproved Recommendation = "partially_approved"
	RecommendationRejected          Recommendation = "rejected"
	RecommendationUnset             Recommendation = ""
)

// TerminalStatus maps a recommendation onto the matching final status.
func (r Recommendation) TerminalStatus() (Status, bool) {
	switch r {
	case RecommendationApproved:
		return StatusApproved, true
	case RecommendationPartiallyApproved:
		return StatusPartiallyApproved, true
	case RecommendationRejected:
		return StatusRejected, true
	}
	return "", false
}

// Decision is the working group's verdict on a single machine. Unlike a
// stage recommendation there is no partial value per machine.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionUnset    Decision = ""
)

// YesNo is a tri-state answer for the documentation sufficiency gates.
type YesNo string

const (
	Yes        YesNo = "yes"
	No         YesNo = "no"
	Unanswered YesNo = ""
)

// Stage identifies one of the three identically-shaped review stages.
type Stage string

const (
	StageBOI   Stage = "boi"
	StagePL    Stage = "pl"
	StageGroup Stage = "group"
)

// MachineDecision is the working group's verdict on one machine.
type MachineDecision struct {
	Decision Decision `json:"decision"`
	Comment  string   `json:"comment"`
}

// Processing holds the internal review record. It is owned by the
// application and only populated once submission has occurred.
type Processing struct {
	Status Status `json:"status"`

	BOIDocumentationSufficient YesNo          `json:"boiDocumentationSufficient"`
	BOIAssessment              string         `json:"boiAssessment"`
	BOIRecommendation          Recommendation `json:"boiRecommendation"`
	BOIReviewedAt              *time.Time     `json:"boiReviewedAt,omitempty"`
	BOIReviewedBy              string         `json:"boiReviewedBy,omitempty"`

	PLDocumentationSufficient YesNo          `json:"plDocumentationSufficient"`
	PLAssessment              string         `json:"plAssessment"`
	PLRecommendation          Recommendation `json:"plRecommendation"`
	PLReviewedAt              *time.Time     `json:"plReviewedAt,omitempty"`
	PLReviewedBy              string         `json:"plReviewedBy,omitempty"`

	GroupDocumentationSufficient YesNo          `json:"groupDocumentationSufficient"`
	GroupAssessment              string         `json:"groupAssessment"`
	GroupRecommendation          Recommendation `json:"groupRecommendation"`
	GroupReviewedAt              *time.Time     `json:"groupReviewedAt,omitempty"`
	GroupReviewedBy              string         `json:"groupReviewedBy,omitempty"`

	MachineDecisions map[string]MachineDecision `json:"machineDecisions,omitempty"`

	OwnerAgreesWithGroup YesNo          `json:"ownerAgreesWithGroup"`
	OwnerJustification   string         `json:"ownerJustification"`
	OwnerRecommendation  Recommendation `json:"ownerRecommendation,omitempty"`
	OwnerDecidedAt       *time.Time     `json:"ownerDecidedAt,omitempty"`
	OwnerDecidedBy       string         `json:"ownerDecidedBy,omitempty"`
}

// StageReview is a uniform view over one of the three review stage groups.
type StageReview struct {
	DocumentationSufficient YesNo
	Assessment              string
	Recommendation          Recommendation
	ReviewedAt              *time.Time
	ReviewedBy              string
}

// StageView returns the named stage's fields.
func (p *Processing) StageView(stage Stage) StageReview {
	switch stage {
	case StageBOI:
		return StageReview{p.BOIDocumentationSufficient, p.BOIAssessment, p.BOIRecommendation, p.BOIReviewedAt, p.BOIReviewedBy}
	case StagePL:
		return StageReview{p.PLDocumentationSufficient, p.PLAssessment, p.PLRecommendation, p.PLReviewedAt, p.PLReviewedBy}
	case StageGroup:
		return StageReview{p.GroupDocumentationSufficient, p.GroupAssessment, p.GroupRecommendation, p.GroupReviewedAt, p.GroupReviewedBy}
	}
	return StageReview{}
}

// ApplyStage writes a stage review back onto the named stage's fields.
func (p *Processing) ApplyStage(stage Stage, review StageReview) {
	switch stage {
	case StageBOI:
		p.BOIDocumentationSufficient = review.DocumentationSufficient
		p.BOIAssessment = review.Assessment
		p.BOIRecommendation = review.Recommendation
		p.BOIReviewedAt = review.ReviewedAt
		p.BOIReviewedBy = review.ReviewedBy
	case StagePL:
		p.PLDocumentationSufficient = review.DocumentationSufficient
		p.PLAssessment = review.Assessment
		p.PLRecommendation = review.Recommendation
		p.PLReviewedAt = review.ReviewedAt
		p.PLReviewedBy = review.ReviewedBy
	case StageGroup:
		p.GroupDocumentationSufficient = review.DocumentationSufficient
		p.GroupAssessment = review.Assessment
		p.GroupRecommendation = review.Recommendation
		p.GroupReviewedAt = review.ReviewedAt
		p.GroupReviewedBy = review.ReviewedBy
	}
}
