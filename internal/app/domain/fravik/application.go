// Package fravik defines the exemption application aggregate: the form data
// entered by the submitter, the machine and infrastructure branches, and the
// internal processing record populated during review. JSON field names form
// the wire and export contract and must not change.
package fravik

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationType selects which branch of the form carries data.
type ApplicationType string

const (
	TypeMachine        ApplicationType = "machine"
	TypeInfrastructure ApplicationType = "infrastructure"
	TypeUnset          ApplicationType = ""
)

// Machine is one exempted machine or vehicle. The ID is assigned at creation
// and never changes or gets reused.
type Machine struct {
	ID                    string   `json:"id"`
	Type                  string   `json:"type"`
	OtherType             string   `json:"otherType,omitempty"`
	StartDate             string   `json:"startDate"`
	EndDate               string   `json:"endDate"`
	Reasons               []string `json:"reasons"`
	MarketSurveyConfirmed bool     `json:"marketSurveyConfirmed"`
	SurveyedCompanies     string   `json:"surveyedCompanies"`
	DetailedReasoning     string   `json:"detailedReasoning"`
	ReplacementMachine    string   `json:"replacementMachine"`
	ReplacementFuel       string   `json:"replacementFuel"`
	WorkDescription       string   `json:"workDescription"`
	AlternativeSolutions  string   `json:"alternativeSolutions"`
}

// Infrastructure is the singleton value object for infrastructure-constraint
// applications.
type Infrastructure struct {
	PowerAccessDescription    string `json:"powerAccessDescription"`
	MobileBatteryConsidered   bool   `json:"mobileBatteryConsidered"`
	TemporaryGridConsidered   bool   `json:"temporaryGridConsidered"`
	ProjectSpecificConditions string `json:"projectSpecificConditions"`
	CostAssessment            string `json:"costAssessment"`
	InfrastructureReplacement string `json:"infrastructureReplacement"`
	AlternativeMethods        string `json:"alternativeMethods"`
}

// Application is one exemption request. The server assigns ID on successful
// submission; before that the record only exists in the editing session.
type Application struct {
	ID             int64  `json:"applicationId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`

	ProjectName    string `json:"projectName"`
	ProjectNumber  string `json:"projectNumber"`
	MainContractor string `json:"mainContractor"`
	ContractBasis  string `json:"contractBasis"`

	SubmittedBy   string          `json:"submittedBy"`
	SubmitterName string          `json:"submitterName"`
	PrimaryDriver string          `json:"primaryDriver"`
	Deadline      string          `json:"deadline"`
	Type          ApplicationType `json:"applicationType"`
	IsUrgent      bool            `json:"isUrgent"`
	UrgencyReason string          `json:"urgencyReason"`

	Machines       []Machine      `json:"machines"`
	Infrastructure Infrastructure `json:"infrastructure"`

	MitigatingMeasures      string `json:"mitigatingMeasures"`
	ConsequencesOfRejection string `json:"consequencesOfRejection"`

	AdvisorAssessment string `json:"advisorAssessment"`
	AdvisorAttachment string `json:"advisorAttachment,omitempty"`

	Processing *Processing `json:"processing,omitempty"`

	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"`
}

// New returns an empty application with both branches at their defaults.
func New() Application {
	return Application{Machines: []Machine{}}
}

// SetType switches the application branch. The branch that is no longer
// active is reset to its defaults so an application can never submit
// combined machine and infrastructure data. Decisions recorded against
// dropped machines are pruned with them.
func (a *Application) SetType(t ApplicationType) {
	if a.Type == t {
		return
	}
	a.Type = t
	switch t {
	case TypeMachine:
		a.Infrastructure = Infrastructure{}
	case TypeInfrastructure:
		a.Machines = []Machine{}
		if a.Processing != nil {
			a.Processing.MachineDecisions = nil
		}
	}
}

// AddMachine appends a machine with a freshly assigned id and returns it.
// Insertion order is significant: it drives display and export ordering.
func (a *Application) AddMachine(m Machine) Machine {
	m.ID = uuid.NewString()
	if m.Reasons == nil {
		m.Reasons = []string{}
	}
	a.Machines = append(a.Machines, m)
	return m
}

// ReplaceMachine replaces the machine with the matching id wholesale. The id
// is immutable across edits. Returns false when no machine matches.
func (a *Application) ReplaceMachine(m Machine) bool {
	for i := range a.Machines {
		if a.Machines[i].ID == m.ID {
			a.Machines[i] = m
			return true
		}
	}
	return false
}

// RemoveMachine deletes the machine with the given id and prunes any
// decision recorded against it. Returns false when no machine matches.
func (a *Application) RemoveMachine(id string) bool {
	for i := range a.Machines {
		if a.Machines[i].ID == id {
			a.Machines = append(a.Machines[:i], a.Machines[i+1:]...)
			if a.Processing != nil {
				delete(a.Processing.MachineDecisions, id)
			}
			return true
		}
	}
	return false
}

// MachineByID looks up a machine by id.
func (a *Application) MachineByID(id string) (Machine, bool) {
	for _, m := range a.Machines {
		if m.ID == id {
			return m, true
		}
	}
	return Machine{}, false
}
