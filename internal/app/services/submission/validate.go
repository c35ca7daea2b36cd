package submission

import (
	"fmt"
	"strings"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
)

// MaxFileSize is the upper bound for a single attachment.
const MaxFileSize = 10 << 20 // 10 MiB

// allowedFileTypes are the accepted attachment MIME types.
var allowedFileTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/jpeg": true,
	"image/png":  true,
}

// Attachment is a file handed along with the application.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
}

// Files is the side-channel file map submitted next to the form data.
type Files struct {
	AdvisorAttachment *Attachment
	Documentation     []*Attachment
}

// ValidateApplication checks the business rules on the form data itself and
// returns the user-facing violations. An empty result means valid.
func ValidateApplication(app fravik.Application) []string {
	var errs []string

	if strings.TrimSpace(app.ProjectName) == "" {
		errs = append(errs, "Prosjektnavn er påkrevd")
	}
	if strings.TrimSpace(app.ProjectNumber) == "" {
		errs = append(errs, "Prosjektnummer er påkrevd")
	}
	if strings.TrimSpace(app.Deadline) == "" {
		errs = append(errs, "Frist for svar er påkrevd")
	}

	if app.IsUrgent && strings.TrimSpace(app.UrgencyReason) == "" {
		errs = append(errs, "Begrunnelse for hastebehandling er påkrevd")
	}

	if app.Type == fravik.TypeMachine {
		if len(app.Machines) == 0 {
			errs = append(errs, "Minst én maskin er påkrevd for maskinsøknader")
		}
		for i, m := range app.Machines {
			if strings.TrimSpace(m.Type) == "" {
				errs = append(errs, fmt.Sprintf("Maskin %d: Maskintype er påkrevd", i+1))
			}
			if strings.TrimSpace(m.StartDate) == "" || strings.TrimSpace(m.EndDate) == "" {
				errs = append(errs, fmt.Sprintf("Maskin %d: Start- og sluttdato er påkrevd", i+1))
			}
			if len(m.Reasons) == 0 {
				errs = append(errs, fmt.Sprintf("Maskin %d: Minst én begrunnelse er påkrevd", i+1))
			}
		}
	}

	return errs
}

// ValidateFiles checks size and type limits per attachment, reporting
// violations with the file's position so the user can tell them apart.
func ValidateFiles(files Files) []string {
	var errs []string

	if f := files.AdvisorAttachment; f != nil {
		if f.Size > MaxFileSize {
			errs = append(errs, fmt.Sprintf("Rådgivervedlegg er for stort (maks %d MB)", MaxFileSize>>20))
		}
		if !allowedFileTypes[f.ContentType] {
			errs = append(errs, "Rådgivervedlegg må være PDF, Word eller bildefil")
		}
	}

	for i, f := range files.Documentation {
		if f.Size > MaxFileSize {
			errs = append(errs, fmt.Sprintf("Dokumentasjonsfil %d er for stor", i+1))
		}
		if !allowedFileTypes[f.ContentType] {
			errs = append(errs, fmt.Sprintf("Dokumentasjonsfil %d har ugyldig filtype", i+1))
		}
	}

	return errs
}

// ValidateBeforeSubmit runs the complete pre-submission validation: form
// rules, the advisor-evidence requirement, and file checks.
func ValidateBeforeSubmit(app fravik.Application, files Files) (bool, []string) {
	errs := ValidateApplication(app)

	if strings.TrimSpace(app.AdvisorAssessment) == "" && files.AdvisorAttachment == nil {
		errs = append(errs, "Du må legge til vurdering fra rådgiver (tekst eller fil)")
	}

	errs = append(errs, ValidateFiles(files)...)
	return len(errs) == 0, errs
}
