package submission

import (
	"strings"
	"testing"

	"github.com/oslobygg/fravik-service/internal/app/domain/fravik"
)

func validMachineApplication() fravik.Application {
	app := fravik.New()
	app.ProjectName = "Voldsløkka skole"
	app.ProjectNumber = "117045"
	app.Deadline = "2026-10-01"
	app.AdvisorAssessment = "Utslippsfri drift ikke mulig i perioden"
	app.SetType(fravik.TypeMachine)
	app.AddMachine(fravik.Machine{
		Type:      "Mobilkran",
		StartDate: "2026-09-01",
		EndDate:   "2026-11-15",
		Reasons:   []string{"Ikke tilgjengelig i markedet"},
	})
	return app
}

func TestValidateBeforeSubmit_ValidApplication(t *testing.T) {
	ok, errs := ValidateBeforeSubmit(validMachineApplication(), Files{})
	if !ok {
		t.Fatalf("expected valid, got violations: %v", errs)
	}
}

func TestValidateBeforeSubmit_CollectsAllViolations(t *testing.T) {
	app := fravik.New()
	app.IsUrgent = true
	app.SetType(fravik.TypeMachine)

	ok, errs := ValidateBeforeSubmit(app, Files{})
	if ok {
		t.Fatalf("expected invalid")
	}

	want := []string{
		"Prosjektnavn er påkrevd",
		"Prosjektnummer er påkrevd",
		"Frist for svar er påkrevd",
		"Begrunnelse for hastebehandling er påkrevd",
		"Minst én maskin er påkrevd for maskinsøknader",
		"Du må legge til vurdering fra rådgiver (tekst eller fil)",
	}
	if len(errs) != len(want) {
		t.Fatalf("expected %d violations, got %d: %v", len(want), len(errs), errs)
	}
	for i, msg := range want {
		if errs[i] != msg {
			t.Fatalf("violation %d: got %q, want %q", i, errs[i], msg)
		}
	}
}

func TestValidateApplication_PerMachineMessages(t *testing.T) {
	app := validMachineApplication()
	app.AddMachine(fravik.Machine{}) // second machine, entirely empty

	errs := ValidateApplication(app)
	for _, want := range []string{
		"Maskin 2: Maskintype er påkrevd",
		"Maskin 2: Start- og sluttdato er påkrevd",
		"Maskin 2: Minst én begrunnelse er påkrevd",
	} {
		if !containsMessage(errs, want) {
			t.Fatalf("missing %q in %v", want, errs)
		}
	}
	for _, msg := range errs {
		if strings.HasPrefix(msg, "Maskin 1") {
			t.Fatalf("valid machine flagged: %q", msg)
		}
	}
}

func TestValidateApplication_InfrastructureSkipsMachineRules(t *testing.T) {
	app := validMachineApplication()
	app.SetType(fravik.TypeInfrastructure)

	if errs := ValidateApplication(app); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestValidateBeforeSubmit_AdvisorEvidence(t *testing.T) {
	app := validMachineApplication()
	app.AdvisorAssessment = "   "

	// No text and no file: rejected.
	if ok, errs := ValidateBeforeSubmit(app, Files{}); ok || !containsMessage(errs, "Du må legge til vurdering fra rådgiver (tekst eller fil)") {
		t.Fatalf("expected advisor evidence violation, got ok=%v errs=%v", ok, errs)
	}

	// A file alone satisfies the requirement.
	files := Files{AdvisorAttachment: &Attachment{
		Filename:    "vurdering.pdf",
		ContentType: "application/pdf",
		Size:        1024,
	}}
	if ok, errs := ValidateBeforeSubmit(app, files); !ok {
		t.Fatalf("file should satisfy advisor evidence, got %v", errs)
	}
}

func TestValidateFiles_SizeAndType(t *testing.T) {
	files := Files{
		AdvisorAttachment: &Attachment{
			Filename:    "vurdering.exe",
			ContentType: "application/octet-stream",
			Size:        MaxFileSize + 1,
		},
		Documentation: []*Attachment{
			{Filename: "kart.png", ContentType: "image/png", Size: 512},
			{Filename: "stor.pdf", ContentType: "application/pdf", Size: MaxFileSize + 1},
			{Filename: "skript.sh", ContentType: "text/x-shellscript", Size: 100},
		},
	}

	errs := ValidateFiles(files)
	for _, want := range []string{
		"Rådgivervedlegg er for stort (maks 10 MB)",
		"Rådgivervedlegg må være PDF, Word eller bildefil",
		"Dokumentasjonsfil 2 er for stor",
		"Dokumentasjonsfil 3 har ugyldig filtype",
	} {
		if !containsMessage(errs, want) {
			t.Fatalf("missing %q in %v", want, errs)
		}
	}
	if containsMessage(errs, "Dokumentasjonsfil 1 har ugyldig filtype") {
		t.Fatalf("valid file flagged: %v", errs)
	}
}

func TestValidateFiles_AcceptsWhitelistedTypes(t *testing.T) {
	for _, ct := range []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"image/jpeg",
		"image/png",
	} {
		files := Files{Documentation: []*Attachment{{Filename: "f", ContentType: ct, Size: 10}}}
		if errs := ValidateFiles(files); len(errs) != 0 {
			t.Fatalf("type %s rejected: %v", ct, errs)
		}
	}
}

func containsMessage(errs []string, want string) bool {
	for _, msg := range errs {
		if msg == want {
			return true
		}
	}
	return false
}
