package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/face-identify/internal/faceapi"
	"github.com/example/face-identify/internal/logging"
)

func TestCollectEnrollments(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Kavya Ravi/2.jpg":  "x",
		"Kavya Ravi/1.PNG":  "x",
		"Kavya Ravi/notes":  "x",
		"Arjun Mehta/a.bmp": "x",
		"Empty/readme.txt":  "x",
		"loose.jpg":         "x",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	enrollments, total, err := collectEnrollments(dir)
	if err != nil {
		t.Fatalf("collectEnrollments failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 images, got %d", total)
	}
	if len(enrollments) != 2 {
		t.Fatalf("expected 2 persons, got %+v", enrollments)
	}
	if enrollments[0].name != "Arjun Mehta" || enrollments[1].name != "Kavya Ravi" {
		t.Fatalf("unexpected order %+v", enrollments)
	}
	kavya := enrollments[1].images
	if filepath.Base(kavya[0]) != "1.PNG" || filepath.Base(kavya[1]) != "2.jpg" {
		t.Fatalf("unexpected images %v", kavya)
	}
}

func TestCollectEnrollmentsMissingDir(t *testing.T) {
	if _, _, err := collectEnrollments(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestGroupDefaults(t *testing.T) {
	if got := groupArg("friends", nil); got != "friends" {
		t.Fatalf("groupArg default = %q", got)
	}
	if got := groupArg("friends", []string{"family"}); got != "family" {
		t.Fatalf("groupArg = %q", got)
	}
	if got := groupFlag("friends", ""); got != "friends" {
		t.Fatalf("groupFlag default = %q", got)
	}
}

func TestDescribeNotFound(t *testing.T) {
	notFound := logging.NewOperationError("faceapi.delete_person", "", &faceapi.ServiceError{StatusCode: 404, Code: "PersonNotFound"})
	err := describeNotFound(notFound, "person %s in %s", "p1", "friends")
	if err == nil || err.Error() != "person p1 in friends does not exist" {
		t.Fatalf("unexpected error %v", err)
	}

	other := &faceapi.ServiceError{StatusCode: 429, Code: "RateLimitExceeded"}
	if got := describeNotFound(other, "person %s", "p1"); !errors.Is(got, other) {
		t.Fatalf("expected error to pass through, got %v", got)
	}
}
