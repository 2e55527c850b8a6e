package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "out")
	elsewhere := filepath.Join(tmpDir, "elsewhere")
	for _, d := range []string{baseDir, elsewhere} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	link := filepath.Join(baseDir, "link")
	if err := os.Symlink(elsewhere, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		wantFail bool
	}{
		{"file in base", filepath.Join(baseDir, "attempt.json"), false},
		{"new nested file", filepath.Join(baseDir, "a", "b", "report.html"), false},
		{"base itself", baseDir, false},
		{"dot dot escape", filepath.Join(baseDir, "..", "elsewhere", "x"), true},
		{"sibling absolute", filepath.Join(elsewhere, "x"), true},
		{"through symlink", filepath.Join(link, "x"), true},
		{"symlink itself", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, baseDir)
			if tt.wantFail {
				if !errors.Is(err, ErrPathEscape) {
					t.Errorf("expected ErrPathEscape, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingBase(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	if err := ValidatePathWithinDirectory(filepath.Join(missing, "x"), missing); err == nil {
		t.Error("expected error for missing base directory")
	}
}

func TestValidateOutputDir(t *testing.T) {
	if err := ValidateOutputDir(filepath.Join(os.TempDir(), "gaze-offline")); err != nil {
		t.Errorf("temp dir rejected: %v", err)
	}
	if err := ValidateOutputDir("reports"); err != nil {
		t.Errorf("relative dir rejected: %v", err)
	}
	if err := ValidateOutputDir("/proc/gaze"); err == nil {
		t.Error("expected /proc/gaze to be rejected")
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	got, err := OutputPath(dir, "../../etc/passwd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(got) != dir {
		t.Errorf("OutputPath = %q, want a file directly in %q", got, dir)
	}
	if want := filepath.Join(dir, "etc_passwd"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "unknown"},
		{"attempt.json", "attempt.json"},
		{"a b  c", "a_b_c"},
		{"../x", "x"},
		{"__..", "unknown"},
		{"scores (final).png", "scores_final_.png"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeFilename(string(long)); len(got) != 128 {
		t.Errorf("len = %d, want 128", len(got))
	}
}
