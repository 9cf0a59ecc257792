package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Chapter", KeyChapter, "Introduction", Chapter("Introduction")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"RelPath", KeyRelPath, "chapter_1.html", RelPath("chapter_1.html")},
		{"SourcePath", KeySourcePath, "src/chapter_1.md", SourcePath("src/chapter_1.md")},
		{"Worker", KeyWorker, "rebuilder", Worker("rebuilder")},
		{"Method", KeyMethod, "GET", Method("GET")},
		{"RemoteAddr", KeyRemoteAddr, "1.2.3.4", RemoteAddr("1.2.3.4")},
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Version(7); v.Key != KeyVersion {
		t.Fatalf("Version key mismatch: %s", v.Key)
	}
	if v := Status(200); v.Key != KeyStatus {
		t.Fatalf("Status key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
	if v := Clients(3); v.Key != KeyClients {
		t.Fatalf("Clients key mismatch: %s", v.Key)
	}
}

// TestBoolHelper verifies the boolean reload-env helper.
func TestBoolHelper(t *testing.T) {
	attr := ReloadEnv(true)
	if attr.Key != KeyReloadEnv {
		t.Fatalf("ReloadEnv key mismatch: %s", attr.Key)
	}
	if attr.Value.Bool() != true {
		t.Fatalf("expected true, got %v", attr.Value.Bool())
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("expected empty error string, got %s", attr.Value.String())
	}

	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
