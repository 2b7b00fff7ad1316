package profile

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-profile", false},
		{"valid with underscore", "my_profile", false},
		{"valid single char", "a", false},
		{"valid max length", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my profile", true},
		{"dot", "my.profile", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"special chars", "my@profile", true},
		{"slash", "my/profile", true},
		{"traversal", "..", true},
		{"studio name", "downtown-gym_2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestPathsValidate(t *testing.T) {
	short := Paths{ConfigDir: "/tmp/fm/config", DataDir: "/tmp/fm/data"}
	if err := short.Validate("main"); err != nil {
		t.Errorf("Validate(main) error = %v", err)
	}
	if err := short.Validate("Main"); err == nil {
		t.Error("Validate(Main) should reject an invalid name")
	}

	deep := Paths{DataDir: "/home/coach/" + strings.Repeat("nested/", 10) + "fitmsg"}
	name := strings.Repeat("a", 40)
	if err := ValidateName(name); err != nil {
		t.Fatalf("ValidateName(%q) error = %v", name, err)
	}
	err := deep.Validate(name)
	if err == nil || !strings.Contains(err.Error(), "socket path") {
		t.Errorf("Validate() error = %v, want socket path length error", err)
	}
}
