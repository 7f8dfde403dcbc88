package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	cases := map[string]string{
		"Quarterly Equipment Audit":  "quarterly-equipment-audit",
		"  Lab Safety (2026)  ":      "lab-safety-2026",
		"---":                        "form",
		"Überprüfung":                "berpr-fung",
		"already-slugged":            "already-slugged",
		"Multiple   Spaces & Symbols!!": "multiple-spaces-symbols",
	}
	for title, want := range cases {
		assert.Equal(t, want, generateSlug(title), "title %q", title)
	}
}
