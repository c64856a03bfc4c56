package parser_test

import (
	"errors"
	"testing"

	"med-reminder-go/internal/parser"
)

func TestParseFullPrescription(t *testing.T) {
	p, err := parser.Parse("Take Paracetamol 500 mg 3 times a day for 5 days after meals")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Medication != "Paracetamol" {
		t.Fatalf("expected Paracetamol, got %q", p.Medication)
	}
	if p.Dosage != "500 mg" {
		t.Fatalf("expected dosage 500 mg, got %q", p.Dosage)
	}
	if p.TimesPerDay != 3 {
		t.Fatalf("expected 3 times per day, got %d", p.TimesPerDay)
	}
	if p.DurationDays != 5 {
		t.Fatalf("expected 5 days, got %d", p.DurationDays)
	}
	if len(p.Templates) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(p.Templates))
	}
	if p.Templates[0].Name != "Paracetamol 500 mg" {
		t.Fatalf("unexpected template name %q", p.Templates[0].Name)
	}
	if p.Templates[0].Time != "08:00" || p.Templates[2].Time != "20:00" {
		t.Fatalf("unexpected template times: %+v", p.Templates)
	}
}

func TestParseWordFrequency(t *testing.T) {
	p, err := parser.Parse("Take Amoxicillin twice a day for 1 week")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Medication != "Amoxicillin" {
		t.Fatalf("expected Amoxicillin, got %q", p.Medication)
	}
	if p.TimesPerDay != 2 {
		t.Fatalf("expected 2 times per day, got %d", p.TimesPerDay)
	}
	if p.DurationDays != 7 {
		t.Fatalf("expected week to normalize to 7 days, got %d", p.DurationDays)
	}
	if len(p.Templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(p.Templates))
	}
}

func TestParseEveryNHours(t *testing.T) {
	p, err := parser.Parse("Use Salbutamol inhaler every 6 hours")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.TimesPerDay != 4 {
		t.Fatalf("expected every 6 hours to mean 4 times per day, got %d", p.TimesPerDay)
	}
	if len(p.Templates) != 4 {
		t.Fatalf("expected 4 templates, got %d", len(p.Templates))
	}
}

func TestParseTwoWordMedication(t *testing.T) {
	p, err := parser.Parse("Take Vitamin D3 1000 iu once a day")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Medication != "Vitamin D3" {
		t.Fatalf("expected Vitamin D3, got %q", p.Medication)
	}
	if p.TimesPerDay != 1 || len(p.Templates) != 1 {
		t.Fatalf("expected a single daily dose, got %+v", p)
	}
}

func TestParseStripsScheduleWordsFromName(t *testing.T) {
	p, err := parser.Parse("Take Ibuprofen twice a day")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Medication != "Ibuprofen" {
		t.Fatalf("schedule words leaked into the name: %q", p.Medication)
	}
}

func TestParseDefaultsToOnceDaily(t *testing.T) {
	p, err := parser.Parse("Take Metformin with breakfast")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.TimesPerDay != 1 {
		t.Fatalf("expected default of once daily, got %d", p.TimesPerDay)
	}
	if p.DurationDays != 0 {
		t.Fatalf("expected no duration, got %d", p.DurationDays)
	}
}

func TestParseRejectsTextWithoutMedication(t *testing.T) {
	if _, err := parser.Parse("call the clinic tomorrow morning"); !errors.Is(err, parser.ErrNoMedication) {
		t.Fatalf("expected ErrNoMedication, got %v", err)
	}
}
