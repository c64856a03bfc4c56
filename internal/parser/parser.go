// Package parser turns free prescription text into reminder templates.
// It is deliberately best-effort: a handful of regular expressions over
// common prescription phrasing, not a grammar.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"med-reminder-go/internal/models"
)

var ErrNoMedication = errors.New("no medication found in text")

var (
	medRe      = regexp.MustCompile(`(?i)\b(?:take|give|use|apply)\s+([A-Za-z][A-Za-z0-9-]*(?:\s+[A-Za-z][A-Za-z0-9-]*)?)`)
	doseRe     = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(mg|mcg|g|ml|iu|tablets?|tabs?|capsules?|caps?|drops?|puffs?|units?)\b`)
	freqRe     = regexp.MustCompile(`(?i)\b(\d+)\s*(?:x|times?)\s*(?:a|per|/)?\s*day\b`)
	wordFreqRe = regexp.MustCompile(`(?i)\b(once|twice|thrice)\s+(?:a|per|every)\s+day\b`)
	everyRe    = regexp.MustCompile(`(?i)\bevery\s+(\d+)\s*h(?:ours?)?\b`)
	durationRe = regexp.MustCompile(`(?i)\bfor\s+(\d+)\s*(days?|weeks?)\b`)
)

// Words that follow the medication name but belong to the schedule, not the name.
var scheduleWords = map[string]bool{
	"once": true, "twice": true, "thrice": true, "daily": true,
	"every": true, "times": true, "time": true, "each": true,
	"with": true, "before": true, "after": true, "at": true, "for": true,
	"a": true, "per": true, "in": true, "on": true,
}

// Default dose hours by frequency, mirroring common prescription practice.
var doseHours = map[int][]string{
	1: {"09:00"},
	2: {"09:00", "21:00"},
	3: {"08:00", "14:00", "20:00"},
	4: {"08:00", "12:00", "16:00", "20:00"},
}

// Parse extracts medication, dosage, frequency and duration from text and
// builds one reminder template per daily dose.
func Parse(text string) (models.Prescription, error) {
	p := models.Prescription{TimesPerDay: 1}

	m := medRe.FindStringSubmatch(text)
	if m == nil {
		return models.Prescription{}, ErrNoMedication
	}
	p.Medication = trimScheduleWords(m[1])
	if p.Medication == "" {
		return models.Prescription{}, ErrNoMedication
	}

	if d := doseRe.FindStringSubmatch(text); d != nil {
		p.Dosage = d[1] + " " + strings.ToLower(d[2])
	}

	switch {
	case freqRe.MatchString(text):
		n, _ := strconv.Atoi(freqRe.FindStringSubmatch(text)[1])
		if n > 0 {
			p.TimesPerDay = n
		}
	case wordFreqRe.MatchString(text):
		switch strings.ToLower(wordFreqRe.FindStringSubmatch(text)[1]) {
		case "once":
			p.TimesPerDay = 1
		case "twice":
			p.TimesPerDay = 2
		case "thrice":
			p.TimesPerDay = 3
		}
	case everyRe.MatchString(text):
		hours, _ := strconv.Atoi(everyRe.FindStringSubmatch(text)[1])
		if hours > 0 && hours <= 24 {
			p.TimesPerDay = 24 / hours
			if p.TimesPerDay < 1 {
				p.TimesPerDay = 1
			}
		}
	}

	if d := durationRe.FindStringSubmatch(text); d != nil {
		n, _ := strconv.Atoi(d[1])
		if strings.HasPrefix(strings.ToLower(d[2]), "week") {
			n *= 7
		}
		p.DurationDays = n
	}

	name := p.Medication
	if p.Dosage != "" {
		name = name + " " + p.Dosage
	}
	for _, hhmm := range hoursFor(p.TimesPerDay) {
		p.Templates = append(p.Templates, models.ReminderTemplate{Name: name, Time: hhmm})
	}

	return p, nil
}

func trimScheduleWords(name string) string {
	words := strings.Fields(name)
	for len(words) > 0 && scheduleWords[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func hoursFor(timesPerDay int) []string {
	if hours, ok := doseHours[timesPerDay]; ok {
		return hours
	}
	// Uncommon frequencies: spread doses evenly across the day from 08:00.
	if timesPerDay < 1 {
		timesPerDay = 1
	}
	interval := 24 / timesPerDay
	if interval < 1 {
		interval = 1
	}
	var out []string
	for i := 0; i < timesPerDay; i++ {
		out = append(out, fmt.Sprintf("%02d:00", (8+i*interval)%24))
	}
	return out
}
