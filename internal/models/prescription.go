package models

// ReminderTemplate is one dose slot produced by the prescription parser.
// Time is a local clock time in "HH:MM" form; the import endpoint expands
// it to the next occurrence.
type ReminderTemplate struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// Prescription is the parsed form of a free-text prescription line.
type Prescription struct {
	Medication   string             `json:"medication"`
	Dosage       string             `json:"dosage,omitempty"`
	TimesPerDay  int                `json:"times_per_day"`
	DurationDays int                `json:"duration_days,omitempty"`
	Templates    []ReminderTemplate `json:"templates"`
}
