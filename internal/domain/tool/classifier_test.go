package tool

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		toolName string
		want     RiskLevel
	}{
		{"file_delete", RiskLevelCritical},
		{"execute_command", RiskLevelCritical},
		{"FILE_DELETE", RiskLevelCritical},
		{"fileDelete", RiskLevelCritical},
		{"create_order", RiskLevelHigh},
		{"process_items", RiskLevelHigh},
		{"send-email", RiskLevelHigh},
		{"get_weather", RiskLevelMedium},
		{"get_status", RiskLevelMedium},
		{"search.users", RiskLevelMedium},
		{"server_status", RiskLevelLow},
		{"list_files", RiskLevelLow},
		{"ping", RiskLevelLow},
		{"", RiskLevelLow},
		// whole words only
		{"undelete_note", RiskLevelLow},
		{"budget_report", RiskLevelLow},
		{"settings", RiskLevelLow},
	}

	for _, tt := range tests {
		t.Run(tt.toolName, func(t *testing.T) {
			if got := Classify(tt.toolName); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.toolName, got, tt.want)
			}
		})
	}
}

func TestClassify_HighestWordWins(t *testing.T) {
	tests := []struct {
		toolName string
		want     RiskLevel
	}{
		{"create_and_delete", RiskLevelCritical},
		{"query_then_update", RiskLevelHigh},
		{"list_and_get", RiskLevelMedium},
	}

	for _, tt := range tests {
		t.Run(tt.toolName, func(t *testing.T) {
			if got := Classify(tt.toolName); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.toolName, got, tt.want)
			}
		})
	}
}

func TestNameWords(t *testing.T) {
	tests := map[string][]string{
		"create_order":     {"create", "order"},
		"getHTTPStatus":    {"get", "httpstatus"},
		"tasks/all":        {"tasks", "all"},
		"__leading":        {"leading"},
		"Server Status v2": {"server", "status", "v2"},
	}
	for in, want := range tests {
		if got := nameWords(in); !reflect.DeepEqual(got, want) {
			t.Errorf("nameWords(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRiskLevel_IsValid(t *testing.T) {
	for _, r := range []RiskLevel{RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical} {
		if !r.IsValid() {
			t.Errorf("%q.IsValid() = false", r)
		}
	}
	if RiskLevel("EXTREME").IsValid() {
		t.Error(`"EXTREME".IsValid() = true`)
	}
}
