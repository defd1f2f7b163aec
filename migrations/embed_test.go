package migrations

import (
	"strings"
	"testing"
)

func TestSchemaDeclaresTables(t *testing.T) {
	for _, table := range []string{"users", "leads", "audit_events"} {
		if !strings.Contains(Schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema is missing table %s", table)
		}
	}
	if !strings.Contains(Schema, "ON DELETE SET NULL") {
		t.Fatalf("leads.assigned_employee_id must be cleared when its user is deleted")
	}
}
