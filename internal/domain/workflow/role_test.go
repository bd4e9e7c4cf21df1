package workflow

import (
	"reflect"
	"testing"
)

func TestNormalizeRoleName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Head of Department", "HEAD_OF_DEPARTMENT"},
		{"  it-staff ", "IT_STAFF"},
		{"final  approver", "FINAL_APPROVER"},
		{"ADMIN", "ADMIN"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeRoleName(tt.in); got != tt.want {
				t.Errorf("NormalizeRoleName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalRoleNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"alias", "HOD", []string{RoleHeadOfDepartment}},
		{"spaced", "Head of Department", []string{RoleHeadOfDepartment}},
		{"multi", "IT Manager", []string{RoleHeadOfDepartment, RoleIT, RoleITManager}},
		{"director", "Director", []string{RoleDirector, RoleFinalApprover}},
		{"unknown", "Auditor", []string{"AUDITOR"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalRoleNames(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CanonicalRoleNames(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalRoleName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"IT Manager", RoleITManager},
		{"it staff", RoleIT},
		{"Manager", RoleManager},
		{"Director", RoleDirector},
		{"head of dept", RoleHeadOfDepartment},
		{"Auditor", "AUDITOR"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CanonicalRoleName(tt.in); got != tt.want {
				t.Errorf("CanonicalRoleName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoleMatches(t *testing.T) {
	tests := []struct {
		actor    string
		required string
		expected bool
	}{
		{"Accountant", "ACCOUNTANT", true},
		{"accounting", "Accountant", true},
		{"IT Manager", "HOD", true},
		{"IT Manager", "IT", true},
		{"IT", "HEAD_OF_DEPARTMENT", false},
		{"IT Manager", "it-manager", true},
		{"IT Staff", "IT Manager", false},
		{"Head of Department", "IT Manager", false},
		{"HOD", "Manager", false},
		{"Manager", "Head of Department", true},
		{"Final Approver", "Director", false},
		{"Final Approver", "Approver", false},
		{"Director", "Final Approver", true},
		{"Accountant", "", false},
		{"Auditor", "auditor", true},
	}

	for _, tt := range tests {
		t.Run(tt.actor+"->"+tt.required, func(t *testing.T) {
			if got := RoleMatches(tt.actor, tt.required); got != tt.expected {
				t.Errorf("RoleMatches(%q, %q) = %v, want %v", tt.actor, tt.required, got, tt.expected)
			}
		})
	}
}
