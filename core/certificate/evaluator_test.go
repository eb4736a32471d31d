package certificate

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/progress"
)

func TestIsEligible(t *testing.T) {
	tests := []struct {
		name string
		cp   ClassProgress
		want bool
	}{
		{name: "complete", cp: ClassProgress{TotalModules: 2, CompletedModules: 2, TotalAssignments: 1, GradedAssignments: 1}, want: true},
		{name: "no assignments", cp: ClassProgress{TotalModules: 2, CompletedModules: 2}},
		{name: "module left", cp: ClassProgress{TotalModules: 2, CompletedModules: 1, TotalAssignments: 1, GradedAssignments: 1}},
		{name: "ungraded assignment", cp: ClassProgress{TotalModules: 2, CompletedModules: 2, TotalAssignments: 2, GradedAssignments: 1}},
		{name: "empty class", cp: ClassProgress{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsEligible(tc.cp); got != tc.want {
				t.Errorf("IsEligible() = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestComputeClassProgress(t *testing.T) {
	modules := []catalog.Module{
		{ID: "m1", Steps: []catalog.Step{{ID: "s1"}, {ID: "s2"}}},
		{ID: "m2", Steps: []catalog.Step{{ID: "s3"}}},
	}
	at := time.Now()
	idx := progress.NewIndex([]progress.StepProgress{
		{StepID: "s1", Status: progress.StatusCompleted, CompletedAt: &at},
		{StepID: "s2", Status: progress.StatusCompleted, CompletedAt: &at},
	})
	assignments := []catalog.Assignment{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}}
	scores := map[string]int{"a1": 4, "a2": 5, "other": 1}

	cp := ComputeClassProgress("c", "s", modules, idx, assignments, scores)
	assert.Equal(t, ClassProgress{
		ClassID:              "c",
		StudentID:            "s",
		TotalModules:         2,
		CompletedModules:     1,
		TotalAssignments:     3,
		GradedAssignments:    2,
		CompletionPercentage: 67,
		AverageGrade:         4.5,
		CertificateEligible:  false,
	}, cp)

	cp = ComputeClassProgress("c", "s", modules, idx, assignments, map[string]int{"a1": 4, "a2": 4, "a3": 5})
	assert.Equal(t, 4.33, cp.AverageGrade)
}

func TestNewCode(t *testing.T) {
	at := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	code := NewCode("web-101", "c5b1f2a0-1111-2222-3333-444455556666", at)
	assert.Regexp(t, regexp.MustCompile(`^DRS-WEB101-C5B1F2A0-[0-9A-Z]+-[0-9A-F]{6}$`), code)
	assert.NotEqual(t, code, NewCode("web-101", "c5b1f2a0-1111-2222-3333-444455556666", at), "codes carry random bits")
}
