package certificate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/catalog"
	"github.com/trezcool/darasa/core/progress"
)

const codePrefix = "DRS"

// IsEligible reports whether every module is completed and every assignment graded,
// in a class that has at least one assignment.
func IsEligible(cp ClassProgress) bool {
	return cp.CompletedModules == cp.TotalModules &&
		cp.GradedAssignments == cp.TotalAssignments &&
		cp.TotalAssignments > 0
}

// ComputeClassProgress aggregates a student's progress in a class.
// scores maps every graded assignment of the student to its latest score.
func ComputeClassProgress(
	classID, studentID string,
	modules []catalog.Module,
	idx progress.Index,
	assignments []catalog.Assignment,
	scores map[string]int,
) ClassProgress {
	overall := progress.ComputeOverallProgress(modules, idx)
	cp := ClassProgress{
		ClassID:              classID,
		StudentID:            studentID,
		TotalModules:         overall.TotalModules,
		CompletedModules:     overall.CompletedModules,
		TotalAssignments:     len(assignments),
		CompletionPercentage: overall.OverallPercentage,
	}

	var sum int
	for _, a := range assignments {
		if score, ok := scores[a.ID]; ok {
			cp.GradedAssignments++
			sum += score
		}
	}
	if cp.GradedAssignments > 0 {
		cp.AverageGrade = core.Round(float64(sum)/float64(cp.GradedAssignments), 2)
	}
	cp.CertificateEligible = IsEligible(cp)
	return cp
}

func shortID(id string) string {
	id = strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NewCode builds a certificate code from the class, the student, the issue time and 24 random bits.
func NewCode(classID, studentID string, at time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		codePrefix,
		shortID(classID),
		shortID(studentID),
		strings.ToUpper(strconv.FormatInt(at.UnixNano()/int64(time.Millisecond), 36)),
		strings.ToUpper(random),
	)
}
