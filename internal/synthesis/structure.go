package synthesis

import (
	"strconv"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

// Structure holds the Major, Job and Company nodes built directly from source records.
type Structure struct {
	MajorID       string
	Entities      []types.Entity
	Relationships []types.Relationship
}

func MajorEntityID(major string) string {
	return "major_" + major
}

func NewStructure(major string) *Structure {
	id := MajorEntityID(major)
	return &Structure{
		MajorID:  id,
		Entities: []types.Entity{{ID: id, Name: major, Type: types.EntityMajor, Category: types.CategoryCore}},
	}
}

// AddJob adds the job (and its employer when named) and links them to the major. idx is the
// job's position in the matched list and names the job when the record has no id. Untitled
// jobs are skipped and reported false.
func (s *Structure) AddJob(idx int, j types.JobRecord) bool {
	title := cleanText(j.Title)
	if title == "" {
		return false
	}
	num := cleanText(j.ID)
	if num == "" {
		num = strconv.Itoa(idx)
	}
	jobID := "job_" + num
	s.Entities = append(s.Entities, types.Entity{ID: jobID, Name: title, Type: types.EntityJob, Category: types.CategoryTarget})

	if employer := cleanText(j.Employer); employer != "" {
		companyID := "company_" + employer
		s.Entities = append(s.Entities, types.Entity{ID: companyID, Name: employer, Type: types.EntityCompany, Category: types.CategoryTarget})
		s.Relationships = append(s.Relationships, types.Relationship{Head: jobID, Relation: types.RelOfferedBy, Tail: companyID})
	}
	s.Relationships = append(s.Relationships, types.Relationship{Head: s.MajorID, Relation: types.RelTargetsJob, Tail: jobID})
	return true
}
