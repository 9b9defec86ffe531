package types

// JobRecord is one job posting from a market dataset.
type JobRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Headcount     string `json:"headcount,omitempty"`
	Salary        string `json:"salary,omitempty"`
	Category      string `json:"category,omitempty"`
	Education     string `json:"education,omitempty"`
	Majors        string `json:"majors,omitempty"`
	Description   string `json:"description,omitempty"`
	Employer      string `json:"employer,omitempty"`
	Location      string `json:"location,omitempty"`
	EmployerScale string `json:"employer_scale,omitempty"`
	City          string `json:"city,omitempty"`
	Source        string `json:"source,omitempty"`
}

// TalkRecord is a campus recruitment talk.
type TalkRecord struct {
	Name       string `json:"name"`
	Company    string `json:"company"`
	School     string `json:"school"`
	Department string `json:"department"`
}

// FairRecord is a campus job fair.
type FairRecord struct {
	Name      string `json:"name"`
	Organizer string `json:"organizer"`
	Source    string `json:"source,omitempty"`
}

// Hierarchy maps school -> college -> sorted majors.
type Hierarchy map[string]map[string][]string

type DatasetStats struct {
	TotalJobs      int `json:"total_jobs"`
	TotalCompanies int `json:"total_companies"`
	TotalPositions int `json:"total_positions"`
	Categories     int `json:"categories"`
}
