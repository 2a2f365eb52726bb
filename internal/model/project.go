package model

import "time"

type Project struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	RepoURL        string     `gorm:"size:500;not null;uniqueIndex" json:"repo_url"`
	Name           string     `gorm:"size:200;not null" json:"name"`
	ReportURL      string     `gorm:"size:500" json:"report_url,omitempty"`
	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectSnapshot holds the serialized result of the latest successful run.
type ProjectSnapshot struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ProjectID int64     `gorm:"not null;uniqueIndex" json:"project_id"`
	Payload   string    `gorm:"type:longtext" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProjectSnapshot) TableName() string {
	return "project_snapshots"
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Project{},
		&AnalysisJob{},
		&ClassMetadata{},
		&ApiEndpoint{},
		&LogStatement{},
		&PiiPciFinding{},
		&ProjectSnapshot{},
	}
}
