package transport

import "practice_crm_backend/internal/practices/domain"

// Practices

type SavePracticeRequest struct {
	ID           int64    `json:"id" validate:"required,min=1"`
	Name         string   `json:"name" validate:"required,min=1,max=200"`
	Municipality string   `json:"municipality" validate:"max=100"`
	Email        string   `json:"email" validate:"omitempty,email"`
	Phone        string   `json:"phone" validate:"max=50"`
	Website      string   `json:"website" validate:"omitempty,max=200"`
	Doctors      []string `json:"doctors" validate:"omitempty,dive,min=1,max=200"`
}

// ToDomain converts the request into a practice record. Workflow, pipeline
// and score are left nil; the service preserves any existing sub-records.
func (r SavePracticeRequest) ToDomain() *domain.Practice {
	return &domain.Practice{
		ID:           r.ID,
		Name:         r.Name,
		Municipality: r.Municipality,
		Email:        r.Email,
		Phone:        r.Phone,
		Website:      r.Website,
		Doctors:      r.Doctors,
	}
}

type ImportPracticesRequest struct {
	Practices []SavePracticeRequest `json:"practices" validate:"required,min=1,max=1000,dive"`
}

// ToDomainBatch converts every request item into a practice record.
func (r ImportPracticesRequest) ToDomainBatch() []*domain.Practice {
	items := make([]*domain.Practice, 0, len(r.Practices))
	for _, req := range r.Practices {
		items = append(items, req.ToDomain())
	}
	return items
}

type ImportPracticesResponse struct {
	Imported int `json:"imported"`
}

// Pipeline

type MoveDealRequest struct {
	Stage  string `json:"stage" validate:"required,min=1,max=50"`
	Reason string `json:"reason" validate:"max=500"`
}

type SetDealValueRequest struct {
	Value *float64 `json:"value" validate:"required,min=0"`
}

// Engagement

type EngagementRequest struct {
	Activity string `json:"activity" validate:"required,min=1,max=50"`
}

// Query parameters

type HotLeadsQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

type StalledQuery struct {
	Days int `form:"days" validate:"omitempty,min=1,max=365"`
}
