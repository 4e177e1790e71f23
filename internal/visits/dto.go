package visits

type CreateVisitRequest struct {
	Date         string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string   `json:"time" validate:"required,datetime=15:04"`
	Location     string   `json:"location" validate:"required,max=500"`
	LocationLink string   `json:"locationLink,omitempty" validate:"omitempty,max=1000"`
	Notes        string   `json:"notes,omitempty" validate:"max=2000"`
	VisitorIDs   []string `json:"visitorIds" validate:"required,min=1,max=10,dive,required"`
}

// ReasonRequest carries the mandatory free text of reject, incomplete and
// reschedule.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// CompleteRequest carries the site survey. Images are base64 payloads,
// optionally in data URL form.
type CompleteRequest struct {
	Length float64  `json:"length" validate:"gt=0"`
	Width  float64  `json:"width" validate:"gt=0"`
	Height float64  `json:"height" validate:"gt=0"`
	Images []string `json:"images" validate:"required,min=1,max=20,dive,required"`
	Notes  string   `json:"notes,omitempty" validate:"max=2000"`
}

type StatusSummaryRequest struct {
	QuotationIDs []string `json:"quotationIds" validate:"required,min=1,max=200,dive,required"`
}

type ListAssignedRequest struct {
	VisitorID string
	Status    VisitStatus
}
