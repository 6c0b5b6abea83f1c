package dto

// StudentRequest is used to create or update a student.
type StudentRequest struct {
	Name      string  `json:"name" validate:"required,max=150"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	BirthDate *string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Notes     string  `json:"notes" validate:"max=1000"`
	Active    *bool   `json:"active"`
}

// TeacherRequest is used to create or update a teacher.
type TeacherRequest struct {
	Name   string  `json:"name" validate:"required,max=150"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Phone  *string `json:"phone" validate:"omitempty,max=30"`
	Color  *string `json:"color" validate:"omitempty,hexcolor"`
	Active *bool   `json:"active"`
}

// ModalityRequest is used to create or update a modality.
type ModalityRequest struct {
	Name            string  `json:"name" validate:"required,max=100"`
	Description     string  `json:"description" validate:"max=500"`
	DefaultCapacity int     `json:"defaultCapacity" validate:"gte=0"`
	Color           *string `json:"color" validate:"omitempty,hexcolor"`
	Active          *bool   `json:"active"`
}

// ListQuery holds the shared list parameters.
type ListQuery struct {
	Search    string `form:"search"`
	Active    *bool  `form:"active"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
}
