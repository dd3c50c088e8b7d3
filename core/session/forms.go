package session

import "github.com/trezcool/practicehub/core"

// registration payloads, one per role

type (
	TeacherForm struct {
		FirstName       string `json:"firstName" validate:"required"`
		LastName        string `json:"lastName" validate:"required"`
		Email           string `json:"email" validate:"required,email"`
		Phone           string `json:"phone,omitempty"`
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"-" validate:"eqfield=Password"`
	}

	AdminForm struct {
		Username        string `json:"username" validate:"required,min=3,alphanum_"`
		Email           string `json:"email" validate:"required,email"`
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"-" validate:"eqfield=Password"`
	}

	StudentForm struct {
		Username        string `json:"username" validate:"required,min=3,alphanum_"`
		Email           string `json:"email" validate:"required,email"`
		FirstName       string `json:"firstName,omitempty"`
		LastName        string `json:"lastName,omitempty"`
		InstitutionID   string `json:"institutionId,omitempty"`
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"-" validate:"eqfield=Password"`
	}
)

type registrationForm interface {
	clean()
}

func (f *TeacherForm) clean() {
	f.FirstName = core.CleanString(f.FirstName)
	f.LastName = core.CleanString(f.LastName)
	f.Email = core.CleanString(f.Email, true /* lower */)
	f.Phone = core.CleanString(f.Phone)
}

func (f *AdminForm) clean() {
	f.Username = core.CleanString(f.Username, true /* lower */)
	f.Email = core.CleanString(f.Email, true /* lower */)
}

func (f *StudentForm) clean() {
	f.Username = core.CleanString(f.Username, true /* lower */)
	f.Email = core.CleanString(f.Email, true /* lower */)
	f.FirstName = core.CleanString(f.FirstName)
	f.LastName = core.CleanString(f.LastName)
	f.InstitutionID = core.CleanString(f.InstitutionID)
}
