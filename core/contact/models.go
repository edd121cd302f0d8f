package contact

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/swanstudios/studio/core"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Contact is a message submitted through the public contact form.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	ViewedAt  time.Time `json:"viewed_at"`
}

func (c Contact) IsUrgent() bool { return c.Priority == PriorityUrgent }

type NewContact struct {
	Name     string   `json:"name" validate:"required,max=100"`
	Email    string   `json:"email" validate:"required,email,max=254"`
	Phone    string   `json:"phone" validate:"omitempty,phone"`
	Message  string   `json:"message" validate:"required,max=5000"`
	Priority Priority `json:"priority" validate:"omitempty,oneof=normal urgent"`
}

func (nc *NewContact) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	nc.Phone = core.CleanPhone(nc.Phone)
	nc.Message = core.CleanString(nc.Message)
	if nc.Priority == "" {
		nc.Priority = PriorityNormal
	}
	return validate.Struct(nc)
}

type QueryFilter struct {
	Viewed   *bool    `query:"viewed"`
	Priority Priority `query:"priority"`
	core.Pagination
}

type Page struct {
	Contacts []Contact `json:"contacts"`
	core.PageInfo
}
