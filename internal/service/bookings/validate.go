package bookings

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"slotbook/backend/internal/service"
)

const (
	MinDurationMins = 15
	MaxDurationMins = 8 * 60
)

var validate = validator.New()

type customer struct {
	name  string
	email string
	phone *string
	notes *string
}

func validateCustomer(in BookingInput) (customer, error) {
	name := strings.TrimSpace(in.CustomerName)
	if n := utf8.RuneCountInString(name); n < 2 || n > 80 {
		return customer{}, service.Invalid("customer_name", "must be 2 to 80 characters")
	}
	email := strings.TrimSpace(in.CustomerEmail)
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return customer{}, service.Invalid("customer_email", "must be a valid email address")
	}
	phone := service.TrimOptional(&in.CustomerPhone)
	if phone != nil && utf8.RuneCountInString(*phone) > 30 {
		return customer{}, service.Invalid("customer_phone", "must be at most 30 characters")
	}
	notes := service.TrimOptional(&in.Notes)
	if notes != nil && utf8.RuneCountInString(*notes) > 500 {
		return customer{}, service.Invalid("notes", "must be at most 500 characters")
	}
	return customer{name: name, email: email, phone: phone, notes: notes}, nil
}

// bookingDuration resolves the requested length; zero means the service
// default.
func bookingDuration(mins int, fallback time.Duration) (time.Duration, error) {
	if mins == 0 {
		return fallback, nil
	}
	if mins < MinDurationMins || mins > MaxDurationMins {
		return 0, service.Invalid("duration_mins", "must be between 15 and 480")
	}
	return time.Duration(mins) * time.Minute, nil
}
