package create_appointment

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput возвращается при некорректных входных данных (обёрнут в ValidationError)
	ErrInvalidInput = errors.New("create_appointment: invalid input data")

	// ErrServiceUnavailable возвращается, когда услуги нет в каталоге или она не бронируется
	ErrServiceUnavailable = errors.New("create_appointment: service unavailable")

	// ErrSlotUnavailable возвращается, когда слот занят, не существует или уже прошёл
	ErrSlotUnavailable = errors.New("create_appointment: slot unavailable")

	// ErrInternal возвращается при внутренних ошибках usecase
	ErrInternal = errors.New("create_appointment: internal error")
)

// FieldError ошибка одного поля запроса
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError содержит все некорректные поля запроса, а не только первое
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrInvalidInput)
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
