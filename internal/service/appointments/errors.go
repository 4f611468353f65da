package appointments

import "errors"

var (
	// ErrAppointmentNotFound возвращается, когда запись не найдена
	ErrAppointmentNotFound = errors.New("appointments: appointment not found")

	// ErrAccessDenied возвращается, когда email не совпадает с email клиента
	ErrAccessDenied = errors.New("appointments: access denied")

	// ErrCannotCancel возвращается, когда запись уже отменена или уже прошла
	ErrCannotCancel = errors.New("appointments: appointment cannot be cancelled")

	// ErrStatusConflict возвращается, когда статус изменился конкурентно
	ErrStatusConflict = errors.New("appointments: status changed concurrently")

	// ErrSlotConflict возвращается, когда восстановленная запись пересекается с другой активной
	ErrSlotConflict = errors.New("appointments: slot is taken by another appointment")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("appointments: invalid input data")

	// ErrInternal возвращается при внутренних ошибках сервиса
	ErrInternal = errors.New("appointments: internal error")
)
