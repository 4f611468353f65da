package appointment

import "errors"

var (
	// ErrAppointmentNotFound возвращается, когда запись не найдена
	ErrAppointmentNotFound = errors.New("appointment.repository: appointment not found")

	// ErrSlotConflict возвращается, когда интервал пересекается с другой активной записью
	ErrSlotConflict = errors.New("appointment.repository: slot conflict")

	// ErrStatusConflict возвращается, когда текущий статус не допускает перехода
	ErrStatusConflict = errors.New("appointment.repository: status conflict")

	// ErrTransactionRequired возвращается, если многошаговая запись вызвана вне транзакции
	ErrTransactionRequired = errors.New("appointment.repository: transaction required")

	// ErrInvalidNotification возвращается при неизвестном типе уведомления
	ErrInvalidNotification = errors.New("appointment.repository: invalid notification kind")

	// ErrBuildQuery возвращается при ошибке построения SQL запроса
	ErrBuildQuery = errors.New("appointment.repository: failed to build query")

	// ErrExecQuery возвращается при ошибке выполнения SQL запроса
	ErrExecQuery = errors.New("appointment.repository: failed to execute query")

	// ErrScanRow возвращается при ошибке сканирования результата запроса
	ErrScanRow = errors.New("appointment.repository: failed to scan row")
)
