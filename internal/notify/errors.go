package notify

import "errors"

var (
	// ErrDeliveryFailed возвращается, когда письмо не удалось отправить
	ErrDeliveryFailed = errors.New("notify: delivery failed")

	// ErrNotConfigured возвращается, когда отправитель создан без клиента
	ErrNotConfigured = errors.New("notify: sender not configured")

	// ErrNoRecipient возвращается, когда адрес получателя пуст
	ErrNoRecipient = errors.New("notify: recipient address is empty")

	// ErrRender возвращается при ошибке шаблона письма
	ErrRender = errors.New("notify: failed to render message")
)
