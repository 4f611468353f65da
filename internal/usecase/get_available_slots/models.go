package get_available_slots

import (
	"time"

	"github.com/m04kA/AppointmentService/pkg/types"
)

// Request модель запроса на получение слотов
type Request struct {
	ServiceID int64     // ID услуги из каталога
	Date      time.Time // Календарная дата (время игнорируется)
}

// Response модель ответа со списком слотов
type Response struct {
	Date            time.Time // Дата, на которую запрашивались слоты
	ServiceID       int64     // ID услуги
	DurationMinutes int       // Длительность услуги
	Closed          bool      // Выходной день: слотов нет
	Slots           []Slot    // Слоты в хронологическом порядке
}

// Slot модель временного слота
type Slot struct {
	Time      types.TimeString // Время начала слота (например, "10:00")
	Available bool             // Можно ли забронировать
}
