package entity

// UserState состояние проверяющего в диалоге
type UserState string

const (
	StateMainMenu       UserState = "main_menu"       // В главном меню
	StateAwaitingPhoto  UserState = "awaiting_photo"  // Ожидание фото детали
	StateProcessing     UserState = "processing"      // Обработка изображения
	StateAwaitingReview UserState = "awaiting_review" // Ожидание вердикта по инспекции
)

// User представляет проверяющего в Telegram
type User struct {
	ID           int64     // Telegram User ID
	ChatID       int64     // Telegram Chat ID
	State        UserState // Текущее состояние пользователя
	InspectionID uint      // Инспекция, которую пользователь сейчас проверяет
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
	if state != StateAwaitingReview {
		u.InspectionID = 0
	}
}

// BeginReview переводит пользователя к проверке инспекции.
func (u *User) BeginReview(inspectionID uint) {
	u.State = StateAwaitingReview
	u.InspectionID = inspectionID
}
