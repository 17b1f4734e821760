package models

// ProjectStatus константы статусов проектов.
// Статус движется только вперёд: open -> in_progress -> completed.
const (
	ProjectStatusOpen       = "open"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
)

// BidStatus константы статусов откликов
const (
	BidStatusPending  = "pending"
	BidStatusAccepted = "accepted"
	BidStatusRejected = "rejected"
)

// Роли пользователей платформы
const (
	RoleClient     = "client"
	RoleContractor = "contractor"
	RoleModerator  = "moderator"
	RoleAdmin      = "admin"
)

// ValidProjectStatuses список валидных статусов проектов
var ValidProjectStatuses = map[string]struct{}{
	ProjectStatusOpen:       {},
	ProjectStatusInProgress: {},
	ProjectStatusCompleted:  {},
}

// ValidBidStatuses список валидных статусов откликов
var ValidBidStatuses = map[string]struct{}{
	BidStatusPending:  {},
	BidStatusAccepted: {},
	BidStatusRejected: {},
}

// projectTransitions описывает допустимые переходы статусов проекта.
var projectTransitions = map[string][]string{
	ProjectStatusOpen:       {ProjectStatusInProgress},
	ProjectStatusInProgress: {ProjectStatusCompleted},
	ProjectStatusCompleted:  {},
}

// CanTransitProject проверяет, разрешён ли переход статуса проекта.
func CanTransitProject(from, to string) bool {
	allowed, ok := projectTransitions[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}

// IsValidProjectStatus проверяет известность статуса проекта.
func IsValidProjectStatus(status string) bool {
	_, ok := ValidProjectStatuses[status]
	return ok
}

// IsOverrideRole возвращает true для ролей с правом действовать от имени владельца.
func IsOverrideRole(role string) bool {
	return role == RoleModerator || role == RoleAdmin
}
