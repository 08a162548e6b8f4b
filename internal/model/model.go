// Package model содержит доменные сущности сервиса dealerhub.
package model

import "time"

// Role описывает роль учётной записи в иерархии дилеров.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleSuper       Role = "Super"
	RoleDistributor Role = "Distributor"
	RoleRetailer    Role = "Retailer"
)

// AccountStatus описывает состояние учётной записи.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// CodeStatus описывает состояние кода активации.
type CodeStatus string

const (
	// CodeStatusAvailable — код принадлежит владельцу и может быть передан.
	CodeStatusAvailable CodeStatus = "available"
	// CodeStatusUsed — код активирован в устройстве.
	// Переход available → used выполняется вне этого сервиса; сервис
	// оперирует только доступными кодами.
	CodeStatusUsed CodeStatus = "used"
)

// Direction описывает направление операции перемещения кодов.
type Direction string

const (
	// DirectionAssign — актор передаёт коды целевой учётной записи.
	DirectionAssign Direction = "assign"
	// DirectionRetrieve — актор забирает коды у целевой учётной записи.
	DirectionRetrieve Direction = "retrieve"
)

// TransferType описывает тип записи в журнале перемещений.
type TransferType string

const (
	TransferTypeAssigned  TransferType = "assigned"
	TransferTypeRetrieved TransferType = "retrieved"
)

// Account представляет учётную запись дилера.
type Account struct {
	ID           string
	Name         string
	Email        string
	MobileNumber string
	PasswordHash []byte
	Role         Role
	Status       AccountStatus
	// CreatedBy хранит идентификатор создавшей учётной записи.
	// Для корневых администраторов — nil.
	CreatedBy  *string
	Address    string
	ShopName   string
	DealerCode string
	// Balance — количество доступных кодов во владении.
	// Инвариант: равен числу записей codes со статусом available у данного владельца.
	Balance   int64
	CreatedAt time.Time
}

// Code представляет сгенерированный код активации.
type Code struct {
	ID       string
	Token    string
	OwnerID  string
	IssuedBy string
	IssuedAt time.Time
	Status   CodeStatus
}

// Transfer описывает одну запись журнала перемещений кодов.
// Запись неизменяема и хранится в подреестре целевой учётной записи.
type Transfer struct {
	ID        string
	AccountID string
	FromID    string
	ToID      string
	FromName  string
	ToName    string
	Quantity  int64
	Type      TransferType
	CreatedAt time.Time
}

// TransferResult содержит итог успешной операции перемещения.
type TransferResult struct {
	Quantity int64
}
