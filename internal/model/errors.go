package model

import "errors"

// Ошибки доменного уровня. Обработчики сопоставляют их с errorKind ответа
// через errors.Is, поэтому все слои обязаны оборачивать причины с %w.
var (
	// ErrAccountNotFound возвращается, если учётная запись не найдена.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists возвращается при попытке создать учётную запись
	// с занятым email или номером телефона.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidQuantity возвращается при неположительном количестве кодов.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrInvalidDirection возвращается при неизвестном направлении операции.
	ErrInvalidDirection = errors.New("unknown transfer direction")
	// ErrInsufficientBalance возвращается, когда баланса не хватает для операции.
	ErrInsufficientBalance = errors.New("insufficient code balance")
	// ErrInsufficientCodes возвращается, когда фактическое число доступных кодов
	// меньше запрошенного. Проверяется отдельно от баланса: счётчик и реальное
	// количество кодов могут разойтись.
	ErrInsufficientCodes = errors.New("not enough available codes")
	// ErrTransferFailed возвращается, если транзакция не зафиксировалась
	// после исчерпания бюджета повторов.
	ErrTransferFailed = errors.New("transfer could not be committed")
	// ErrIdentity возвращается при сбое внешнего провайдера идентификации.
	ErrIdentity = errors.New("identity provider failure")
	// ErrPolicyViolation возвращается, когда роль актора не даёт права на действие.
	ErrPolicyViolation = errors.New("role policy violation")
	// ErrInvalidCredentials возвращается при неверном номере телефона или пароле.
	ErrInvalidCredentials = errors.New("invalid mobile number or password")
)

// ErrorKind возвращает машиночитаемый код ошибки для ответа API.
// Для нераспознанных ошибок возвращается "InternalError".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return "AccountNotFound"
	case errors.Is(err, ErrAccountExists):
		return "AccountExists"
	case errors.Is(err, ErrInvalidQuantity):
		return "InvalidQuantity"
	case errors.Is(err, ErrInvalidDirection):
		return "InvalidDirection"
	case errors.Is(err, ErrInsufficientBalance):
		return "InsufficientBalance"
	case errors.Is(err, ErrInsufficientCodes):
		return "InsufficientCodes"
	case errors.Is(err, ErrTransferFailed):
		return "TransferFailed"
	case errors.Is(err, ErrIdentity):
		return "IdentityError"
	case errors.Is(err, ErrPolicyViolation):
		return "PolicyViolation"
	case errors.Is(err, ErrInvalidCredentials):
		return "InvalidCredentials"
	default:
		return "InternalError"
	}
}
