// Package service реализует бизнес-логику сервиса dealerhub.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/dealerhub-system/internal/hierarchy"
	"github.com/mmeshcher/dealerhub-system/internal/model"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateAccount(ctx context.Context, acc *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByMobile(ctx context.Context, mobileNumber string) (*model.Account, error)
	ListSubordinates(ctx context.Context, creatorID string) ([]model.Account, error)
	UpdateAccountStatus(ctx context.Context, id string, status model.AccountStatus) error
	DeleteAccount(ctx context.Context, id string) error
	Transfer(ctx context.Context, actorID, targetID string, quantity int64, direction model.Direction) (*model.Transfer, error)
	ListTransfers(ctx context.Context, accountID string) ([]model.Transfer, error)
	ListCodes(ctx context.Context, ownerID string) ([]model.Code, error)
}

// IdentityProvider описывает контракт внешнего провайдера идентификации.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password string) (string, error)
	DeleteIdentity(ctx context.Context, id string) error
}

// Service содержит бизнес-логику сервиса dealerhub.
type Service struct {
	repo     Repository
	identity IdentityProvider
}

// NewService создаёт новый сервис с указанным репозиторием и провайдером
// идентификации. Провайдер может быть nil: тогда идентификаторы выдаются локально.
func NewService(repo Repository, identity IdentityProvider) *Service {
	return &Service{
		repo:     repo,
		identity: identity,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Authenticate проверяет номер телефона и пароль и возвращает учётную запись.
func (s *Service) Authenticate(ctx context.Context, mobileNumber, password string) (*model.Account, error) {
	acc, err := s.repo.GetAccountByMobile(ctx, mobileNumber)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if acc.Status != model.AccountStatusActive {
		return nil, model.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)) != nil {
		return nil, model.ErrInvalidCredentials
	}

	return acc, nil
}

// CreateAccountParams содержит данные для создания учётной записи дилера.
type CreateAccountParams struct {
	Name         string
	Email        string
	MobileNumber string
	Password     string
	Role         model.Role
	Address      string
	ShopName     string
	DealerCode   string
}

// CreateAccount создаёт подчинённую учётную запись от имени актора.
// Роль актора должна допускать создание запрошенной роли; новая запись
// начинает с нулевым балансом.
func (s *Service) CreateAccount(ctx context.Context, actorID string, params CreateAccountParams) (*model.Account, error) {
	actor, err := s.repo.GetAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if !hierarchy.CanCreate(actor.Role, params.Role) {
		return nil, fmt.Errorf("%w: %s cannot create %s", model.ErrPolicyViolation, actor.Role, params.Role)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var id string
	if s.identity != nil {
		id, err = s.identity.CreateIdentity(ctx, params.Email, params.Password)
		if err != nil {
			return nil, err
		}
	} else {
		id = uuid.NewString()
	}

	acc := &model.Account{
		ID:           id,
		Name:         params.Name,
		Email:        params.Email,
		MobileNumber: params.MobileNumber,
		PasswordHash: passwordHash,
		Role:         params.Role,
		Status:       model.AccountStatusActive,
		CreatedBy:    &actor.ID,
		Address:      params.Address,
		ShopName:     params.ShopName,
		DealerCode:   params.DealerCode,
		Balance:      0,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateAccount(ctx, acc); err != nil {
		// Запись не сохранилась: созданная личность осталась бы без профиля.
		if s.identity != nil {
			_ = s.identity.DeleteIdentity(ctx, id)
		}
		return nil, err
	}

	return acc, nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (s *Service) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// ListSubordinates возвращает учётные записи, созданные указанным актором.
func (s *Service) ListSubordinates(ctx context.Context, actorID string) ([]model.Account, error) {
	return s.repo.ListSubordinates(ctx, actorID)
}

// SetAccountStatus переключает состояние учётной записи.
func (s *Service) SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) error {
	if status != model.AccountStatusActive && status != model.AccountStatusInactive {
		return fmt.Errorf("unknown account status %q", status)
	}
	return s.repo.UpdateAccountStatus(ctx, id, status)
}

// DeleteAccount удаляет учётную запись и её внешнюю личность.
// Принадлежащие коды и журнал перемещений не каскадируются.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.repo.GetAccount(ctx, id); err != nil {
		return err
	}

	if s.identity != nil {
		if err := s.identity.DeleteIdentity(ctx, id); err != nil {
			return err
		}
	}

	return s.repo.DeleteAccount(ctx, id)
}

// Transfer перемещает quantity кодов между актором и целевой учётной записью.
// Количество и направление проверяются до открытия транзакции.
func (s *Service) Transfer(ctx context.Context, actorID, targetID string, quantity int64, direction model.Direction) (*model.TransferResult, error) {
	if quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}
	if direction != model.DirectionAssign && direction != model.DirectionRetrieve {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidDirection, direction)
	}

	record, err := s.repo.Transfer(ctx, actorID, targetID, quantity, direction)
	if err != nil {
		return nil, err
	}

	return &model.TransferResult{Quantity: record.Quantity}, nil
}

// ListTransfers возвращает журнал перемещений учётной записи.
func (s *Service) ListTransfers(ctx context.Context, accountID string) ([]model.Transfer, error) {
	return s.repo.ListTransfers(ctx, accountID)
}

// ListCodes возвращает доступные коды учётной записи.
func (s *Service) ListCodes(ctx context.Context, ownerID string) ([]model.Code, error) {
	return s.repo.ListCodes(ctx, ownerID)
}

// BootstrapAdminParams содержит данные корневого администратора из конфигурации.
type BootstrapAdminParams struct {
	Name         string
	Email        string
	MobileNumber string
	Password     string
}

// adminBootstrapBalance — стартовый баланс корневого администратора.
// Значение витринное: при перемещениях баланс Admin не читается и не меняется.
const adminBootstrapBalance = 99999

// BootstrapAdmin создаёт корневого администратора, если учётной записи
// с настроенным номером телефона ещё нет. Пустой номер отключает bootstrap.
func (s *Service) BootstrapAdmin(ctx context.Context, params BootstrapAdminParams) (*model.Account, error) {
	if params.MobileNumber == "" {
		return nil, nil
	}

	existing, err := s.repo.GetAccountByMobile(ctx, params.MobileNumber)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var id string
	if s.identity != nil {
		id, err = s.identity.CreateIdentity(ctx, params.Email, params.Password)
		if err != nil {
			return nil, err
		}
	} else {
		id = uuid.NewString()
	}

	admin := &model.Account{
		ID:           id,
		Name:         params.Name,
		Email:        params.Email,
		MobileNumber: params.MobileNumber,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Status:       model.AccountStatusActive,
		CreatedBy:    nil,
		ShopName:     "Admin Control",
		DealerCode:   "ROOT",
		Balance:      adminBootstrapBalance,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.CreateAccount(ctx, admin); err != nil {
		return nil, err
	}

	return admin, nil
}
