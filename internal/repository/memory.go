package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/dealerhub-system/internal/hierarchy"
	"github.com/mmeshcher/dealerhub-system/internal/model"
)

// MemoryRepository — реализация хранилища в памяти с той же семантикой
// перемещений, что и у PostgresRepository. Используется в тестах движка
// и для локального запуска без БД.
type MemoryRepository struct {
	mu        sync.Mutex
	accounts  map[string]*model.Account
	codes     map[string]*model.Code
	transfers map[string][]model.Transfer
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:  make(map[string]*model.Account),
		codes:     make(map[string]*model.Code),
		transfers: make(map[string][]model.Transfer),
	}
}

// Close освобождает ресурсы хранилища.
func (r *MemoryRepository) Close() error { return nil }

// CreateAccount сохраняет новую учётную запись.
func (r *MemoryRepository) CreateAccount(ctx context.Context, acc *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == acc.Email || existing.MobileNumber == acc.MobileNumber {
			return fmt.Errorf("%w: %s", model.ErrAccountExists, acc.Email)
		}
	}

	clone := *acc
	r.accounts[acc.ID] = &clone
	return nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *MemoryRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getAccountLocked(id)
}

func (r *MemoryRepository) getAccountLocked(id string) (*model.Account, error) {
	acc, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, id)
	}
	clone := *acc
	return &clone, nil
}

// GetAccountByMobile возвращает учётную запись по номеру телефона.
func (r *MemoryRepository) GetAccountByMobile(ctx context.Context, mobileNumber string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, acc := range r.accounts {
		if acc.MobileNumber == mobileNumber {
			clone := *acc
			return &clone, nil
		}
	}
	return nil, model.ErrAccountNotFound
}

// ListSubordinates возвращает учётные записи, созданные указанным актором.
func (r *MemoryRepository) ListSubordinates(ctx context.Context, creatorID string) ([]model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Account
	for _, acc := range r.accounts {
		if acc.CreatedBy != nil && *acc.CreatedBy == creatorID {
			res = append(res, *acc)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpdateAccountStatus переключает состояние учётной записи.
func (r *MemoryRepository) UpdateAccountStatus(ctx context.Context, id string, status model.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	acc.Status = status
	return nil
}

// DeleteAccount удаляет учётную запись. Коды и журнал остаются нетронутыми.
func (r *MemoryRepository) DeleteAccount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return model.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

// Transfer атомарно перемещает quantity кодов между актором и целевой
// учётной записью. Мьютекс играет роль границы транзакции: все проверки
// выполняются до первой мутации, поэтому отказ не оставляет частичных изменений.
func (r *MemoryRepository) Transfer(ctx context.Context, actorID, targetID string, quantity int64, direction model.Direction) (*model.Transfer, error) {
	if quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	actor, ok := r.accounts[actorID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, actorID)
	}
	target, ok := r.accounts[targetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, targetID)
	}

	now := time.Now().UTC()

	switch direction {
	case model.DirectionAssign:
		return r.assignLocked(actor, target, quantity, now)
	case model.DirectionRetrieve:
		return r.retrieveLocked(actor, target, quantity, now)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidDirection, direction)
	}
}

func (r *MemoryRepository) assignLocked(actor, target *model.Account, quantity int64, now time.Time) (*model.Transfer, error) {
	if hierarchy.IsGenerationAuthority(actor.Role) {
		for i := int64(0); i < quantity; i++ {
			id := uuid.NewString()
			r.codes[id] = &model.Code{
				ID:       id,
				Token:    strings.ToUpper(id[:8]),
				OwnerID:  target.ID,
				IssuedBy: actor.ID,
				IssuedAt: now,
				Status:   model.CodeStatusAvailable,
			}
		}
	} else {
		if actor.Balance < quantity {
			return nil, model.ErrInsufficientBalance
		}
		if err := r.reassignLocked(actor.ID, target.ID, quantity); err != nil {
			return nil, err
		}
		actor.Balance -= quantity
	}

	target.Balance += quantity

	record := model.Transfer{
		ID:        uuid.NewString(),
		AccountID: target.ID,
		FromID:    actor.ID,
		ToID:      target.ID,
		FromName:  actor.Name,
		ToName:    target.Name,
		Quantity:  quantity,
		Type:      model.TransferTypeAssigned,
		CreatedAt: now,
	}
	r.transfers[target.ID] = append(r.transfers[target.ID], record)
	return &record, nil
}

func (r *MemoryRepository) retrieveLocked(actor, target *model.Account, quantity int64, now time.Time) (*model.Transfer, error) {
	if target.Balance < quantity {
		return nil, model.ErrInsufficientBalance
	}
	if err := r.reassignLocked(target.ID, actor.ID, quantity); err != nil {
		return nil, err
	}

	if !hierarchy.IsGenerationAuthority(actor.Role) {
		actor.Balance += quantity
	}
	target.Balance -= quantity

	record := model.Transfer{
		ID:        uuid.NewString(),
		AccountID: target.ID,
		FromID:    target.ID,
		ToID:      actor.ID,
		FromName:  target.Name,
		ToName:    actor.Name,
		Quantity:  quantity,
		Type:      model.TransferTypeRetrieved,
		CreatedAt: now,
	}
	r.transfers[target.ID] = append(r.transfers[target.ID], record)
	return &record, nil
}

// reassignLocked переводит ровно quantity доступных кодов от fromID к toID.
// Выбор детерминирован в пределах вызова (сортировка по идентификатору).
// Владение меняется только после проверки, что кодов достаточно.
func (r *MemoryRepository) reassignLocked(fromID, toID string, quantity int64) error {
	var ids []string
	for id, c := range r.codes {
		if c.OwnerID == fromID && c.Status == model.CodeStatusAvailable {
			ids = append(ids, id)
		}
	}
	if int64(len(ids)) < quantity {
		return fmt.Errorf("%w: found %d of %d", model.ErrInsufficientCodes, len(ids), quantity)
	}

	sort.Strings(ids)
	for _, id := range ids[:quantity] {
		r.codes[id].OwnerID = toID
	}
	return nil
}

// ListTransfers возвращает журнал перемещений учётной записи, новые записи первыми.
func (r *MemoryRepository) ListTransfers(ctx context.Context, accountID string) ([]model.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := r.transfers[accountID]
	res := make([]model.Transfer, len(src))
	copy(res, src)
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// ListCodes возвращает доступные коды указанного владельца.
func (r *MemoryRepository) ListCodes(ctx context.Context, ownerID string) ([]model.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Code
	for _, c := range r.codes {
		if c.OwnerID == ownerID && c.Status == model.CodeStatusAvailable {
			res = append(res, *c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
