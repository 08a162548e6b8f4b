package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/dealerhub-system/internal/model"
)

type stubRepo struct {
	accounts map[string]*model.Account

	createdAccount *model.Account
	createErr      error

	transferRecord *model.Transfer
	transferErr    error

	transferActorID   string
	transferTargetID  string
	transferQuantity  int64
	transferDirection model.Direction
	transferCalled    bool

	deletedID string

	transfers []model.Transfer
	codes     []model.Code
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateAccount(ctx context.Context, acc *model.Account) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdAccount = acc
	return nil
}

func (s *stubRepo) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return acc, nil
}

func (s *stubRepo) GetAccountByMobile(ctx context.Context, mobileNumber string) (*model.Account, error) {
	for _, acc := range s.accounts {
		if acc.MobileNumber == mobileNumber {
			return acc, nil
		}
	}
	return nil, model.ErrAccountNotFound
}

func (s *stubRepo) ListSubordinates(ctx context.Context, creatorID string) ([]model.Account, error) {
	return nil, nil
}

func (s *stubRepo) UpdateAccountStatus(ctx context.Context, id string, status model.AccountStatus) error {
	return nil
}

func (s *stubRepo) DeleteAccount(ctx context.Context, id string) error {
	s.deletedID = id
	return nil
}

func (s *stubRepo) Transfer(ctx context.Context, actorID, targetID string, quantity int64, direction model.Direction) (*model.Transfer, error) {
	s.transferCalled = true
	s.transferActorID = actorID
	s.transferTargetID = targetID
	s.transferQuantity = quantity
	s.transferDirection = direction
	if s.transferErr != nil {
		return nil, s.transferErr
	}
	if s.transferRecord != nil {
		return s.transferRecord, nil
	}
	return &model.Transfer{Quantity: quantity}, nil
}

func (s *stubRepo) ListTransfers(ctx context.Context, accountID string) ([]model.Transfer, error) {
	return s.transfers, nil
}

func (s *stubRepo) ListCodes(ctx context.Context, ownerID string) ([]model.Code, error) {
	return s.codes, nil
}

type stubIdentity struct {
	createID  string
	createErr error
	deleteErr error

	deletedID string
}

func (s *stubIdentity) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	return s.createID, s.createErr
}

func (s *stubIdentity) DeleteIdentity(ctx context.Context, id string) error {
	s.deletedID = id
	return s.deleteErr
}

func mustHash(t *testing.T, password string) []byte {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return h
}

func TestTransfer_InvalidQuantity(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	for _, q := range []int64{0, -5} {
		_, err := svc.Transfer(context.Background(), "actor", "target", q, model.DirectionAssign)
		if !errors.Is(err, model.ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", q, err)
		}
	}

	if repo.transferCalled {
		t.Fatalf("repository must not be called for invalid quantity")
	}
}

func TestTransfer_InvalidDirection(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	_, err := svc.Transfer(context.Background(), "actor", "target", 10, model.Direction("grant"))
	if !errors.Is(err, model.ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
	if repo.transferCalled {
		t.Fatalf("repository must not be called for unknown direction")
	}
}

func TestTransfer_Success(t *testing.T) {
	repo := &stubRepo{
		transferRecord: &model.Transfer{Quantity: 30, Type: model.TransferTypeAssigned},
	}
	svc := NewService(repo, nil)

	result, err := svc.Transfer(context.Background(), "dist-1", "ret-1", 30, model.DirectionAssign)
	if err != nil {
		t.Fatalf("Transfer error: %v", err)
	}
	if result.Quantity != 30 {
		t.Fatalf("Quantity = %d, want 30", result.Quantity)
	}
	if repo.transferActorID != "dist-1" || repo.transferTargetID != "ret-1" {
		t.Fatalf("unexpected transfer args: %q -> %q", repo.transferActorID, repo.transferTargetID)
	}
	if repo.transferDirection != model.DirectionAssign {
		t.Fatalf("direction = %q, want assign", repo.transferDirection)
	}
}

func TestTransfer_PropagatesBusinessErrors(t *testing.T) {
	for _, want := range []error{model.ErrInsufficientBalance, model.ErrInsufficientCodes, model.ErrTransferFailed, model.ErrAccountNotFound} {
		repo := &stubRepo{transferErr: want}
		svc := NewService(repo, nil)

		_, err := svc.Transfer(context.Background(), "actor", "target", 10, model.DirectionRetrieve)
		if !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	}
}

func TestAuthenticate_Success(t *testing.T) {
	repo := &stubRepo{
		accounts: map[string]*model.Account{
			"uid-1": {
				ID:           "uid-1",
				MobileNumber: "01700000000",
				PasswordHash: mustHash(t, "correct"),
				Status:       model.AccountStatusActive,
			},
		},
	}
	svc := NewService(repo, nil)

	acc, err := svc.Authenticate(context.Background(), "01700000000", "correct")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if acc.ID != "uid-1" {
		t.Fatalf("account id = %q, want uid-1", acc.ID)
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	repo := &stubRepo{
		accounts: map[string]*model.Account{
			"uid-1": {
				ID:           "uid-1",
				MobileNumber: "01700000000",
				PasswordHash: mustHash(t, "correct"),
				Status:       model.AccountStatusActive,
			},
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.Authenticate(context.Background(), "01700000000", "wrong")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate_InactiveAccount(t *testing.T) {
	repo := &stubRepo{
		accounts: map[string]*model.Account{
			"uid-1": {
				ID:           "uid-1",
				MobileNumber: "01700000000",
				PasswordHash: mustHash(t, "correct"),
				Status:       model.AccountStatusInactive,
			},
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.Authenticate(context.Background(), "01700000000", "correct")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for inactive account, got %v", err)
	}
}

func TestAuthenticate_UnknownMobile(t *testing.T) {
	repo := &stubRepo{accounts: map[string]*model.Account{}}
	svc := NewService(repo, nil)

	_, err := svc.Authenticate(context.Background(), "01700000000", "any")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateAccount_PolicyViolation(t *testing.T) {
	repo := &stubRepo{
		accounts: map[string]*model.Account{
			"dist-1": {ID: "dist-1", Role: model.RoleDistributor},
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.CreateAccount(context.Background(), "dist-1", CreateAccountParams{
		Name:         "Dealer",
		Email:        "d@example.com",
		MobileNumber: "01700000001",
		Password:     "secret",
		Role:         model.RoleDistributor,
	})
	if !errors.Is(err, model.ErrPolicyViolation) {
		t.Fatalf("expected ErrPolicyViolation, got %v", err)
	}
	if repo.createdAccount != nil {
		t.Fatalf("account must not be created on policy violation")
	}
}

func TestCreateAccount_ZeroBalanceAndHierarchyLink(t *testing.T) {
	repo := &stubRepo{
		accounts: map[string]*model.Account{
			"super-1": {ID: "super-1", Role: model.RoleSuper},
		},
	}
	svc := NewService(repo, nil)

	acc, err := svc.CreateAccount(context.Background(), "super-1", CreateAccountParams{
		Name:         "Retailer",
		Email:        "r@example.com",
		MobileNumber: "01700000002",
		Password:     "secret",
		Role:         model.RoleRetailer,
	})
	if err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}
	if acc.Balance != 0 {
		t.Fatalf("balance = %d, want 0", acc.Balance)
	}
	if acc.CreatedBy == nil || *acc.CreatedBy != "super-1" {
		t.Fatalf("createdBy = %v, want super-1", acc.CreatedBy)
	}
	if acc.Status != model.AccountStatusActive {
		t.Fatalf("status = %q, want active", acc.Status)
	}
	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte("secret")) != nil {
		t.Fatalf("stored hash does not match the password")
	}
}

func TestCreateAccount_UsesIdentityProvider(t *testing.T) {
	repo := &stubRepo{
		accounts: map[string]*model.Account{
			"admin-1": {ID: "admin-1", Role: model.RoleAdmin},
		},
	}
	idp := &stubIdentity{createID: "idp-uid-7"}
	svc := NewService(repo, idp)

	acc, err := svc.CreateAccount(context.Background(), "admin-1", CreateAccountParams{
		Name:         "Super",
		Email:        "s@example.com",
		MobileNumber: "01700000003",
		Password:     "secret",
		Role:         model.RoleSuper,
	})
	if err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}
	if acc.ID != "idp-uid-7" {
		t.Fatalf("account id = %q, want idp-uid-7", acc.ID)
	}
}

func TestCreateAccount_RollsBackIdentityOnStoreFailure(t *testing.T) {
	repo := &stubRepo{
		accounts: map[string]*model.Account{
			"admin-1": {ID: "admin-1", Role: model.RoleAdmin},
		},
		createErr: model.ErrAccountExists,
	}
	idp := &stubIdentity{createID: "idp-uid-7"}
	svc := NewService(repo, idp)

	_, err := svc.CreateAccount(context.Background(), "admin-1", CreateAccountParams{
		Name:         "Super",
		Email:        "s@example.com",
		MobileNumber: "01700000003",
		Password:     "secret",
		Role:         model.RoleSuper,
	})
	if !errors.Is(err, model.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if idp.deletedID != "idp-uid-7" {
		t.Fatalf("orphan identity was not removed, deletedID = %q", idp.deletedID)
	}
}

func TestDeleteAccount_PropagatesIdentityError(t *testing.T) {
	repo := &stubRepo{
		accounts: map[string]*model.Account{
			"uid-1": {ID: "uid-1", Role: model.RoleRetailer},
		},
	}
	idp := &stubIdentity{deleteErr: model.ErrIdentity}
	svc := NewService(repo, idp)

	err := svc.DeleteAccount(context.Background(), "uid-1")
	if !errors.Is(err, model.ErrIdentity) {
		t.Fatalf("expected ErrIdentity, got %v", err)
	}
	if repo.deletedID != "" {
		t.Fatalf("account row must not be deleted when identity deletion fails")
	}
}

func TestDeleteAccount_NotFound(t *testing.T) {
	repo := &stubRepo{accounts: map[string]*model.Account{}}
	svc := NewService(repo, nil)

	err := svc.DeleteAccount(context.Background(), "missing")
	if !errors.Is(err, model.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestBootstrapAdmin_SkippedWithoutMobile(t *testing.T) {
	repo := &stubRepo{accounts: map[string]*model.Account{}}
	svc := NewService(repo, nil)

	admin, err := svc.BootstrapAdmin(context.Background(), BootstrapAdminParams{})
	if err != nil {
		t.Fatalf("BootstrapAdmin error: %v", err)
	}
	if admin != nil {
		t.Fatalf("bootstrap must be skipped without a configured mobile number")
	}
}

func TestBootstrapAdmin_ReturnsExisting(t *testing.T) {
	existing := &model.Account{ID: "root", MobileNumber: "01700000000", Role: model.RoleAdmin}
	repo := &stubRepo{accounts: map[string]*model.Account{"root": existing}}
	svc := NewService(repo, nil)

	admin, err := svc.BootstrapAdmin(context.Background(), BootstrapAdminParams{
		MobileNumber: "01700000000",
		Password:     "secret",
	})
	if err != nil {
		t.Fatalf("BootstrapAdmin error: %v", err)
	}
	if admin != existing {
		t.Fatalf("expected existing admin account to be returned")
	}
	if repo.createdAccount != nil {
		t.Fatalf("bootstrap must not create a second admin")
	}
}

func TestBootstrapAdmin_CreatesRootAdmin(t *testing.T) {
	repo := &stubRepo{accounts: map[string]*model.Account{}}
	svc := NewService(repo, nil)

	admin, err := svc.BootstrapAdmin(context.Background(), BootstrapAdminParams{
		Name:         "Root Admin",
		Email:        "root@example.com",
		MobileNumber: "01700000000",
		Password:     "secret",
	})
	if err != nil {
		t.Fatalf("BootstrapAdmin error: %v", err)
	}
	if admin.Role != model.RoleAdmin {
		t.Fatalf("role = %q, want Admin", admin.Role)
	}
	if admin.CreatedBy != nil {
		t.Fatalf("root admin must not have a creator")
	}
	if admin.Balance != adminBootstrapBalance {
		t.Fatalf("balance = %d, want %d", admin.Balance, adminBootstrapBalance)
	}
	if repo.createdAccount == nil {
		t.Fatalf("admin account was not persisted")
	}
}
