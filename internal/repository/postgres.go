// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/dealerhub-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// inTransaction выполняет fn в одной транзакции с повтором при конфликтах.
// Повторяются только сбои сериализации и дедлоки; бизнес-ошибки прерывают
// транзакцию сразу. Тело fn не должно иметь побочных эффектов вне транзакции.
func (r *PostgresRepository) inTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return markRetryable(fmt.Errorf("begin tx: %w", err))
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return markRetryable(err)
		}

		if err := tx.Commit(ctx); err != nil {
			return markRetryable(fmt.Errorf("commit tx: %w", err))
		}

		return nil
	})
}

// markRetryable помечает конфликтные ошибки PostgreSQL как повторяемые для go-retry.
func markRetryable(err error) error {
	if isWriteConflict(err) {
		return retry.RetryableError(err)
	}
	return err
}

func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateAccount сохраняет новую учётную запись.
func (r *PostgresRepository) CreateAccount(ctx context.Context, acc *model.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts
		 (id, name, email, mobile_number, password_hash, role, status, created_by, address, shop_name, dealer_code, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		acc.ID, acc.Name, acc.Email, acc.MobileNumber, acc.PasswordHash,
		string(acc.Role), string(acc.Status), acc.CreatedBy,
		acc.Address, acc.ShopName, acc.DealerCode, acc.Balance, acc.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", model.ErrAccountExists, acc.Email)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

const accountColumns = `id, name, email, mobile_number, password_hash, role, status, created_by, address, shop_name, dealer_code, balance, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a      model.Account
		role   string
		status string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.MobileNumber, &a.PasswordHash,
		&role, &status, &a.CreatedBy, &a.Address, &a.ShopName, &a.DealerCode,
		&a.Balance, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Role = model.Role(role)
	a.Status = model.AccountStatus(status)
	return &a, nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetAccountByMobile возвращает учётную запись по номеру телефона.
func (r *PostgresRepository) GetAccountByMobile(ctx context.Context, mobileNumber string) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE mobile_number = $1`, mobileNumber)
	return scanAccount(row)
}

// ListSubordinates возвращает учётные записи, созданные указанным актором.
// Возвращается только один уровень иерархии, без транзитивного обхода.
func (r *PostgresRepository) ListSubordinates(ctx context.Context, creatorID string) ([]model.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts
		 WHERE created_by = $1
		 ORDER BY created_at DESC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("select subordinates: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return accounts, nil
}

// UpdateAccountStatus переключает состояние учётной записи (active/inactive).
func (r *PostgresRepository) UpdateAccountStatus(ctx context.Context, id string, status model.AccountStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount удаляет учётную запись. Принадлежащие ей коды и записи
// журнала не затрагиваются и остаются за удалённым идентификатором.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}
