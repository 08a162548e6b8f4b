package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/dealerhub-system/internal/hierarchy"
	"github.com/mmeshcher/dealerhub-system/internal/model"
)

// Transfer атомарно перемещает quantity кодов между актором и целевой учётной записью.
// Вся операция выполняется в одной транзакции: балансы обеих сторон, владение
// кодами и запись журнала меняются вместе или не меняются вовсе. Балансы
// перечитываются под блокировкой внутри транзакции, значения вне её не используются.
func (r *PostgresRepository) Transfer(ctx context.Context, actorID, targetID string, quantity int64, direction model.Direction) (*model.Transfer, error) {
	if quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	var record *model.Transfer

	err := r.inTransaction(ctx, func(tx pgx.Tx) error {
		actor, target, err := lockAccountPair(ctx, tx, actorID, targetID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		switch direction {
		case model.DirectionAssign:
			record, err = r.assign(ctx, tx, actor, target, quantity, now)
		case model.DirectionRetrieve:
			record, err = r.retrieve(ctx, tx, actor, target, quantity, now)
		default:
			err = fmt.Errorf("%w: %q", model.ErrInvalidDirection, direction)
		}
		return err
	})
	if err != nil {
		if isWriteConflict(err) {
			return nil, fmt.Errorf("%w: %v", model.ErrTransferFailed, err)
		}
		return nil, err
	}

	return record, nil
}

// lockAccountPair блокирует обе строки учётных записей FOR UPDATE.
// Блокировки берутся в порядке возрастания идентификаторов, чтобы два
// встречных перемещения не взяли их в противоположном порядке.
func lockAccountPair(ctx context.Context, tx pgx.Tx, actorID, targetID string) (actor, target *model.Account, err error) {
	lock := func(id string) (*model.Account, error) {
		row := tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
		acc, err := scanAccount(row)
		if err != nil {
			if errors.Is(err, model.ErrAccountNotFound) {
				return nil, fmt.Errorf("%w: %s", model.ErrAccountNotFound, id)
			}
			return nil, err
		}
		return acc, nil
	}

	if actorID == targetID {
		actor, err = lock(actorID)
		return actor, actor, err
	}

	if actorID < targetID {
		if actor, err = lock(actorID); err != nil {
			return nil, nil, err
		}
		target, err = lock(targetID)
		return actor, target, err
	}

	if target, err = lock(targetID); err != nil {
		return nil, nil, err
	}
	actor, err = lock(actorID)
	return actor, target, err
}

// assign передаёт quantity кодов от актора целевой учётной записи.
// Admin генерирует новые коды без списания собственного баланса;
// остальные роли передают существующие коды из конечного запаса.
func (r *PostgresRepository) assign(ctx context.Context, tx pgx.Tx, actor, target *model.Account, quantity int64, now time.Time) (*model.Transfer, error) {
	if hierarchy.IsGenerationAuthority(actor.Role) {
		if err := generateCodes(ctx, tx, quantity, target.ID, actor.ID, now); err != nil {
			return nil, err
		}
	} else {
		if actor.Balance < quantity {
			return nil, model.ErrInsufficientBalance
		}
		if err := reassignCodes(ctx, tx, actor.ID, target.ID, quantity); err != nil {
			return nil, err
		}
		if err := addToBalance(ctx, tx, actor.ID, -quantity); err != nil {
			return nil, err
		}
	}

	if err := addToBalance(ctx, tx, target.ID, quantity); err != nil {
		return nil, err
	}

	record := &model.Transfer{
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
	if err := appendTransfer(ctx, tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// retrieve забирает quantity кодов у целевой учётной записи в пользу актора.
// Баланс Admin не участвует в учёте: коды переходят к нему во владение,
// но счётчик не увеличивается.
func (r *PostgresRepository) retrieve(ctx context.Context, tx pgx.Tx, actor, target *model.Account, quantity int64, now time.Time) (*model.Transfer, error) {
	if target.Balance < quantity {
		return nil, model.ErrInsufficientBalance
	}

	if err := reassignCodes(ctx, tx, target.ID, actor.ID, quantity); err != nil {
		return nil, err
	}

	if !hierarchy.IsGenerationAuthority(actor.Role) {
		if err := addToBalance(ctx, tx, actor.ID, quantity); err != nil {
			return nil, err
		}
	}
	if err := addToBalance(ctx, tx, target.ID, -quantity); err != nil {
		return nil, err
	}

	record := &model.Transfer{
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
	if err := appendTransfer(ctx, tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// generateCodes вставляет count новых кодов с владельцем ownerID.
// Токен выводится из идентификатора кода: первые восемь шестнадцатеричных
// символов в верхнем регистре.
func generateCodes(ctx context.Context, tx pgx.Tx, count int64, ownerID, issuedBy string, issuedAt time.Time) error {
	batch := &pgx.Batch{}
	for i := int64(0); i < count; i++ {
		id := uuid.NewString()
		token := strings.ToUpper(id[:8])
		batch.Queue(
			`INSERT INTO codes (id, token, owner_id, issued_by, issued_at, status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, token, ownerID, issuedBy, issuedAt, string(model.CodeStatusAvailable),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := int64(0); i < count; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert code: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}

// reassignCodes переводит ровно quantity доступных кодов от fromID к toID.
// Выборка детерминирована в пределах вызова (ORDER BY id). Если доступных
// кодов меньше запрошенного, транзакция прерывается: целочисленный баланс
// и фактическое число кодов проверяются независимо.
func reassignCodes(ctx context.Context, tx pgx.Tx, fromID, toID string, quantity int64) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE codes SET owner_id = $2
		 WHERE id IN (
			SELECT id FROM codes
			WHERE owner_id = $1 AND status = $4
			ORDER BY id
			LIMIT $3
			FOR UPDATE
		 )`,
		fromID, toID, quantity, string(model.CodeStatusAvailable),
	)
	if err != nil {
		return fmt.Errorf("reassign codes: %w", err)
	}
	if cmdTag.RowsAffected() < quantity {
		return fmt.Errorf("%w: found %d of %d", model.ErrInsufficientCodes, cmdTag.RowsAffected(), quantity)
	}
	return nil
}

func addToBalance(ctx context.Context, tx pgx.Tx, accountID string, delta int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2 WHERE id = $1`,
		accountID, delta,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

func appendTransfer(ctx context.Context, tx pgx.Tx, tr *model.Transfer) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO transfers (id, account_id, from_id, to_id, from_name, to_name, quantity, type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tr.ID, tr.AccountID, tr.FromID, tr.ToID, tr.FromName, tr.ToName,
		tr.Quantity, string(tr.Type), tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// ListTransfers возвращает журнал перемещений учётной записи, новые записи первыми.
func (r *PostgresRepository) ListTransfers(ctx context.Context, accountID string) ([]model.Transfer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, from_id, to_id, from_name, to_name, quantity, type, created_at
		 FROM transfers
		 WHERE account_id = $1
		 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transfers: %w", err)
	}
	defer rows.Close()

	var res []model.Transfer
	for rows.Next() {
		var (
			tr     model.Transfer
			trType string
		)
		if err := rows.Scan(&tr.ID, &tr.AccountID, &tr.FromID, &tr.ToID,
			&tr.FromName, &tr.ToName, &tr.Quantity, &trType, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		tr.Type = model.TransferType(trType)
		res = append(res, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListCodes возвращает доступные коды указанного владельца.
func (r *PostgresRepository) ListCodes(ctx context.Context, ownerID string) ([]model.Code, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, token, owner_id, issued_by, issued_at, status
		 FROM codes
		 WHERE owner_id = $1 AND status = $2
		 ORDER BY issued_at DESC`,
		ownerID, string(model.CodeStatusAvailable),
	)
	if err != nil {
		return nil, fmt.Errorf("select codes: %w", err)
	}
	defer rows.Close()

	var res []model.Code
	for rows.Next() {
		var (
			c      model.Code
			status string
		)
		if err := rows.Scan(&c.ID, &c.Token, &c.OwnerID, &c.IssuedBy, &c.IssuedAt, &status); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		c.Status = model.CodeStatus(status)
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
