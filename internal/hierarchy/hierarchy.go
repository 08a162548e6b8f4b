// Package hierarchy содержит чистую логику ролевой иерархии дилеров.
package hierarchy

import (
	"fmt"

	"github.com/mmeshcher/dealerhub-system/internal/model"
)

// subordinates задаёт, какие роли может создавать каждая роль.
var subordinates = map[model.Role][]model.Role{
	model.RoleAdmin:       {model.RoleAdmin, model.RoleSuper, model.RoleDistributor, model.RoleRetailer},
	model.RoleSuper:       {model.RoleDistributor, model.RoleRetailer},
	model.RoleDistributor: {model.RoleRetailer},
	model.RoleRetailer:    {},
}

// AllowedSubordinateRoles возвращает роли, которые разрешено создавать указанной роли.
func AllowedSubordinateRoles(role model.Role) []model.Role {
	allowed, ok := subordinates[role]
	if !ok {
		return nil
	}
	out := make([]model.Role, len(allowed))
	copy(out, allowed)
	return out
}

// CanCreate сообщает, может ли актор с ролью actor создать учётную запись с ролью target.
func CanCreate(actor, target model.Role) bool {
	for _, r := range subordinates[actor] {
		if r == target {
			return true
		}
	}
	return false
}

// IsGenerationAuthority сообщает, обладает ли роль правом генерации новых кодов.
// Только Admin создаёт коды из ничего; остальные роли передают существующие
// коды из конечного запаса со списанием собственного баланса.
func IsGenerationAuthority(role model.Role) bool {
	return role == model.RoleAdmin
}

// ParseRole преобразует строку в роль или возвращает ошибку для неизвестного значения.
func ParseRole(s string) (model.Role, error) {
	role := model.Role(s)
	if _, ok := subordinates[role]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}
