package entity

// Roles que pueden venir en el token.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleBodeguero  = "bodeguero"
	RoleVendedor   = "vendedor"
)

// Scope ámbito de tenant bajo el cual se autoriza una operación.
// Se pasa explícitamente a cada caso de uso; nunca se infiere de estado global.
type Scope struct {
	OrganizationID string
	UserID         string
	SuperAdmin     bool // omite el filtro por organización sobre filas propias
}

// Valid indica si el ámbito permite operar (organización presente o super admin).
func (s Scope) Valid() bool {
	return s.SuperAdmin || s.OrganizationID != ""
}

// Owns indica si la fila de la organización dada es visible en este ámbito.
func (s Scope) Owns(organizationID string) bool {
	if s.SuperAdmin {
		return true
	}
	return s.OrganizationID != "" && s.OrganizationID == organizationID
}
