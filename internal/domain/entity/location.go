package entity

// Location bodega, tienda o sucursal. Solo lectura: se usa para validar llaves foráneas.
type Location struct {
	ID             string
	OrganizationID string
	Name           string
}
