package entity

// Product vista mínima del catálogo (solo lectura): etiquetas y búsqueda por SKU/nombre.
type Product struct {
	ID             string
	OrganizationID string
	SKU            string
	Name           string
}
