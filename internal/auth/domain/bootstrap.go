package domain

// BootstrapData creates the first superadmin on an empty system.
type BootstrapData struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewPrincipal is the input for creating a principal.
type NewPrincipal struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role" swaggertype:"string" enums:"superadmin,admin,manager,staff"`
}
