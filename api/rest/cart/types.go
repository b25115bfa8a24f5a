package cart

// contains data for adding an item to the cart
type AddItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CartResponse wraps the cart contents for API responses
type CartResponse struct {
	Items any `json:"items"`
}

// SessionInfoResponse reports session state for the storefront frontend
type SessionInfoResponse struct {
	HasSession bool   `json:"has_session"`
	NonceSeed  string `json:"nonce_seed"`
}
