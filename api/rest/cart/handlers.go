package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/internal/errors"
	"codeberg.org/storefront/server/internal/middleware"
)

// payload key the cart lives under
const cartKey = "cart"

// fallback nonce seed for visitors without any session
const anonymousNonceSeed = "anonymous"

// returns the current cart contents
func GetCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		manager := middleware.SessionFrom(c)

		items, ok := manager.Get(cartKey)
		if !ok {
			items = []any{}
		}

		c.JSON(http.StatusOK, CartResponse{Items: items})
	}
}

// adds an item to the cart and requests the session cookie, since a cart
// that changed is what makes the session worth keeping
func AddItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.ValidationError(c, err)
			return
		}

		manager := middleware.SessionFrom(c)

		existing, _ := manager.Get(cartKey)
		items, _ := existing.([]any)

		items = append(items, map[string]any{
			"product_id": req.ProductID,
			"quantity":   req.Quantity,
		})

		manager.Set(cartKey, items)
		manager.SetCookieIfRequested(true)

		c.JSON(http.StatusOK, CartResponse{Items: items})
	}
}

// empties the cart without tearing down the session
func ClearCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		manager := middleware.SessionFrom(c)
		manager.Unset(cartKey)

		c.JSON(http.StatusOK, CartResponse{Items: []any{}})
	}
}

// destroys the session after checkout or logout: record, cache entry and
// cookie all go, and the request continues under a fresh identity
func DestroySessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		manager := middleware.SessionFrom(c)

		if err := manager.Destroy(c.Request.Context()); err != nil {
			errors.InternalError(c, "failed to destroy session", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "session destroyed"})
	}
}

// reports session state and a per-visitor nonce seed, stable across
// requests for any visitor with a session
func SessionInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		manager := middleware.SessionFrom(c)

		seed := sha256.Sum256([]byte(manager.IdentityForNonce(anonymousNonceSeed)))

		c.JSON(http.StatusOK, SessionInfoResponse{
			HasSession: manager.HasSession(),
			NonceSeed:  hex.EncodeToString(seed[:8]),
		})
	}
}
