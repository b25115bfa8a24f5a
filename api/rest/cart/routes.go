package cart

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/cart", GetCartHandler())
	router.POST("/cart/items", AddItemHandler())
	router.DELETE("/cart", ClearCartHandler())

	router.GET("/session", SessionInfoHandler())
	router.POST("/session/destroy", DestroySessionHandler())
}
