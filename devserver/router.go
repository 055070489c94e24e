// Package devserver is a local stand-in for the game server, used for demos
// and end-to-end tests of the client.
package devserver

import (
	"github.com/galihrivanto/unipig/api"
	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the gin router
func SetupRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	signed := router.Group("/")
	signed.Use(h.RequirePermission)
	{
		signed.POST(api.AirdropPath, h.Airdrop)
		signed.POST(api.FaucetDataPath, h.FaucetData)
		signed.POST(api.AddressDataPath, h.AddressData)
	}

	router.POST(api.TweetPath, h.Tweet)

	return router
}
