package server

import (
	"github.com/blackscorpionster/rubits/docs"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterSwagger serves the swagger UI at /swagger/index.html. The document
// host follows the request (X-Forwarded-Host behind a reverse proxy).
func (a *App) RegisterSwagger() {
	handler := ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.DefaultModelsExpandDepth(-1),
	)

	a.engine.GET("/swagger/*any", func(c *gin.Context) {
		host := c.GetHeader("X-Forwarded-Host")
		if host == "" {
			host = c.Request.Host
		}
		docs.SwaggerInfo.Host = host
		handler(c)
	})

	a.logger.Info().
		Str("path", "/swagger/index.html").
		Msg("Swagger UI registered with dynamic host")
}
